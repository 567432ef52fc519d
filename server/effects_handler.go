package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"SonicPlayer/core/effects"
	"SonicPlayer/logger"
)

// EffectsHandler 音效 HTTP 处理器
type EffectsHandler struct {
	chain *effects.Chain
}

func NewEffectsHandler(chain *effects.Chain) *EffectsHandler {
	return &EffectsHandler{chain: chain}
}

type nameRequest struct {
	Name string `json:"name"`
}

type mixRequest struct {
	WetDryMix *float64 `json:"wetDryMix,omitempty"`
	Preset    *string  `json:"preset,omitempty"`
}

type delayRequest struct {
	Time      *float64 `json:"time,omitempty"`
	Feedback  *float64 `json:"feedback,omitempty"`
	WetDryMix *float64 `json:"wetDryMix,omitempty"`
}

type slowedReverbRequest struct {
	Speed        float64 `json:"speed"`
	Pitch        float64 `json:"pitch"`
	ReverbAmount float64 `json:"reverbAmount"`
}

// respond writes the chain state, or maps a rejected change to a status code.
func (h *EffectsHandler) respond(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, h.chain.State())
	case errors.Is(err, effects.ErrStreamBacked):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, effects.ErrUnknownPreset):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		http.Error(w, err.Error(), http.StatusBadRequest)
	}
}

func decodeRequired(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	ok, err := decodeBody(r, v)
	if err != nil || !ok {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

func (h *EffectsHandler) StateHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.chain.State())
}

// BandHandler 设置单个均衡器频段
func (h *EffectsHandler) BandHandler(w http.ResponseWriter, r *http.Request) {
	band, err := strconv.Atoi(mux.Vars(r)["band"])
	if err != nil {
		http.Error(w, "Invalid band", http.StatusBadRequest)
		return
	}
	var req struct {
		Gain float64 `json:"gain"`
	}
	if !decodeRequired(w, r, &req) {
		return
	}
	h.respond(w, h.chain.SetBandGain(band, req.Gain))
}

func (h *EffectsHandler) EqualizerPresetHandler(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if !decodeRequired(w, r, &req) {
		return
	}
	h.respond(w, h.chain.ApplyEqualizerPreset(req.Name))
}

func (h *EffectsHandler) EqualizerResetHandler(w http.ResponseWriter, r *http.Request) {
	h.respond(w, h.chain.ResetEqualizer())
}

func (h *EffectsHandler) ReverbHandler(w http.ResponseWriter, r *http.Request) {
	var req mixRequest
	if !decodeRequired(w, r, &req) {
		return
	}
	if req.Preset != nil {
		if err := h.chain.SetReverbPreset(*req.Preset); err != nil {
			h.respond(w, err)
			return
		}
	}
	var err error
	if req.WetDryMix != nil {
		err = h.chain.SetReverbWetDryMix(*req.WetDryMix)
	}
	h.respond(w, err)
}

func (h *EffectsHandler) DelayHandler(w http.ResponseWriter, r *http.Request) {
	var req delayRequest
	if !decodeRequired(w, r, &req) {
		return
	}
	steps := []struct {
		v   *float64
		set func(float64) error
	}{
		{req.Time, h.chain.SetDelayTime},
		{req.Feedback, h.chain.SetDelayFeedback},
		{req.WetDryMix, h.chain.SetDelayWetDryMix},
	}
	for _, s := range steps {
		if s.v == nil {
			continue
		}
		if err := s.set(*s.v); err != nil {
			h.respond(w, err)
			return
		}
	}
	h.respond(w, nil)
}

func (h *EffectsHandler) DistortionHandler(w http.ResponseWriter, r *http.Request) {
	var req mixRequest
	if !decodeRequired(w, r, &req) {
		return
	}
	if req.Preset != nil {
		if err := h.chain.SetDistortionPreset(*req.Preset); err != nil {
			h.respond(w, err)
			return
		}
	}
	var err error
	if req.WetDryMix != nil {
		err = h.chain.SetDistortionWetDryMix(*req.WetDryMix)
	}
	h.respond(w, err)
}

func (h *EffectsHandler) CompressorHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if !decodeRequired(w, r, &req) {
		return
	}
	h.respond(w, h.chain.SetCompressorEnabled(req.Enabled))
}

func (h *EffectsHandler) SpatialHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
		Z float64 `json:"z"`
	}
	if !decodeRequired(w, r, &req) {
		return
	}
	h.respond(w, h.chain.SetSpatialPosition(req.X, req.Y, req.Z))
}

// AudioPresetHandler 应用整套音效预设
func (h *EffectsHandler) AudioPresetHandler(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if !decodeRequired(w, r, &req) {
		return
	}
	h.respond(w, h.chain.ApplyAudioPreset(req.Name))
}

func (h *EffectsHandler) SlowedReverbHandler(w http.ResponseWriter, r *http.Request) {
	var req slowedReverbRequest
	if !decodeRequired(w, r, &req) {
		return
	}
	h.respond(w, h.chain.SetSlowedReverb(req.Speed, req.Pitch, req.ReverbAmount))
}

// SlowedReverbSwitchHandler 开启, 关闭或切换 slowed reverb
func (h *EffectsHandler) SlowedReverbSwitchHandler(w http.ResponseWriter, r *http.Request) {
	var err error
	switch mux.Vars(r)["action"] {
	case "enable":
		err = h.chain.EnableSlowedReverb()
	case "disable":
		err = h.chain.DisableSlowedReverb()
	case "toggle":
		_, err = h.chain.ToggleSlowedReverb()
	}
	if err != nil {
		logger.Debug("slowed reverb switch rejected", logger.ErrorField(err))
	}
	h.respond(w, err)
}

func (h *EffectsHandler) SlowedReverbPresetHandler(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if !decodeRequired(w, r, &req) {
		return
	}
	h.respond(w, h.chain.ApplySlowedReverbPreset(req.Name))
}

// PresetsHandler 列出可用预设和均衡器频点
func (h *EffectsHandler) PresetsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"presets":         h.chain.Catalog().Names(),
		"bandFrequencies": h.chain.BandFrequencies(),
	})
}

func (h *EffectsHandler) SlowedReverbInfoHandler(w http.ResponseWriter, r *http.Request) {
	p, err := h.chain.SlowedReverbPresetInfo(mux.Vars(r)["name"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

package server

import (
	"context"
	"net/http"
	"time"

	"SonicPlayer/core/player"
	"SonicPlayer/logger"
	"SonicPlayer/model"
	"SonicPlayer/storage"
)

// PlayerHandler 播放控制 HTTP 处理器
type PlayerHandler struct {
	player *player.Controller
	store  *storage.Store
}

// NewPlayerHandler 创建播放控制处理器
func NewPlayerHandler(p *player.Controller, store *storage.Store) *PlayerHandler {
	return &PlayerHandler{player: p, store: store}
}

// PlayRequest 播放请求, 不带 track 时继续当前曲目
type PlayRequest struct {
	Track *model.Track `json:"track,omitempty"`
}

// SeekRequest 跳转请求
type SeekRequest struct {
	Position *float64 `json:"position"`
}

func (h *PlayerHandler) status(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, h.player.Status())
}

// InitializeHandler 配置远程控制
func (h *PlayerHandler) InitializeHandler(w http.ResponseWriter, r *http.Request) {
	var opts model.InitOptions
	if _, err := decodeBody(r, &opts); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	h.player.Initialize(opts)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"enabledCommands": h.player.Remote().Enabled(),
	})
}

// PlayHandler 播放
func (h *PlayerHandler) PlayHandler(w http.ResponseWriter, r *http.Request) {
	var req PlayRequest
	if _, err := decodeBody(r, &req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Track != nil {
		if err := req.Track.Validate(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		logger.Info("play requested",
			logger.String("url", req.Track.URL),
			logger.String("client", ClientIDFromContext(r.Context())))
	}
	h.player.Play(req.Track)
	h.status(w)
}

func (h *PlayerHandler) PauseHandler(w http.ResponseWriter, r *http.Request) {
	h.player.Pause()
	h.status(w)
}

func (h *PlayerHandler) ResumeHandler(w http.ResponseWriter, r *http.Request) {
	h.player.Resume()
	h.status(w)
}

func (h *PlayerHandler) StopHandler(w http.ResponseWriter, r *http.Request) {
	h.player.Stop()
	h.status(w)
}

// SeekHandler 跳转
func (h *PlayerHandler) SeekHandler(w http.ResponseWriter, r *http.Request) {
	var req SeekRequest
	if _, err := decodeBody(r, &req); err != nil || req.Position == nil {
		http.Error(w, "position is required", http.StatusBadRequest)
		return
	}
	h.player.Seek(*req.Position)
	h.status(w)
}

func (h *PlayerHandler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	h.status(w)
}

// MetadataHandler 覆盖当前曲目的正在播放信息
func (h *PlayerHandler) MetadataHandler(w http.ResponseWriter, r *http.Request) {
	var meta model.TrackMetadata
	if ok, err := decodeBody(r, &meta); err != nil || !ok {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	h.player.SetMetadataForCurrentTrack(meta)
	h.status(w)
}

// AmbientHandler 切换环境音模式
func (h *PlayerHandler) AmbientHandler(w http.ResponseWriter, r *http.Request) {
	enabled := h.player.ToggleAmbientMode()
	writeJSON(w, http.StatusOK, map[string]bool{"ambientMode": enabled})
}

// TracksHandler 列出对象存储中的音频, 结果可直接作为 minio:// 地址播放
func (h *PlayerHandler) TracksHandler(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		http.Error(w, "Object storage is not configured", http.StatusServiceUnavailable)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	objects, stats, err := h.store.List(ctx, r.URL.Query().Get("prefix"), true)
	if err != nil {
		logger.Error("list tracks failed", logger.ErrorField(err))
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	type trackEntry struct {
		storage.ObjectInfo
		URL string `json:"url"`
	}
	entries := make([]trackEntry, 0, len(objects))
	for _, o := range objects {
		entries = append(entries, trackEntry{ObjectInfo: o, URL: "minio://" + h.store.Bucket() + "/" + o.Key})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tracks": entries,
		"stats":  stats,
	})
}

// Package effects owns the effect chain state and applies it to the audio graph.
package effects

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"SonicPlayer/core/audio"
	"SonicPlayer/logger"
)

// Parameter ranges.
const (
	MinBandGain = -12.0
	MaxBandGain = 12.0
	MinRate     = 1.0 / 32
	MaxRate     = 32.0
	MinPitch    = -2400.0
	MaxPitch    = 2400.0
	MaxDelay    = 2.0
)

// EqualizerCustom labels a band vector that was edited by hand.
const EqualizerCustom = "custom"

// slowedReverbRoom is the reverb room loaded by slowed reverb presets.
const slowedReverbRoom = "largehall"

var (
	ErrStreamBacked  = errors.New("effects are unavailable in stream mode")
	ErrInvalidBand   = errors.New("equalizer band out of range")
	ErrUnknownPreset = errors.New("unknown preset")
)

// State is the full effect chain configuration.
type State struct {
	audio.EffectSettings
	EqualizerPreset     string `json:"equalizerPreset"`
	SlowedReverbEnabled bool   `json:"slowedReverbEnabled"`
	SlowedReverbPreset  string `json:"slowedReverbPreset"`
}

// DefaultState is the configuration of a freshly built chain.
func DefaultState() State {
	return State{
		EffectSettings: audio.EffectSettings{
			Rate:             1,
			ReverbPreset:     "mediumhall",
			DelayTime:        1,
			DelayFeedback:    50,
			DistortionPreset: "drumsbitterbuzz",
			Position:         audio.Point3D{Z: -2},
		},
		EqualizerPreset:    "flat",
		SlowedReverbPreset: "classic",
	}
}

// Chain is the signal chain. All setters clamp, are idempotent, and are safe to call from
// any goroutine; the graph sees each change as one EffectSettings value.
type Chain struct {
	mu         sync.Mutex
	state      State
	sink       audio.EffectSink
	streamMode bool
	catalog    atomic.Pointer[Catalog]
}

// NewChain builds a chain and pushes the default state to sink. catalog may be nil.
func NewChain(sink audio.EffectSink, catalog *Catalog) *Chain {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	c := &Chain{state: DefaultState(), sink: sink}
	c.catalog.Store(catalog)
	if sink != nil {
		sink.ApplyEffects(c.state.EffectSettings)
	}
	return c
}

// Catalog returns the active preset catalog.
func (c *Chain) Catalog() *Catalog {
	return c.catalog.Load()
}

// SetCatalog swaps the preset catalog. Already applied values are kept.
func (c *Chain) SetCatalog(cat *Catalog) {
	if cat != nil {
		c.catalog.Store(cat)
	}
}

// SetStreamMode gates mutations while a stream backend is active. Leaving stream mode
// pushes the stored state back to the graph.
func (c *Chain) SetStreamMode(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.streamMode == on {
		return
	}
	c.streamMode = on
	if !on && c.sink != nil {
		c.sink.ApplyEffects(c.state.EffectSettings)
	}
}

// Reapply pushes the current state again, used after the graph was rebuilt.
func (c *Chain) Reapply() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sink != nil {
		c.sink.ApplyEffects(c.state.EffectSettings)
	}
}

// State returns a snapshot.
func (c *Chain) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Rate is the effective playback rate, read by the position tracker.
func (c *Chain) Rate() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Rate
}

func (c *Chain) mutate(op string, fn func(s *State) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.streamMode {
		logger.Warn("effect change rejected in stream mode", logger.String("op", op))
		return ErrStreamBacked
	}

	next := c.state
	if err := fn(&next); err != nil {
		return err
	}
	if next == c.state {
		return nil
	}
	c.state = next
	if c.sink != nil {
		c.sink.ApplyEffects(next.EffectSettings)
	}
	logger.Debug("effect chain updated", logger.String("op", op))
	return nil
}

// SetBandGain sets one equalizer band in dB.
func (c *Chain) SetBandGain(band int, gain float64) error {
	if band < 0 || band >= audio.BandCount {
		return fmt.Errorf("%w: %d", ErrInvalidBand, band)
	}
	return c.mutate("set_band_gain", func(s *State) error {
		g := clamp(gain, MinBandGain, MaxBandGain)
		if s.BandGains[band] == g {
			return nil
		}
		s.BandGains[band] = g
		s.EqualizerPreset = EqualizerCustom
		return nil
	})
}

func (c *Chain) BandGain(band int) (float64, error) {
	if band < 0 || band >= audio.BandCount {
		return 0, fmt.Errorf("%w: %d", ErrInvalidBand, band)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.BandGains[band], nil
}

func (c *Chain) BandGains() [audio.BandCount]float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.BandGains
}

func (c *Chain) BandFrequencies() [audio.BandCount]float64 {
	return audio.BandFrequencies
}

// ResetEqualizer flattens every band.
func (c *Chain) ResetEqualizer() error {
	return c.mutate("reset_equalizer", func(s *State) error {
		s.BandGains = [audio.BandCount]float64{}
		s.EqualizerPreset = "flat"
		return nil
	})
}

// ApplyEqualizerPreset replaces the whole band vector at once.
func (c *Chain) ApplyEqualizerPreset(name string) error {
	gains, ok := c.Catalog().Equalizer[name]
	if !ok {
		return fmt.Errorf("%w: equalizer %q", ErrUnknownPreset, name)
	}
	return c.mutate("equalizer_preset", func(s *State) error {
		setEqualizer(s, name, gains)
		return nil
	})
}

func setEqualizer(s *State, name string, gains []float64) {
	for i := 0; i < audio.BandCount && i < len(gains); i++ {
		s.BandGains[i] = clamp(gains[i], MinBandGain, MaxBandGain)
	}
	s.EqualizerPreset = name
}

func (c *Chain) SetReverbWetDryMix(mix float64) error {
	return c.mutate("reverb_mix", func(s *State) error {
		s.ReverbWetDryMix = clamp(mix, 0, 100)
		return nil
	})
}

func (c *Chain) SetReverbPreset(name string) error {
	if !c.Catalog().HasReverb(name) {
		return fmt.Errorf("%w: reverb %q", ErrUnknownPreset, name)
	}
	return c.mutate("reverb_preset", func(s *State) error {
		s.ReverbPreset = name
		return nil
	})
}

func (c *Chain) SetDelayTime(seconds float64) error {
	return c.mutate("delay_time", func(s *State) error {
		s.DelayTime = clamp(seconds, 0, MaxDelay)
		return nil
	})
}

func (c *Chain) SetDelayFeedback(feedback float64) error {
	return c.mutate("delay_feedback", func(s *State) error {
		s.DelayFeedback = clamp(feedback, -100, 100)
		return nil
	})
}

func (c *Chain) SetDelayWetDryMix(mix float64) error {
	return c.mutate("delay_mix", func(s *State) error {
		s.DelayWetDryMix = clamp(mix, 0, 100)
		return nil
	})
}

func (c *Chain) SetDistortionWetDryMix(mix float64) error {
	return c.mutate("distortion_mix", func(s *State) error {
		s.DistortionWetDryMix = clamp(mix, 0, 100)
		return nil
	})
}

func (c *Chain) SetDistortionPreset(name string) error {
	if !c.Catalog().HasDistortion(name) {
		return fmt.Errorf("%w: distortion %q", ErrUnknownPreset, name)
	}
	return c.mutate("distortion_preset", func(s *State) error {
		s.DistortionPreset = name
		return nil
	})
}

// SetCompressorEnabled takes the dynamics stage out of bypass.
func (c *Chain) SetCompressorEnabled(on bool) error {
	return c.mutate("compressor", func(s *State) error {
		s.CompressorEnabled = on
		return nil
	})
}

// SetSlowedReverb sets rate, pitch and reverb amount directly.
func (c *Chain) SetSlowedReverb(speed, pitch, reverbAmount float64) error {
	return c.mutate("slowed_reverb", func(s *State) error {
		s.Rate = clamp(speed, MinRate, MaxRate)
		s.Pitch = clamp(pitch, MinPitch, MaxPitch)
		s.ReverbWetDryMix = clamp(reverbAmount, 0, 100)
		return nil
	})
}

func (c *Chain) EnableSlowedReverb() error {
	cat := c.Catalog()
	return c.mutate("slowed_reverb_enable", func(s *State) error {
		s.SlowedReverbEnabled = true
		if p, ok := cat.SlowedReverb[s.SlowedReverbPreset]; ok {
			applySlowed(s, p)
		}
		return nil
	})
}

func (c *Chain) DisableSlowedReverb() error {
	return c.mutate("slowed_reverb_disable", func(s *State) error {
		disableSlowed(s)
		return nil
	})
}

func disableSlowed(s *State) {
	s.SlowedReverbEnabled = false
	s.Rate = 1
	s.Pitch = 0
	s.ReverbWetDryMix = 0
	s.DelayWetDryMix = 0
}

// ToggleSlowedReverb flips the slowed reverb mode and reports the new value.
func (c *Chain) ToggleSlowedReverb() (bool, error) {
	cat := c.Catalog()
	var enabled bool
	err := c.mutate("slowed_reverb_toggle", func(s *State) error {
		if s.SlowedReverbEnabled {
			disableSlowed(s)
		} else {
			s.SlowedReverbEnabled = true
			if p, ok := cat.SlowedReverb[s.SlowedReverbPreset]; ok {
				applySlowed(s, p)
			}
		}
		enabled = s.SlowedReverbEnabled
		return nil
	})
	return enabled, err
}

// ApplySlowedReverbPreset selects a preset. Its values only take effect while slowed
// reverb is enabled.
func (c *Chain) ApplySlowedReverbPreset(name string) error {
	p, ok := c.Catalog().SlowedReverb[name]
	if !ok {
		return fmt.Errorf("%w: slowed reverb %q", ErrUnknownPreset, name)
	}
	return c.mutate("slowed_reverb_preset", func(s *State) error {
		s.SlowedReverbPreset = name
		if s.SlowedReverbEnabled {
			applySlowed(s, p)
		}
		return nil
	})
}

func applySlowed(s *State, p SlowedReverbPreset) {
	s.Rate = clamp(p.Speed, MinRate, MaxRate)
	s.Pitch = clamp(p.Pitch, MinPitch, MaxPitch)
	s.ReverbWetDryMix = clamp(p.ReverbAmount, 0, 100)
	s.ReverbPreset = slowedReverbRoom
	if p.ReverbPreset != "" {
		s.ReverbPreset = p.ReverbPreset
	}
	s.DelayWetDryMix = clamp(p.DelayAmount, 0, 100)
	s.DelayTime = clamp(p.DelayTime, 0, MaxDelay)
	s.DelayFeedback = clamp(p.DelayFeedback, -100, 100)
}

// SlowedReverbPresetInfo describes one slowed reverb preset.
func (c *Chain) SlowedReverbPresetInfo(name string) (SlowedReverbPreset, error) {
	p, ok := c.Catalog().SlowedReverb[name]
	if !ok {
		return SlowedReverbPreset{}, fmt.Errorf("%w: slowed reverb %q", ErrUnknownPreset, name)
	}
	return p, nil
}

// ApplyAudioPreset sets equalizer, reverb, delay and distortion together.
func (c *Chain) ApplyAudioPreset(name string) error {
	cat := c.Catalog()
	p, ok := cat.Audio[name]
	if !ok {
		return fmt.Errorf("%w: audio %q", ErrUnknownPreset, name)
	}
	gains, ok := cat.Equalizer[p.Equalizer]
	if !ok {
		return fmt.Errorf("%w: equalizer %q", ErrUnknownPreset, p.Equalizer)
	}
	return c.mutate("audio_preset", func(s *State) error {
		setEqualizer(s, p.Equalizer, gains)
		s.ReverbWetDryMix = clamp(p.ReverbWetDryMix, 0, 100)
		if p.ReverbPreset != "" {
			s.ReverbPreset = p.ReverbPreset
		}
		s.DelayTime = clamp(p.DelayTime, 0, MaxDelay)
		s.DelayFeedback = clamp(p.DelayFeedback, -100, 100)
		s.DelayWetDryMix = clamp(p.DelayWetDryMix, 0, 100)
		s.DistortionWetDryMix = clamp(p.DistortionWetDryMix, 0, 100)
		if p.DistortionPreset != "" {
			s.DistortionPreset = p.DistortionPreset
		}
		return nil
	})
}

// SetSpatialPosition moves the source relative to the listener.
func (c *Chain) SetSpatialPosition(x, y, z float64) error {
	for _, v := range []float64{x, y, z} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("invalid spatial position (%v, %v, %v)", x, y, z)
		}
	}
	return c.mutate("spatial_position", func(s *State) error {
		s.Position = audio.Point3D{X: x, Y: y, Z: z}
		return nil
	})
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

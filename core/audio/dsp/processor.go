package dsp

import (
	"github.com/gopxl/beep/v2"

	"SonicPlayer/core/audio"
)

// Processor owns the effect stages in graph order:
// equalizer, pitch, reverb, delay, distortion, compressor, spatial.
// Playback rate is handled by the resampler in front of it.
type Processor struct {
	eq         *Equalizer
	pitch      *PitchShifter
	reverb     *Reverb
	delay      *Delay
	distortion *Distortion
	compressor *Compressor
	spatial    *Spatial
	settings   audio.EffectSettings
}

func NewProcessor(sampleRate beep.SampleRate) *Processor {
	sr := float64(sampleRate)
	p := &Processor{
		eq:         NewEqualizer(sr, audio.BandFrequencies[:]),
		pitch:      NewPitchShifter(sr),
		reverb:     NewReverb(sr),
		delay:      NewDelay(sr),
		distortion: NewDistortion(),
		compressor: NewCompressor(sr),
		spatial:    NewSpatial(),
	}
	p.eq.Streamer = beep.Silence(0)
	p.pitch.Streamer = p.eq
	p.reverb.Streamer = p.pitch
	p.delay.Streamer = p.reverb
	p.distortion.Streamer = p.delay
	p.compressor.Streamer = p.distortion
	p.spatial.Streamer = p.compressor
	return p
}

// Wrap feeds src into the stage chain and returns the chain output.
func (p *Processor) Wrap(src beep.Streamer) beep.Streamer {
	p.eq.Streamer = src
	return p.spatial
}

// Apply loads a full parameter set.
func (p *Processor) Apply(s audio.EffectSettings) {
	p.eq.SetGains(s.BandGains[:])
	p.pitch.SetCents(s.Pitch)
	p.reverb.SetPreset(s.ReverbPreset)
	p.reverb.SetWetDryMix(s.ReverbWetDryMix)
	p.delay.Set(s.DelayTime, s.DelayFeedback, s.DelayWetDryMix)
	p.distortion.SetPreset(s.DistortionPreset)
	p.distortion.SetWetDryMix(s.DistortionWetDryMix)
	p.compressor.Bypass = !s.CompressorEnabled
	p.spatial.SetPosition(s.Position.X, s.Position.Y, s.Position.Z)
	p.settings = s
}

func (p *Processor) Settings() audio.EffectSettings {
	return p.settings
}

package dsp

import (
	"math"
	"testing"

	"github.com/gopxl/beep/v2"

	"SonicPlayer/core/audio"
)

type sliceStreamer struct {
	data [][2]float64
	pos  int
}

func (s *sliceStreamer) Stream(samples [][2]float64) (int, bool) {
	if s.pos >= len(s.data) {
		return 0, false
	}
	n := copy(samples, s.data[s.pos:])
	s.pos += n
	return n, true
}

func (s *sliceStreamer) Err() error { return nil }

func impulse(n int) *sliceStreamer {
	data := make([][2]float64, n)
	data[0] = [2]float64{1, 1}
	return &sliceStreamer{data: data}
}

func drain(t *testing.T, s beep.Streamer, n int) [][2]float64 {
	t.Helper()
	out := make([][2]float64, n)
	got, _ := s.Stream(out)
	return out[:got]
}

func TestEqualizerFlatIsTransparent(t *testing.T) {
	eq := NewEqualizer(44100, audio.BandFrequencies[:])
	eq.SetGains(make([]float64, audio.BandCount))
	src := &sliceStreamer{data: [][2]float64{{0.5, -0.5}, {0.25, 0.1}}}
	eq.Streamer = src

	out := drain(t, eq, 2)
	if out[0] != [2]float64{0.5, -0.5} || out[1] != [2]float64{0.25, 0.1} {
		t.Fatalf("flat equalizer altered samples: %v", out)
	}
}

func TestEqualizerBoostChangesSignal(t *testing.T) {
	eq := NewEqualizer(44100, audio.BandFrequencies[:])
	gains := make([]float64, audio.BandCount)
	gains[5] = 12
	eq.SetGains(gains)
	eq.Streamer = impulse(64)

	out := drain(t, eq, 64)
	if out[0][0] <= 1 {
		t.Fatalf("boosted band should raise the impulse peak, got %v", out[0][0])
	}
	if !eq.active[5] || eq.active[0] {
		t.Fatal("only the boosted band should be active")
	}
}

func TestDelayEchoPosition(t *testing.T) {
	d := NewDelay(1000)
	d.Set(0.01, 0, 100)
	d.Streamer = impulse(32)

	out := drain(t, d, 32)
	if out[0][0] != 0 {
		t.Errorf("fully wet output should not contain the dry impulse, got %v", out[0][0])
	}
	if out[10][0] != 1 {
		t.Errorf("echo expected at sample 10, got %v", out[10][0])
	}
}

func TestDelayBypassedWithoutTime(t *testing.T) {
	d := NewDelay(1000)
	d.Set(0, 50, 100)
	d.Streamer = impulse(4)
	out := drain(t, d, 4)
	if out[0][0] != 1 {
		t.Errorf("zero delay time should pass the signal, got %v", out[0][0])
	}
}

func TestDistortionDryAndWet(t *testing.T) {
	d := NewDistortion()
	d.SetWetDryMix(0)
	d.Streamer = &sliceStreamer{data: [][2]float64{{0.2, 0.2}}}
	if out := drain(t, d, 1); out[0][0] != 0.2 {
		t.Errorf("dry distortion altered the signal: %v", out[0][0])
	}

	d.SetPreset("multidistortioncubed")
	d.SetWetDryMix(100)
	d.Streamer = &sliceStreamer{data: [][2]float64{{0.2, 0.2}}}
	out := drain(t, d, 1)
	if out[0][0] <= 0.2 || out[0][0] > 1 {
		t.Errorf("wet distortion should saturate towards 1, got %v", out[0][0])
	}
}

func TestSpatialGains(t *testing.T) {
	s := NewSpatial()
	l, r := s.Gains()
	if math.Abs(l-1) > 1e-9 || math.Abs(r-1) > 1e-9 {
		t.Errorf("default position should be unity, got %v/%v", l, r)
	}

	s.SetPosition(2, 0, 0)
	l, r = s.Gains()
	if l > 1e-9 || r <= 1 {
		t.Errorf("hard right position should mute left, got %v/%v", l, r)
	}

	s.SetPosition(0, 0, -8)
	l, _ = s.Gains()
	if math.Abs(l-0.25) > 1e-9 {
		t.Errorf("distance attenuation = %v, want 0.25", l)
	}
}

func TestCompressorBypassedByDefault(t *testing.T) {
	c := NewCompressor(44100)
	c.Streamer = &sliceStreamer{data: [][2]float64{{0.9, 0.9}}}
	if out := drain(t, c, 1); out[0][0] != 0.9 {
		t.Errorf("bypassed compressor altered the signal: %v", out[0][0])
	}
}

func TestProcessorApply(t *testing.T) {
	p := NewProcessor(beep.SampleRate(44100))
	s := audio.EffectSettings{
		Rate:             1,
		ReverbPreset:     "cathedral",
		ReverbWetDryMix:  25,
		DelayTime:        0.1,
		DelayFeedback:    10,
		DelayWetDryMix:   10,
		DistortionPreset: "drumslofi",
		Position:         audio.Point3D{Z: -2},
	}
	p.Apply(s)

	if p.Settings() != s {
		t.Error("Settings should echo the applied value")
	}
	if p.reverb.preset != "cathedral" || p.reverb.wet != 0.25 {
		t.Errorf("reverb not configured: %s %v", p.reverb.preset, p.reverb.wet)
	}
	if p.delay.length != 4410 {
		t.Errorf("delay length = %d, want 4410", p.delay.length)
	}

	out := p.Wrap(&sliceStreamer{data: make([][2]float64, 16)})
	if n, ok := out.Stream(make([][2]float64, 16)); n != 16 || !ok {
		t.Errorf("chain streamed %d samples (ok=%v), want 16", n, ok)
	}
}

func sine(freq, sampleRate float64, n int) *sliceStreamer {
	data := make([][2]float64, n)
	for i := range data {
		v := 0.5 * math.Sin(2*math.Pi*freq*float64(i)/sampleRate)
		data[i] = [2]float64{v, v}
	}
	return &sliceStreamer{data: data}
}

func zeroCrossings(samples [][2]float64) int {
	count := 0
	for i := 1; i < len(samples); i++ {
		if (samples[i-1][0] < 0) != (samples[i][0] < 0) {
			count++
		}
	}
	return count
}

func TestPitchShifterBypassedAtZero(t *testing.T) {
	p := NewPitchShifter(8000)
	p.SetCents(0)
	p.Streamer = &sliceStreamer{data: [][2]float64{{0.3, -0.3}, {0.1, 0.2}}}
	out := drain(t, p, 2)
	if out[0] != [2]float64{0.3, -0.3} || out[1] != [2]float64{0.1, 0.2} {
		t.Fatalf("unshifted stage altered samples: %v", out)
	}
}

func TestPitchShifterOctaveUpKeepsLength(t *testing.T) {
	const sr = 8000
	p := NewPitchShifter(sr)
	p.SetCents(1200)
	// 200Hz repeats every 40 samples, so both taps stay in phase over the 240 sample window
	in := sine(200, sr, sr)
	p.Streamer = in

	out := drain(t, p, sr)
	if len(out) != sr {
		t.Fatalf("pitch shift changed the length: %d samples", len(out))
	}
	tail := out[sr/2:]
	inCross := zeroCrossings(in.data[sr/2:])
	outCross := zeroCrossings(tail)
	if outCross < inCross*18/10 || outCross > inCross*22/10 {
		t.Fatalf("zero crossings %d, want about twice %d", outCross, inCross)
	}
	for _, s := range tail {
		if math.Abs(s[0]) > 0.5+1e-9 {
			t.Fatalf("crossfade exceeded the input level: %v", s[0])
		}
	}
}

func TestPitchShifterClamp(t *testing.T) {
	p := NewPitchShifter(8000)
	p.SetCents(5000)
	if p.Cents() != 2400 {
		t.Errorf("cents = %v, want clamp to 2400", p.Cents())
	}
}

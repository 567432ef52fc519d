// Package dsp holds the effect stages of the speaker graph as beep streamers. Stage
// parameters are not synchronised: callers change them while holding the speaker lock,
// the same lock the render goroutine holds while pulling samples.
package dsp

import (
	"math"

	"github.com/gopxl/beep/v2"
)

// biquad is a transposed direct form II filter with per channel state.
type biquad struct {
	b0, b1, b2, a1, a2 float64
	z                  [2][2]float64
}

func (q *biquad) process(x float64, ch int) float64 {
	y := q.b0*x + q.z[ch][0]
	q.z[ch][0] = q.b1*x - q.a1*y + q.z[ch][1]
	q.z[ch][1] = q.b2*x - q.a2*y
	return y
}

// setPeaking loads RBJ peaking EQ coefficients, keeping the filter state.
func (q *biquad) setPeaking(sampleRate, freq, gainDB, quality float64) {
	a := math.Pow(10, gainDB/40)
	w0 := 2 * math.Pi * freq / sampleRate
	alpha := math.Sin(w0) / (2 * quality)
	cosw := math.Cos(w0)

	a0 := 1 + alpha/a
	q.b0 = (1 + alpha*a) / a0
	q.b1 = (-2 * cosw) / a0
	q.b2 = (1 - alpha*a) / a0
	q.a1 = (-2 * cosw) / a0
	q.a2 = (1 - alpha/a) / a0
}

// octaveQ gives each band a one octave bandwidth.
const octaveQ = 1.41

// Equalizer is a bank of peaking filters. Bands at 0 dB or above Nyquist are skipped.
type Equalizer struct {
	Streamer   beep.Streamer
	sampleRate float64
	freqs      []float64
	gains      []float64
	bands      []biquad
	active     []bool
}

func NewEqualizer(sampleRate float64, freqs []float64) *Equalizer {
	return &Equalizer{
		sampleRate: sampleRate,
		freqs:      freqs,
		gains:      make([]float64, len(freqs)),
		bands:      make([]biquad, len(freqs)),
		active:     make([]bool, len(freqs)),
	}
}

// SetGains updates the band gains in dB, recomputing only bands that changed.
func (e *Equalizer) SetGains(gains []float64) {
	for i := range e.freqs {
		if i >= len(gains) {
			break
		}
		if gains[i] == e.gains[i] && (e.active[i] || gains[i] == 0) {
			continue
		}
		e.gains[i] = gains[i]
		if gains[i] == 0 || e.freqs[i] >= e.sampleRate/2 {
			e.active[i] = false
			continue
		}
		e.bands[i].setPeaking(e.sampleRate, e.freqs[i], gains[i], octaveQ)
		e.active[i] = true
	}
}

func (e *Equalizer) Stream(samples [][2]float64) (int, bool) {
	n, ok := e.Streamer.Stream(samples)
	for b := range e.bands {
		if !e.active[b] {
			continue
		}
		band := &e.bands[b]
		for i := 0; i < n; i++ {
			samples[i][0] = band.process(samples[i][0], 0)
			samples[i][1] = band.process(samples[i][1], 1)
		}
	}
	return n, ok
}

func (e *Equalizer) Err() error { return e.Streamer.Err() }

type comb struct {
	buf      []float64
	idx      int
	feedback float64
	damp     float64
	store    float64
}

func (c *comb) process(x float64) float64 {
	out := c.buf[c.idx]
	c.store = out*(1-c.damp) + c.store*c.damp
	c.buf[c.idx] = x + c.store*c.feedback
	c.idx++
	if c.idx == len(c.buf) {
		c.idx = 0
	}
	return out
}

type allpass struct {
	buf []float64
	idx int
}

func (a *allpass) process(x float64) float64 {
	bufOut := a.buf[a.idx]
	a.buf[a.idx] = x + bufOut*0.5
	a.idx++
	if a.idx == len(a.buf) {
		a.idx = 0
	}
	return bufOut - x
}

// Tunings at 44.1kHz, scaled to the graph rate.
var (
	combTunings    = []int{1116, 1188, 1277, 1356}
	allpassTunings = []int{556, 441}
)

const stereoSpread = 23

// RoomProfile is the character of a factory reverb preset.
type RoomProfile struct {
	Size float64 // comb feedback
	Damp float64
}

// ReverbRooms maps factory preset names to room profiles.
var ReverbRooms = map[string]RoomProfile{
	"smallroom":  {Size: 0.70, Damp: 0.50},
	"mediumroom": {Size: 0.78, Damp: 0.45},
	"largeroom":  {Size: 0.84, Damp: 0.40},
	"mediumhall": {Size: 0.88, Damp: 0.35},
	"largehall":  {Size: 0.92, Damp: 0.30},
	"plate":      {Size: 0.86, Damp: 0.10},
	"cathedral":  {Size: 0.96, Damp: 0.20},
}

// Reverb is a small Schroeder style reverberator.
type Reverb struct {
	Streamer beep.Streamer
	combs    [2][]comb
	passes   [2][]allpass
	wet      float64
	preset   string
}

func NewReverb(sampleRate float64) *Reverb {
	r := &Reverb{}
	scale := sampleRate / 44100
	for ch := 0; ch < 2; ch++ {
		spread := 0
		if ch == 1 {
			spread = stereoSpread
		}
		for _, n := range combTunings {
			r.combs[ch] = append(r.combs[ch], comb{buf: make([]float64, int(float64(n+spread)*scale)+1)})
		}
		for _, n := range allpassTunings {
			r.passes[ch] = append(r.passes[ch], allpass{buf: make([]float64, int(float64(n+spread)*scale)+1)})
		}
	}
	r.SetPreset("mediumhall")
	return r
}

// SetWetDryMix takes a percentage in [0,100].
func (r *Reverb) SetWetDryMix(mix float64) {
	r.wet = clamp(mix, 0, 100) / 100
}

// SetPreset loads a factory room. Unknown names are ignored.
func (r *Reverb) SetPreset(name string) {
	room, ok := ReverbRooms[name]
	if !ok || name == r.preset {
		return
	}
	r.preset = name
	for ch := range r.combs {
		for i := range r.combs[ch] {
			r.combs[ch][i].feedback = room.Size
			r.combs[ch][i].damp = room.Damp
		}
	}
}

func (r *Reverb) Stream(samples [][2]float64) (int, bool) {
	n, ok := r.Streamer.Stream(samples)
	if r.wet == 0 {
		return n, ok
	}
	for i := 0; i < n; i++ {
		for ch := 0; ch < 2; ch++ {
			in := samples[i][ch] * 0.015 * 4
			var acc float64
			for c := range r.combs[ch] {
				acc += r.combs[ch][c].process(in)
			}
			for p := range r.passes[ch] {
				acc = r.passes[ch][p].process(acc)
			}
			samples[i][ch] = samples[i][ch]*(1-r.wet) + acc*r.wet
		}
	}
	return n, ok
}

func (r *Reverb) Err() error { return r.Streamer.Err() }

// MaxDelay bounds the delay line.
const MaxDelay = 2.0

// Delay is a feedback delay line.
type Delay struct {
	Streamer   beep.Streamer
	sampleRate float64
	buf        [][2]float64
	idx        int
	length     int
	feedback   float64
	wet        float64
}

func NewDelay(sampleRate float64) *Delay {
	return &Delay{
		sampleRate: sampleRate,
		buf:        make([][2]float64, int(MaxDelay*sampleRate)+1),
	}
}

// Set takes the delay time in seconds and feedback and mix as percentages.
func (d *Delay) Set(seconds, feedback, wetDryMix float64) {
	d.length = int(clamp(seconds, 0, MaxDelay) * d.sampleRate)
	// full feedback would ring forever, keep the loop gain just under one
	d.feedback = clamp(feedback, -100, 100) / 100 * 0.98
	d.wet = clamp(wetDryMix, 0, 100) / 100
}

func (d *Delay) Stream(samples [][2]float64) (int, bool) {
	n, ok := d.Streamer.Stream(samples)
	if d.length < 1 || d.wet == 0 {
		return n, ok
	}
	size := len(d.buf)
	for i := 0; i < n; i++ {
		read := d.idx - d.length
		if read < 0 {
			read += size
		}
		delayed := d.buf[read]
		for ch := 0; ch < 2; ch++ {
			x := samples[i][ch]
			d.buf[d.idx][ch] = x + delayed[ch]*d.feedback
			samples[i][ch] = x*(1-d.wet) + delayed[ch]*d.wet
		}
		d.idx++
		if d.idx == size {
			d.idx = 0
		}
	}
	return n, ok
}

func (d *Delay) Err() error { return d.Streamer.Err() }

// pitchWindow is the length of the pitch shifter's sweep in seconds.
const pitchWindow = 0.03

// PitchShifter changes pitch without changing tempo. Two read taps sweep a short delay
// line at the pitch ratio, half a window apart, and are crossfaded with triangular gains
// so a tap is silent when it wraps.
type PitchShifter struct {
	Streamer beep.Streamer
	buf      [][2]float64
	window   float64
	write    int
	// delay of the first tap in samples, in [0, window)
	phase float64
	ratio float64
	cents float64
}

func NewPitchShifter(sampleRate float64) *PitchShifter {
	w := math.Max(4, math.Round(sampleRate*pitchWindow))
	return &PitchShifter{
		buf:    make([][2]float64, int(w)+4),
		window: w,
		ratio:  1,
	}
}

// SetCents sets the shift in cents, clamped to two octaves either way.
func (p *PitchShifter) SetCents(cents float64) {
	p.cents = clamp(cents, -2400, 2400)
	p.ratio = math.Pow(2, p.cents/1200)
}

func (p *PitchShifter) Cents() float64 { return p.cents }

// read returns the sample delay samples behind the write head, linearly interpolated.
func (p *PitchShifter) read(delay float64) [2]float64 {
	size := len(p.buf)
	pos := float64(p.write) - delay
	for pos < 0 {
		pos += float64(size)
	}
	i := int(pos)
	frac := pos - float64(i)
	a := p.buf[i%size]
	b := p.buf[(i+1)%size]
	return [2]float64{
		a[0] + (b[0]-a[0])*frac,
		a[1] + (b[1]-a[1])*frac,
	}
}

func (p *PitchShifter) gain(delay float64) float64 {
	return 1 - math.Abs(2*delay/p.window-1)
}

func (p *PitchShifter) Stream(samples [][2]float64) (int, bool) {
	n, ok := p.Streamer.Stream(samples)
	if p.cents == 0 {
		return n, ok
	}
	size := len(p.buf)
	for i := 0; i < n; i++ {
		p.buf[p.write] = samples[i]

		dA := p.phase
		dB := math.Mod(p.phase+p.window/2, p.window)
		a, b := p.read(dA), p.read(dB)
		gA, gB := p.gain(dA), p.gain(dB)
		for ch := 0; ch < 2; ch++ {
			samples[i][ch] = a[ch]*gA + b[ch]*gB
		}

		// a ratio above one reads faster than it writes, so the delay shrinks
		p.phase += 1 - p.ratio
		for p.phase < 0 {
			p.phase += p.window
		}
		for p.phase >= p.window {
			p.phase -= p.window
		}
		p.write++
		if p.write == size {
			p.write = 0
		}
	}
	return n, ok
}

func (p *PitchShifter) Err() error { return p.Streamer.Err() }

// DistortionProfile describes a factory distortion preset.
type DistortionProfile struct {
	Drive float64
	Bits  int // 0 disables bit reduction
}

// DistortionProfiles maps factory preset names to waveshaper settings.
var DistortionProfiles = map[string]DistortionProfile{
	"drumsbitterbuzz":          {Drive: 8},
	"drumsbufferlayer":         {Drive: 3},
	"drumslofi":                {Drive: 2, Bits: 8},
	"multibrokenspeaker":       {Drive: 12},
	"multicellularcpa":         {Drive: 4, Bits: 6},
	"multidecimated1":          {Drive: 1.5, Bits: 10},
	"multidecimated2":          {Drive: 1.5, Bits: 8},
	"multidecimated3":          {Drive: 1.5, Bits: 6},
	"multidecimated4":          {Drive: 1.5, Bits: 4},
	"multidistortioncubed":     {Drive: 20},
	"multiecho1":               {Drive: 1.2},
	"multiecho2":               {Drive: 1.4},
	"multiechotight1":          {Drive: 1.2},
	"multiechotight2":          {Drive: 1.4},
	"multieverything":          {Drive: 16, Bits: 5},
	"multiextrasmallroom":      {Drive: 1.1},
	"speechalienchange":        {Drive: 6, Bits: 7},
	"speechcosmicinterference": {Drive: 5, Bits: 6},
	"speechgoldentone":         {Drive: 1.8},
	"speechradiodifference":    {Drive: 3, Bits: 8},
	"speechwavelform":          {Drive: 2.5},
}

// Distortion is a tanh waveshaper with optional bit reduction.
type Distortion struct {
	Streamer beep.Streamer
	profile  DistortionProfile
	norm     float64
	levels   float64
	wet      float64
}

func NewDistortion() *Distortion {
	d := &Distortion{}
	d.SetPreset("drumsbitterbuzz")
	return d
}

func (d *Distortion) SetWetDryMix(mix float64) {
	d.wet = clamp(mix, 0, 100) / 100
}

func (d *Distortion) SetPreset(name string) {
	p, ok := DistortionProfiles[name]
	if !ok {
		return
	}
	d.profile = p
	d.norm = math.Tanh(p.Drive)
	d.levels = 0
	if p.Bits > 0 {
		d.levels = math.Pow(2, float64(p.Bits-1))
	}
}

func (d *Distortion) shape(x float64) float64 {
	y := math.Tanh(d.profile.Drive*x) / d.norm
	if d.levels > 0 {
		y = math.Round(y*d.levels) / d.levels
	}
	return y
}

func (d *Distortion) Stream(samples [][2]float64) (int, bool) {
	n, ok := d.Streamer.Stream(samples)
	if d.wet == 0 {
		return n, ok
	}
	for i := 0; i < n; i++ {
		for ch := 0; ch < 2; ch++ {
			x := samples[i][ch]
			samples[i][ch] = x*(1-d.wet) + d.shape(x)*d.wet
		}
	}
	return n, ok
}

func (d *Distortion) Err() error { return d.Streamer.Err() }

// Compressor is a feed forward peak compressor. It starts bypassed.
type Compressor struct {
	Streamer  beep.Streamer
	Bypass    bool
	threshold float64
	ratio     float64
	attack    float64
	release   float64
	env       float64
}

func NewCompressor(sampleRate float64) *Compressor {
	return &Compressor{
		Bypass:    true,
		threshold: math.Pow(10, -20.0/20),
		ratio:     4,
		attack:    math.Exp(-1 / (0.005 * sampleRate)),
		release:   math.Exp(-1 / (0.1 * sampleRate)),
	}
}

func (c *Compressor) Stream(samples [][2]float64) (int, bool) {
	n, ok := c.Streamer.Stream(samples)
	if c.Bypass {
		return n, ok
	}
	for i := 0; i < n; i++ {
		peak := math.Max(math.Abs(samples[i][0]), math.Abs(samples[i][1]))
		coef := c.release
		if peak > c.env {
			coef = c.attack
		}
		c.env = coef*c.env + (1-coef)*peak
		gain := 1.0
		if c.env > c.threshold {
			over := c.env / c.threshold
			gain = math.Pow(over, 1/c.ratio) / over
		}
		samples[i][0] *= gain
		samples[i][1] *= gain
	}
	return n, ok
}

func (c *Compressor) Err() error { return c.Streamer.Err() }

// referenceDistance is the distance at which the source plays at unity gain.
const referenceDistance = 2.0

// Spatial pans and attenuates the signal from a listener relative position.
type Spatial struct {
	Streamer    beep.Streamer
	left, right float64
}

func NewSpatial() *Spatial {
	s := &Spatial{}
	s.SetPosition(0, 0, -referenceDistance)
	return s
}

func (s *Spatial) SetPosition(x, y, z float64) {
	dist := math.Sqrt(x*x + y*y + z*z)
	gain := 1.0
	pan := 0.0
	if dist > 0 {
		pan = clamp(x/dist, -1, 1)
	}
	if dist > referenceDistance {
		gain = referenceDistance / dist
	}
	theta := (pan + 1) * math.Pi / 4
	s.left = math.Cos(theta) * math.Sqrt2 * gain
	s.right = math.Sin(theta) * math.Sqrt2 * gain
}

// Gains returns the current left and right channel gains.
func (s *Spatial) Gains() (float64, float64) {
	return s.left, s.right
}

func (s *Spatial) Stream(samples [][2]float64) (int, bool) {
	n, ok := s.Streamer.Stream(samples)
	for i := 0; i < n; i++ {
		samples[i][0] *= s.left
		samples[i][1] *= s.right
	}
	return n, ok
}

func (s *Spatial) Err() error { return s.Streamer.Err() }

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

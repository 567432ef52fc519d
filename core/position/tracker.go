// Package position tracks how far into the current track playback is.
package position

import (
	"math"
	"time"

	"SonicPlayer/model"
)

// Clock is a transport that keeps its own playhead.
type Clock interface {
	CurrentTime() float64
	Duration() float64
}

// Reading is one tracker sample.
type Reading struct {
	Current  float64
	Duration float64
	// Ended is true only on the reading that first reached the end.
	Ended bool
}

// Tracker 播放位置追踪器
//
// In file mode the position is a frame count advanced by the tick interval scaled with the
// playback rate. In stream mode the transport clock is read as is. Not safe for concurrent
// use; the controller owns it from its control goroutine.
type Tracker struct {
	tick time.Duration
	mode model.PlaybackMode

	sampleRate  float64
	totalFrames int64
	frames      float64

	clock      Clock
	streamPos  float64
	streamLive bool

	ended bool
}

func NewTracker(tick time.Duration) *Tracker {
	return &Tracker{tick: tick}
}

// Interval is the polling interval the tracker advances by.
func (t *Tracker) Interval() time.Duration {
	return t.tick
}

// ResetFile starts tracking a file of totalFrames at sampleRate from frame 0.
func (t *Tracker) ResetFile(sampleRate float64, totalFrames int64) {
	*t = Tracker{
		tick:        t.tick,
		mode:        model.FileBacked,
		sampleRate:  sampleRate,
		totalFrames: totalFrames,
	}
}

// ResetStream follows clock. A live stream has no end.
func (t *Tracker) ResetStream(clock Clock, live bool) {
	*t = Tracker{
		tick:       t.tick,
		mode:       model.StreamBacked,
		clock:      clock,
		streamLive: live,
	}
}

// Clear forgets the current track.
func (t *Tracker) Clear() {
	*t = Tracker{tick: t.tick}
}

func (t *Tracker) Mode() model.PlaybackMode {
	return t.mode
}

// ToleranceFrames is one tick worth of frames at unit rate. Positions closer than this
// to the end count as the end.
func (t *Tracker) ToleranceFrames() int64 {
	return int64(math.Round(t.sampleRate * t.tick.Seconds()))
}

func (t *Tracker) toleranceSeconds() float64 {
	return t.tick.Seconds()
}

// Frame is the current file position in frames.
func (t *Tracker) Frame() int64 {
	return int64(t.frames)
}

func (t *Tracker) TotalFrames() int64 {
	return t.totalFrames
}

// Current is the position in seconds.
func (t *Tracker) Current() float64 {
	switch t.mode {
	case model.FileBacked:
		if t.sampleRate <= 0 {
			return 0
		}
		return t.frames / t.sampleRate
	case model.StreamBacked:
		if t.clock != nil && !t.ended {
			t.streamPos = t.clock.CurrentTime()
		}
		return t.streamPos
	}
	return 0
}

// Duration is the total length in seconds, 0 when unknown or live.
func (t *Tracker) Duration() float64 {
	switch t.mode {
	case model.FileBacked:
		if t.sampleRate <= 0 {
			return 0
		}
		return float64(t.totalFrames) / t.sampleRate
	case model.StreamBacked:
		if t.streamLive || t.clock == nil {
			return 0
		}
		return t.clock.Duration()
	}
	return 0
}

func (t *Tracker) Ended() bool {
	return t.ended
}

// NearEnd reports whether the position is within one tick of the end.
func (t *Tracker) NearEnd() bool {
	if t.ended {
		return true
	}
	switch t.mode {
	case model.FileBacked:
		return t.totalFrames-int64(t.frames) <= t.ToleranceFrames()
	case model.StreamBacked:
		d := t.Duration()
		return d > 0 && d-t.Current() <= t.toleranceSeconds()
	}
	return false
}

// Advance moves the position forward by one tick at rate and returns the new reading.
// The end is signalled once; later calls keep the position clamped at the total.
func (t *Tracker) Advance(rate float64) Reading {
	if t.ended {
		return Reading{Current: t.Current(), Duration: t.Duration()}
	}
	if t.mode == model.FileBacked {
		if rate <= 0 {
			rate = 1
		}
		t.frames += t.sampleRate * t.tick.Seconds() * rate
	}
	r := Reading{Current: t.Current(), Duration: t.Duration()}
	if t.reachedEnd() {
		t.MarkEnded()
		r.Current = t.Current()
		r.Ended = true
	}
	return r
}

func (t *Tracker) reachedEnd() bool {
	switch t.mode {
	case model.FileBacked:
		// rounding guard: a remainder shorter than one frame at the sample rate is the end
		return t.frames >= float64(t.totalFrames)-0.5
	case model.StreamBacked:
		d := t.Duration()
		return d > 0 && t.Current() >= d
	}
	return false
}

// MarkEnded clamps the position to the total. It returns false when the end was already
// signalled.
func (t *Tracker) MarkEnded() bool {
	if t.ended {
		return false
	}
	t.ended = true
	switch t.mode {
	case model.FileBacked:
		t.frames = float64(t.totalFrames)
	case model.StreamBacked:
		if d := t.Duration(); d > 0 {
			t.streamPos = d
		} else if t.clock != nil {
			t.streamPos = t.clock.CurrentTime()
		}
	}
	return true
}

// Point is a resolved position: seconds plus, in file mode, the frame it maps to.
type Point struct {
	Seconds float64
	Frame   int64
}

// Point returns the current position.
func (t *Tracker) Point() Point {
	return Point{Seconds: t.Current(), Frame: t.Frame()}
}

// Resolve clamps seconds into [0, duration) without moving the tracker. atEnd is true
// when the target lies within one tick of the end; the caller runs the end transition
// instead of seeking.
func (t *Tracker) Resolve(seconds float64) (p Point, atEnd bool) {
	if math.IsNaN(seconds) || seconds < 0 {
		seconds = 0
	}
	switch t.mode {
	case model.FileBacked:
		frame := int64(seconds * t.sampleRate)
		if frame >= t.totalFrames || t.totalFrames-frame <= t.ToleranceFrames() {
			return Point{Seconds: t.Duration(), Frame: t.totalFrames}, true
		}
		return Point{Seconds: float64(frame) / t.sampleRate, Frame: frame}, false
	case model.StreamBacked:
		d := t.Duration()
		if d > 0 && (seconds >= d || d-seconds <= t.toleranceSeconds()) {
			return Point{Seconds: d}, true
		}
		return Point{Seconds: seconds}, false
	}
	return Point{}, false
}

// MoveTo sets the accumulator to a resolved point.
func (t *Tracker) MoveTo(p Point) {
	switch t.mode {
	case model.FileBacked:
		t.frames = float64(p.Frame)
	case model.StreamBacked:
		t.streamPos = p.Seconds
	}
	t.ended = false
}

// Seek resolves seconds and moves there unless the target is the end.
func (t *Tracker) Seek(seconds float64) (target float64, atEnd bool) {
	p, atEnd := t.Resolve(seconds)
	if !atEnd {
		t.MoveTo(p)
	}
	return p.Seconds, atEnd
}

// Rewind returns to the start, used when an ended track is played again.
func (t *Tracker) Rewind() {
	t.frames = 0
	t.streamPos = 0
	t.ended = false
}

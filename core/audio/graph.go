// Package audio defines the platform facing surfaces the playback engine drives: the node
// graph used for file playback with effects, and the transport used for streams.
// Implementations live in the speaker (beep) and headless subpackages.
package audio

import (
	"context"
	"errors"
	"time"
)

// BandCount is the number of equalizer bands in the graph.
const BandCount = 10

// BandFrequencies are the centre frequencies of the equalizer bands in Hz.
var BandFrequencies = [BandCount]float64{32, 64, 125, 250, 500, 1000, 2000, 4000, 8000, 16000}

var (
	ErrGraphStopped     = errors.New("audio graph is not running")
	ErrNoSegment        = errors.New("no segment scheduled")
	ErrSeekUnsupported  = errors.New("stream does not support seeking")
	ErrUnsupportedCodec = errors.New("unsupported audio format")
)

// Point3D is a listener relative source position.
type Point3D struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

// EffectSettings is the complete parameter set of the processing stages. It is always
// applied as a whole so a preset change is never observed half way.
type EffectSettings struct {
	BandGains [BandCount]float64 `json:"bandGains"`

	Rate  float64 `json:"rate"`
	Pitch float64 `json:"pitch"` // cents

	ReverbWetDryMix float64 `json:"reverbWetDryMix"`
	ReverbPreset    string  `json:"reverbPreset"`

	DelayTime      float64 `json:"delayTime"` // seconds
	DelayFeedback  float64 `json:"delayFeedback"`
	DelayWetDryMix float64 `json:"delayWetDryMix"`

	DistortionWetDryMix float64 `json:"distortionWetDryMix"`
	DistortionPreset    string  `json:"distortionPreset"`

	CompressorEnabled bool `json:"compressorEnabled"`

	Position Point3D `json:"position"`
}

// EffectSink receives effect parameters. Apply must not block the render path for longer
// than a parameter swap.
type EffectSink interface {
	ApplyEffects(s EffectSettings)
}

// File is an opened, fully decodable audio resource.
type File interface {
	Path() string
	SampleRate() float64
	Frames() int64
	Close() error
}

// Graph is the processing graph: player node, effect stages, output.
type Graph interface {
	EffectSink

	// Start brings the graph output up. Calling it on a running graph is a no-op.
	Start() error
	// Stop halts output and drops any scheduled segment.
	Stop()
	Running() bool
	// Rebuild tears the graph down and starts it again, used after device changes.
	Rebuild() error

	Open(path string) (File, error)

	// Schedule queues frames [start, start+count) of f on the player node. done fires
	// once, from any goroutine, when the segment drains. Scheduling replaces any prior
	// segment without firing its done callback.
	Schedule(f File, start, count int64, done func()) error
	Play()
	Pause()
	// StopPlayer drops the scheduled segment without firing done.
	StopPlayer()
	PlayerPlaying() bool
}

// StreamOptions tune how the transport opens a resource.
type StreamOptions struct {
	Live         bool
	DurationHint float64
	UserAgent    string
}

// StreamEventKind is reported by stream items on their Events channel.
type StreamEventKind int

const (
	StreamEnded StreamEventKind = iota
	StreamFailed
)

type StreamEvent struct {
	Kind StreamEventKind
	Err  error
}

// StreamItem is one opened stream on the transport.
type StreamItem interface {
	Play()
	Pause()
	Seek(seconds float64) error
	// CurrentTime reports the playhead in seconds.
	CurrentTime() float64
	// Duration is 0 when unknown or live.
	Duration() float64
	Events() <-chan StreamEvent
	Close() error
}

// Transport opens stream items. Open may block on the network and must honour ctx.
type Transport interface {
	Open(ctx context.Context, url string, opts StreamOptions) (StreamItem, error)
}

// DurationSeconds converts a frame count to seconds.
func DurationSeconds(frames int64, sampleRate float64) float64 {
	if sampleRate <= 0 {
		return 0
	}
	return float64(frames) / sampleRate
}

// FramesFor converts a duration to frames.
func FramesFor(d time.Duration, sampleRate float64) int64 {
	return int64(d.Seconds() * sampleRate)
}

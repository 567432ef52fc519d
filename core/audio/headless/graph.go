// Package headless provides simulated audio backends for machines without an output
// device and for tests. Nothing is rendered; the graph records what it was asked to do
// and lets the caller drive segment completion.
package headless

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"SonicPlayer/core/audio"
)

// DefaultSampleRate is assumed for files that were not registered explicitly.
const DefaultSampleRate = 44100

// bytesPerFrame approximates 16 bit stereo PCM for unregistered files.
const bytesPerFrame = 4

type file struct {
	path       string
	sampleRate float64
	frames     int64
}

func (f *file) Path() string        { return f.path }
func (f *file) SampleRate() float64 { return f.sampleRate }
func (f *file) Frames() int64       { return f.frames }
func (f *file) Close() error        { return nil }

// Segment is the currently scheduled player segment.
type Segment struct {
	Path  string
	Start int64
	Count int64
	done  func()
}

// Graph is a simulated processing graph.
type Graph struct {
	mu sync.Mutex

	files    map[string]file
	running  bool
	playing  bool
	segment  *Segment
	settings audio.EffectSettings
	applied  int

	startErr error
	openErr  error
	schedErr error
	starts   int
	rebuilds int
}

func NewGraph() *Graph {
	return &Graph{files: make(map[string]file)}
}

// AddFile registers a decodable file with a known format.
func (g *Graph) AddFile(path string, sampleRate float64, frames int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.files[path] = file{path: path, sampleRate: sampleRate, frames: frames}
}

// FailStart makes subsequent Start and Rebuild calls fail with err. nil clears it.
func (g *Graph) FailStart(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.startErr = err
}

// FailOpen makes subsequent Open calls fail with err. nil clears it.
func (g *Graph) FailOpen(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.openErr = err
}

// FailNextSchedule makes the next Schedule call fail with err.
func (g *Graph) FailNextSchedule(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.schedErr = err
}

func (g *Graph) ApplyEffects(s audio.EffectSettings) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.settings = s
	g.applied++
}

// Settings returns the last applied effect parameters and how many times they were applied.
func (g *Graph) Settings() (audio.EffectSettings, int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.settings, g.applied
}

func (g *Graph) Start() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.startErr != nil {
		return g.startErr
	}
	if !g.running {
		g.running = true
		g.starts++
	}
	return nil
}

func (g *Graph) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.running = false
	g.playing = false
	g.segment = nil
}

func (g *Graph) Running() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running
}

func (g *Graph) Rebuild() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.running = false
	g.playing = false
	g.segment = nil
	if g.startErr != nil {
		return g.startErr
	}
	g.running = true
	g.rebuilds++
	return nil
}

// Rebuilds reports how many times the graph was rebuilt.
func (g *Graph) Rebuilds() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rebuilds
}

func (g *Graph) Open(path string) (audio.File, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.openErr != nil {
		return nil, g.openErr
	}
	if f, ok := g.files[path]; ok {
		return &f, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if info.Size() < bytesPerFrame {
		return nil, fmt.Errorf("open %s: %w", path, audio.ErrUnsupportedCodec)
	}
	return &file{path: path, sampleRate: DefaultSampleRate, frames: info.Size() / bytesPerFrame}, nil
}

func (g *Graph) Schedule(f audio.File, start, count int64, done func()) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.running {
		return audio.ErrGraphStopped
	}
	if err := g.schedErr; err != nil {
		g.schedErr = nil
		return err
	}
	g.segment = &Segment{Path: f.Path(), Start: start, Count: count, done: done}
	return nil
}

func (g *Graph) Play() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running && g.segment != nil {
		g.playing = true
	}
}

func (g *Graph) Pause() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.playing = false
}

func (g *Graph) StopPlayer() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.playing = false
	g.segment = nil
}

func (g *Graph) PlayerPlaying() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.playing
}

// CurrentSegment returns a copy of the scheduled segment, if any.
func (g *Graph) CurrentSegment() (Segment, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.segment == nil {
		return Segment{}, false
	}
	return *g.segment, true
}

// ErrNothingScheduled is returned by CompleteSegment without a scheduled segment.
var ErrNothingScheduled = errors.New("headless: nothing scheduled")

// CompleteSegment simulates the player draining the scheduled segment.
func (g *Graph) CompleteSegment() error {
	g.mu.Lock()
	seg := g.segment
	g.segment = nil
	g.playing = false
	g.mu.Unlock()

	if seg == nil {
		return ErrNothingScheduled
	}
	if seg.done != nil {
		seg.done()
	}
	return nil
}

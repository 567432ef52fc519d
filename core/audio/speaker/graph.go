package speaker

import (
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"

	"SonicPlayer/core/audio"
	"SonicPlayer/core/audio/dsp"
	"SonicPlayer/logger"
)

type file struct {
	path   string
	format beep.Format
	frames int64
}

func (f *file) Path() string        { return f.path }
func (f *file) SampleRate() float64 { return float64(f.format.SampleRate) }
func (f *file) Frames() int64       { return f.frames }
func (f *file) Close() error        { return nil }

type segment struct {
	token     uint64
	stream    beep.StreamSeekCloser
	resampler *beep.Resampler
	ctrl      *beep.Ctrl
	fileRate  beep.SampleRate
	proc      *dsp.Processor
	done      func()
}

// Graph is the beep backed processing graph:
// decoder -> resampler (rate) -> equalizer -> pitch -> reverb -> delay -> distortion -> compressor -> spatial -> speaker.
type Graph struct {
	sampleRate int
	buffer     time.Duration

	mu       sync.Mutex
	running  bool
	seg      *segment
	token    uint64
	settings audio.EffectSettings
}

func NewGraph(sampleRate int, buffer time.Duration) *Graph {
	return &Graph{
		sampleRate: sampleRate,
		buffer:     buffer,
		settings:   audio.EffectSettings{Rate: 1},
	}
}

func (g *Graph) Start() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running {
		return nil
	}
	if err := Init(g.sampleRate, g.buffer); err != nil {
		return err
	}
	if err := speaker.Resume(); err != nil {
		return err
	}
	g.running = true
	return nil
}

func (g *Graph) Stop() {
	g.StopPlayer()
	g.mu.Lock()
	defer g.mu.Unlock()
	g.running = false
}

func (g *Graph) Running() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running
}

// Rebuild drops the scheduled segment and reopens output.
func (g *Graph) Rebuild() error {
	g.Stop()
	logger.Info("rebuilding speaker graph")
	return g.Start()
}

func (g *Graph) Open(path string) (audio.File, error) {
	s, format, err := decodeFile(path)
	if err != nil {
		return nil, err
	}
	defer s.Close()
	return &file{path: path, format: format, frames: int64(s.Len())}, nil
}

// ratio combines sample rate conversion with the playback rate.
func (g *Graph) ratio(fileRate beep.SampleRate) float64 {
	rate := g.settings.Rate
	if rate <= 0 {
		rate = 1
	}
	return float64(fileRate) / float64(outputRate) * rate
}

func (g *Graph) Schedule(f audio.File, start, count int64, done func()) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.running {
		return audio.ErrGraphStopped
	}

	stream, format, err := decodeFile(f.Path())
	if err != nil {
		return err
	}
	if start > 0 {
		if err := stream.Seek(int(start)); err != nil {
			stream.Close()
			return err
		}
	}

	g.dropSegmentLocked()
	g.token++
	token := g.token

	resampler := beep.ResampleRatio(resampleQuality, g.ratio(format.SampleRate), beep.Take(int(count), stream))
	ctrl := &beep.Ctrl{Streamer: resampler, Paused: true}
	// every segment gets its own stage chain so a detached segment never shares state
	proc := dsp.NewProcessor(outputRate)
	proc.Apply(g.settings)
	out := proc.Wrap(ctrl)
	g.seg = &segment{
		token:     token,
		stream:    stream,
		resampler: resampler,
		ctrl:      ctrl,
		fileRate:  format.SampleRate,
		proc:      proc,
		done:      done,
	}

	speaker.Play(beep.Seq(out, beep.Callback(func() {
		// the speaker lock is held here, g.mu must be taken elsewhere
		go g.finished(token)
	})))
	return nil
}

func (g *Graph) finished(token uint64) {
	g.mu.Lock()
	seg := g.seg
	if seg == nil || seg.token != token {
		g.mu.Unlock()
		return
	}
	g.seg = nil
	g.mu.Unlock()

	seg.stream.Close()
	if seg.done != nil {
		seg.done()
	}
}

func (g *Graph) Play() {
	g.setPaused(false)
}

func (g *Graph) Pause() {
	g.setPaused(true)
}

func (g *Graph) setPaused(paused bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.seg == nil {
		return
	}
	speaker.Lock()
	g.seg.ctrl.Paused = paused
	speaker.Unlock()
}

func (g *Graph) StopPlayer() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.dropSegmentLocked()
}

// dropSegmentLocked detaches the segment so its callback is ignored. Caller holds g.mu.
func (g *Graph) dropSegmentLocked() {
	if g.seg == nil {
		return
	}
	seg := g.seg
	g.seg = nil
	g.token++

	speaker.Lock()
	seg.ctrl.Streamer = nil
	speaker.Unlock()
	seg.stream.Close()
}

func (g *Graph) PlayerPlaying() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.seg == nil {
		return false
	}
	speaker.Lock()
	defer speaker.Unlock()
	return !g.seg.ctrl.Paused
}

func (g *Graph) ApplyEffects(s audio.EffectSettings) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.settings = s
	if g.seg == nil {
		return
	}
	speaker.Lock()
	g.seg.proc.Apply(s)
	g.seg.resampler.SetRatio(g.ratio(g.seg.fileRate))
	speaker.Unlock()
}

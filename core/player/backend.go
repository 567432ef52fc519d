package player

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"SonicPlayer/core/audio"
	"SonicPlayer/core/position"
	"SonicPlayer/logger"
	"SonicPlayer/model"
)

// backend is one playback variant. The controller only talks to this interface. Every
// method runs on the control goroutine.
type backend interface {
	Mode() model.PlaybackMode
	// Start begins output from the tracker position.
	Start() error
	Pause()
	// Resume restarts output from the frozen tracker position.
	Resume() error
	// Seek repositions to p, keeping output running when playing is true. The tracker is
	// not moved; the controller commits p once the backend accepted it.
	Seek(p position.Point, playing bool) error
	// Stop tears the backend down and releases its resources.
	Stop()
	CurrentPosition() float64
	TotalLength() float64
}

// fileBackend plays a decoded file through the effects graph.
type fileBackend struct {
	graph   audio.Graph
	file    audio.File
	tracker *position.Tracker
	cleanup func()

	// token identifies the scheduled segment; completions of replaced segments are stale
	token  uint64
	onDone func(b *fileBackend, token uint64)
}

func newFileBackend(g audio.Graph, f audio.File, t *position.Tracker, cleanup func(), onDone func(*fileBackend, uint64)) *fileBackend {
	if cleanup == nil {
		cleanup = func() {}
	}
	return &fileBackend{graph: g, file: f, tracker: t, cleanup: cleanup, onDone: onDone}
}

func (b *fileBackend) Mode() model.PlaybackMode { return model.FileBacked }

func (b *fileBackend) schedule(from int64) error {
	count := b.file.Frames() - from
	if count <= 0 {
		return nil
	}
	b.token++
	token := b.token
	return b.graph.Schedule(b.file, from, count, func() {
		b.onDone(b, token)
	})
}

func (b *fileBackend) Start() error {
	if err := b.schedule(b.tracker.Frame()); err != nil {
		return err
	}
	b.graph.Play()
	return nil
}

func (b *fileBackend) Pause() {
	b.graph.Pause()
}

// Resume reschedules from the tracker frame. The player node's own timeline is dropped
// so the audible position always matches the tracker.
func (b *fileBackend) Resume() error {
	b.graph.StopPlayer()
	return b.Start()
}

// errOutputLost means a failed seek could not restore the previous segment either.
var errOutputLost = errors.New("output lost after failed seek")

func (b *fileBackend) Seek(p position.Point, playing bool) error {
	b.graph.StopPlayer()
	err := b.schedule(p.Frame)
	if err != nil {
		// the old segment is gone; the tracker was not moved, so reschedule from it
		if rerr := b.schedule(b.tracker.Frame()); rerr != nil {
			return fmt.Errorf("%w: %v", errOutputLost, rerr)
		}
	}
	if playing {
		b.graph.Play()
	}
	return err
}

func (b *fileBackend) Stop() {
	b.token++
	b.graph.StopPlayer()
	if err := b.file.Close(); err != nil {
		logger.Warn("close audio file failed", logger.ErrorField(err))
	}
	b.cleanup()
}

func (b *fileBackend) CurrentPosition() float64 { return b.tracker.Current() }
func (b *fileBackend) TotalLength() float64     { return b.tracker.Duration() }

// current reports whether token belongs to the live segment.
func (b *fileBackend) current(token uint64) bool {
	return token == b.token
}

// streamBackend plays through the stream transport. Effects are not available.
type streamBackend struct {
	item    audio.StreamItem
	tracker *position.Tracker
	live    bool

	stop     chan struct{}
	stopOnce sync.Once
}

// newStreamBackend forwards item events to onEvent until the backend is stopped.
func newStreamBackend(item audio.StreamItem, t *position.Tracker, live bool, onEvent func(*streamBackend, audio.StreamEvent)) *streamBackend {
	b := &streamBackend{item: item, tracker: t, live: live, stop: make(chan struct{})}
	go func() {
		for {
			select {
			case ev, ok := <-item.Events():
				if !ok {
					return
				}
				onEvent(b, ev)
			case <-b.stop:
				return
			}
		}
	}()
	return b
}

func (b *streamBackend) Mode() model.PlaybackMode { return model.StreamBacked }

func (b *streamBackend) Start() error {
	b.item.Play()
	return nil
}

func (b *streamBackend) Pause() {
	b.item.Pause()
}

func (b *streamBackend) Resume() error {
	b.item.Play()
	return nil
}

func (b *streamBackend) Seek(p position.Point, playing bool) error {
	if err := b.item.Seek(p.Seconds); err != nil {
		return err
	}
	if playing {
		b.item.Play()
	}
	return nil
}

func (b *streamBackend) Stop() {
	b.stopOnce.Do(func() {
		close(b.stop)
		if err := b.item.Close(); err != nil {
			logger.Warn("close stream failed", logger.ErrorField(err))
		}
	})
}

func (b *streamBackend) CurrentPosition() float64 { return b.tracker.Current() }
func (b *streamBackend) TotalLength() float64     { return b.tracker.Duration() }

// loadResult is what a background load hands back to the control goroutine.
type loadResult struct {
	gen     uint64
	file    audio.File
	cleanup func()
	item    audio.StreamItem
	err     *Error
}

// release frees a result that will not be used.
func (r loadResult) release() {
	if r.file != nil {
		r.file.Close()
	}
	if r.cleanup != nil {
		r.cleanup()
	}
	if r.item != nil {
		r.item.Close()
	}
}

// Fetcher makes a track location available as a local file.
type Fetcher interface {
	Fetch(ctx context.Context, loc model.Location, progress func(float64)) (string, func(), error)
}

// isCancel reports whether err is the result of a superseded or stopped load.
func isCancel(err error) bool {
	return errors.Is(err, context.Canceled)
}

package player

import (
	"context"
	"errors"
	"fmt"

	"SonicPlayer/core/audio"
	"SonicPlayer/logger"
	"SonicPlayer/model"
)

var (
	errNoGraph     = errors.New("no audio graph configured")
	errNoTransport = errors.New("no stream transport configured")
	errStreamEnded = errors.New("stream failed")
)

// startLoad tears down the current backend and begins loading track in the background.
func (c *Controller) startLoad(track *model.Track) {
	c.recovery.Cancel()
	c.teardown()
	c.track = track
	c.meta = nil
	c.lastErr = nil
	c.tracker.Clear()

	loc, err := model.ParseLocation(track.URL)
	if err != nil {
		c.fail(newError(KindLoad, err))
		return
	}

	mode := track.Mode()
	c.chain.SetStreamMode(mode == model.StreamBacked)
	c.setState(model.Loading)
	c.emit(model.StatusEvent(model.StatusLoading))

	if err := c.handle.Activate(); err != nil {
		c.fail(newError(KindSession, err))
		return
	}

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if c.opts.LoadTimeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), c.opts.LoadTimeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}
	c.cancelLoad = cancel
	gen := c.gen

	logger.Info("loading track",
		logger.String("url", track.URL),
		logger.Stringer("mode", mode),
		logger.Uint64("gen", gen))

	go func() {
		var res loadResult
		if mode == model.StreamBacked {
			res = c.openStream(ctx, track)
		} else {
			res = c.openFile(ctx, gen, loc)
		}
		res.gen = gen
		c.post(func() { c.loaded(res) })
	}()
}

func (c *Controller) openStream(ctx context.Context, track *model.Track) loadResult {
	if c.transport == nil {
		return loadResult{err: newError(KindEngine, errNoTransport)}
	}
	opts := audio.StreamOptions{Live: track.IsLive, UserAgent: c.opts.UserAgent}
	if track.Duration != nil {
		opts.DurationHint = *track.Duration
	}
	item, err := c.transport.Open(ctx, track.URL, opts)
	if err != nil {
		return loadResult{err: loadError(ctx, err)}
	}
	return loadResult{item: item}
}

func (c *Controller) openFile(ctx context.Context, gen uint64, loc model.Location) loadResult {
	if c.graph == nil {
		return loadResult{err: newError(KindEngine, errNoGraph)}
	}
	progress := func(f float64) {
		// a superseded download must not report progress for the new track
		if c.liveGen.Load() == gen {
			c.bus.Publish(model.ProgressEvent(f))
		}
	}
	path, cleanup, err := c.fetcher.Fetch(ctx, loc, progress)
	if err != nil {
		return loadResult{err: loadError(ctx, err)}
	}
	f, err := c.graph.Open(path)
	if err != nil {
		cleanup()
		return loadResult{err: newError(KindLoad, fmt.Errorf("open %s: %w", path, err))}
	}
	return loadResult{file: f, cleanup: cleanup}
}

func loadError(ctx context.Context, err error) *Error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return newError(KindLoad, fmt.Errorf("load timed out: %w", err))
	}
	return newError(KindLoad, err)
}

// loaded runs on the control goroutine when a background load completes.
func (c *Controller) loaded(res loadResult) {
	if res.gen != c.gen || c.state != model.Loading {
		res.release()
		logger.Debug("stale load discarded", logger.Uint64("gen", res.gen))
		return
	}
	if c.cancelLoad != nil {
		c.cancelLoad()
		c.cancelLoad = nil
	}
	if res.err != nil {
		if isCancel(res.err) {
			return
		}
		c.fail(res.err)
		return
	}

	var b backend
	if res.item != nil {
		c.tracker.ResetStream(res.item, c.track.IsLive)
		b = newStreamBackend(res.item, c.tracker, c.track.IsLive, c.onStreamEvent)
		if c.resumeAt > 0 {
			c.seekReopened(b)
		}
	} else {
		c.tracker.ResetFile(res.file.SampleRate(), res.file.Frames())
		if err := c.ensureGraph(); err != nil {
			res.release()
			c.fail(newError(KindEngine, err))
			return
		}
		b = newFileBackend(c.graph, res.file, c.tracker, res.cleanup, c.onSegmentDone)
	}
	c.backend = b
	c.emit(model.StatusEvent(model.StatusReady))

	if err := b.Start(); err != nil {
		c.fail(newError(KindEngine, err))
		return
	}
	c.setState(model.Playing)
	c.startPolling()
	c.emitInfo()
	c.publishNowPlaying()
	logger.Info("track playing",
		logger.String("url", c.track.URL),
		logger.Stringer("mode", b.Mode()),
		logger.Float64("duration", c.tracker.Duration()))
}

// onSegmentDone is called by the graph, from any goroutine, when a scheduled segment
// drained. Only the live segment of the active backend ends the track.
func (c *Controller) onSegmentDone(b *fileBackend, token uint64) {
	c.post(func() {
		if c.backend != backend(b) || !b.current(token) || c.state != model.Playing {
			return
		}
		c.finish()
	})
}

func (c *Controller) onStreamEvent(b *streamBackend, ev audio.StreamEvent) {
	c.post(func() {
		if c.backend != backend(b) {
			return
		}
		switch ev.Kind {
		case audio.StreamEnded:
			if c.state == model.Playing || c.state == model.Paused {
				c.finish()
			}
		case audio.StreamFailed:
			err := ev.Err
			if err == nil {
				err = errStreamEnded
			}
			if c.state == model.Paused || c.state == model.Interrupted {
				c.streamFailed = true
				logger.Warn("stream failed while not playing, reopening on resume",
					logger.String("url", c.trackURL()),
					logger.ErrorField(err))
				return
			}
			c.fail(newError(KindLoad, err))
		}
	})
}

// seekReopened moves a reopened stream back to where the failed one stopped.
func (c *Controller) seekReopened(b backend) {
	at := c.resumeAt
	c.resumeAt = 0
	p, atEnd := c.tracker.Resolve(at)
	if atEnd {
		return
	}
	if err := b.Seek(p, false); err != nil {
		logger.Warn("seek in reopened stream failed", logger.Float64("target", at), logger.ErrorField(err))
		return
	}
	c.tracker.MoveTo(p)
}

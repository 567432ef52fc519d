// Package player implements the single track playback controller: one state machine
// driving either the file graph with the effect chain or the stream transport.
package player

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"SonicPlayer/core/audio"
	"SonicPlayer/core/download"
	"SonicPlayer/core/effects"
	"SonicPlayer/core/events"
	"SonicPlayer/core/interruption"
	"SonicPlayer/core/nowplaying"
	"SonicPlayer/core/position"
	"SonicPlayer/core/remote"
	"SonicPlayer/core/session"
	"SonicPlayer/logger"
	"SonicPlayer/model"
)

// Options wires a controller to its platform surfaces.
type Options struct {
	Graph     audio.Graph
	Transport audio.Transport
	// Session defaults to the process wide session.
	Session *session.Session
	// Fetcher defaults to an HTTP downloader into the OS temp directory.
	Fetcher    Fetcher
	NowPlaying nowplaying.Sink
	Catalog    *effects.Catalog
	// Ticker defaults to the wall clock.
	Ticker position.TickerFactory

	TickInterval       time.Duration
	SettleDelay        time.Duration
	EngineRestartDelay time.Duration
	// LoadTimeout bounds a load; 0 waits until the load is superseded.
	LoadTimeout time.Duration
	UserAgent   string
}

// Status 播放器状态快照
type Status struct {
	State        model.PlaybackState  `json:"state"`
	Mode         model.PlaybackMode   `json:"mode"`
	Track        *model.Track         `json:"track,omitempty"`
	CurrentTime  float64              `json:"currentTime"`
	Duration     float64              `json:"duration"`
	IsPlaying    bool                 `json:"isPlaying"`
	AmbientMode  bool                 `json:"ambientMode"`
	NeedsRebuild bool                 `json:"needsRebuild"`
	Interruption interruption.Context `json:"interruption"`
	LastError    *Error               `json:"lastError,omitempty"`
}

// Controller 播放控制器
//
// Every public call, backend signal, polling tick and session notification is executed
// on one control goroutine, so no two transitions ever overlap.
type Controller struct {
	opts      Options
	graph     audio.Graph
	transport audio.Transport
	fetcher   Fetcher
	sink      nowplaying.Sink
	tickers   position.TickerFactory

	chain  *effects.Chain
	bus    *events.Bus
	remote *remote.Center
	handle *session.Handle

	cmds     chan func()
	done     chan struct{}
	loopDone chan struct{}
	close    sync.Once

	// published load generation, read by download goroutines for progress events
	liveGen atomic.Uint64

	// owned by the control goroutine
	state        model.PlaybackState
	track        *model.Track
	meta         *model.TrackMetadata
	backend      backend
	tracker      *position.Tracker
	ticker       position.Ticker
	tickC        <-chan time.Time
	gen          uint64
	cancelLoad   context.CancelFunc
	needsRebuild bool
	// streamFailed marks a paused or interrupted stream whose item failed; resuming reopens it
	streamFailed bool
	// resumeAt is where a reopened stream continues, 0 for the start
	resumeAt     float64
	ambient      bool
	lastErr      *Error
	recovery     *interruption.Manager
}

// New builds a controller and starts its control goroutine.
func New(opts Options) *Controller {
	if opts.TickInterval <= 0 {
		opts.TickInterval = 100 * time.Millisecond
	}
	if opts.Session == nil {
		opts.Session = session.Shared()
	}
	if opts.Ticker == nil {
		opts.Ticker = position.RealTicker
	}
	if opts.Fetcher == nil {
		opts.Fetcher = download.New("", opts.UserAgent, nil)
	}
	if opts.NowPlaying == nil {
		opts.NowPlaying = nowplaying.Nop{}
	}

	c := &Controller{
		opts:      opts,
		graph:     opts.Graph,
		transport: opts.Transport,
		fetcher:   opts.Fetcher,
		sink:      opts.NowPlaying,
		tickers:   opts.Ticker,
		bus:       events.NewBus(),
		handle:    opts.Session.Acquire(),
		cmds:      make(chan func()),
		done:      make(chan struct{}),
		loopDone:  make(chan struct{}),
		tracker:   position.NewTracker(opts.TickInterval),
	}
	var sink audio.EffectSink
	if opts.Graph != nil {
		sink = opts.Graph
	}
	c.chain = effects.NewChain(sink, opts.Catalog)
	c.remote = remote.NewCenter(c, c.bus.Publish)
	c.recovery = interruption.NewManager(recoveryTarget{c}, opts.SettleDelay)

	go c.run()
	return c
}

func (c *Controller) run() {
	defer close(c.loopDone)
	notes := c.handle.Notifications()
	for {
		select {
		case fn := <-c.cmds:
			fn()
		case <-c.tickC:
			c.onTick()
		case n := <-notes:
			logger.Info("session notification", logger.Stringer("kind", n.Kind))
			c.recovery.Handle(n)
		case <-c.done:
			return
		}
	}
}

// do runs fn on the control goroutine and waits for it.
func (c *Controller) do(fn func()) bool {
	finished := make(chan struct{})
	select {
	case c.cmds <- func() { fn(); close(finished) }:
	case <-c.done:
		return false
	}
	select {
	case <-finished:
		return true
	case <-c.done:
		return false
	}
}

// post queues fn without waiting. Safe to call from any goroutine, including the render
// path and the control goroutine itself.
func (c *Controller) post(fn func()) {
	go func() {
		select {
		case c.cmds <- fn:
		case <-c.done:
		}
	}()
}

// Effects is the signal chain of this controller.
func (c *Controller) Effects() *effects.Chain { return c.chain }

// Events is the bus every event is published on.
func (c *Controller) Events() *events.Bus { return c.bus }

// Remote routes system transport commands to this controller.
func (c *Controller) Remote() *remote.Center { return c.remote }

// Session is the audio session handle held by this controller.
func (c *Controller) Session() *session.Handle { return c.handle }

// Initialize configures remote command routing.
func (c *Controller) Initialize(opts model.InitOptions) {
	c.remote.Configure(opts)
}

// Play loads and plays track. With a nil track it continues the current one: a paused
// track resumes, an ended track restarts and a failed track is loaded again.
func (c *Controller) Play(track *model.Track) {
	c.do(func() {
		if track == nil {
			c.playCurrent()
			return
		}
		if c.state == model.Playing && c.track.Equal(track) {
			logger.Debug("play ignored, track already playing", logger.String("url", track.URL))
			return
		}
		t := *track
		c.startLoad(&t)
	})
}

func (c *Controller) playCurrent() {
	switch c.state {
	case model.Paused:
		c.resumeOutput()
	case model.Ended:
		if c.backend == nil || c.backend.Mode() == model.StreamBacked {
			c.startLoad(c.track)
			return
		}
		c.tracker.Rewind()
		c.resumeOutput()
	case model.Error:
		if c.track != nil {
			c.startLoad(c.track)
		}
	case model.Idle:
		logger.Warn("play without a track")
	default:
		logger.Debug("play ignored", logger.Stringer("state", c.state))
	}
}

// Pause freezes playback. No-op unless playing.
func (c *Controller) Pause() {
	c.do(func() {
		if c.state != model.Playing {
			return
		}
		c.pauseOutput()
	})
}

// Resume continues a paused track from the frozen position. No-op unless paused.
func (c *Controller) Resume() {
	c.do(func() {
		if c.state != model.Paused {
			return
		}
		c.resumeOutput()
	})
}

// Stop tears everything down and returns to Idle. Always legal.
func (c *Controller) Stop() {
	c.do(c.stopLocked)
}

// Seek moves to seconds, clamped to the track. A target within one tick of the end ends
// the track. No-op unless playing or paused.
func (c *Controller) Seek(seconds float64) {
	c.do(func() { c.seekLocked(seconds) })
}

// CurrentTime is the playback position in seconds.
func (c *Controller) CurrentTime() float64 {
	var v float64
	c.do(func() { v = c.tracker.Current() })
	return v
}

// SetMetadataForCurrentTrack overrides the now playing record of the current track.
func (c *Controller) SetMetadataForCurrentTrack(meta model.TrackMetadata) {
	c.do(func() {
		if c.track == nil {
			logger.Warn("metadata update without a track")
			return
		}
		m := meta.WithDefaults()
		c.meta = &m
		c.publishNowPlaying()
	})
}

// ToggleAmbientMode switches the session between the playback and ambient categories
// and reports the new mode.
func (c *Controller) ToggleAmbientMode() bool {
	var enabled bool
	c.do(func() {
		wasPlaying := c.state == model.Playing
		if wasPlaying {
			c.backend.Pause()
		}

		next := !c.ambient
		category := session.CategoryPlayback
		if next {
			category = session.CategoryAmbient
		}
		if err := c.handle.SetCategory(category); err != nil {
			logger.Error("switch session category failed", logger.ErrorField(err))
			c.fail(newError(KindSession, err))
			enabled = c.ambient
			return
		}
		c.ambient = next
		enabled = next

		if wasPlaying {
			if err := c.backend.Resume(); err != nil {
				c.fail(newError(KindResume, err))
				return
			}
		}
		c.emit(model.StatusEvent(model.AmbientModeStatus(next)))
	})
	return enabled
}

// Status returns a snapshot of the controller.
func (c *Controller) Status() Status {
	var s Status
	ok := c.do(func() {
		s = Status{
			State:        c.state,
			Mode:         c.tracker.Mode(),
			CurrentTime:  c.tracker.Current(),
			Duration:     c.tracker.Duration(),
			IsPlaying:    c.state == model.Playing,
			AmbientMode:  c.ambient,
			NeedsRebuild: c.needsRebuild,
			Interruption: c.recovery.Context(),
			LastError:    c.lastErr,
		}
		if c.track != nil {
			t := *c.track
			s.Track = &t
			s.Mode = t.Mode()
		}
	})
	if !ok {
		s.State = model.Idle
	}
	return s
}

// Close stops playback, releases the session and ends the control goroutine.
func (c *Controller) Close() error {
	c.close.Do(func() {
		c.do(c.stopLocked)
		close(c.done)
		<-c.loopDone
		if err := c.handle.Close(); err != nil {
			logger.Warn("release audio session failed", logger.ErrorField(err))
		}
		c.bus.Close()
	})
	return nil
}

func (c *Controller) emit(e model.Event) {
	c.bus.Publish(e)
}

func (c *Controller) emitInfo() {
	c.emit(model.PlaybackInfoEvent(model.PlaybackInfo{
		CurrentTime: c.tracker.Current(),
		Duration:    c.tracker.Duration(),
		IsPlaying:   c.state == model.Playing,
	}))
}

func (c *Controller) setState(s model.PlaybackState) {
	if c.state == s {
		return
	}
	logger.Debug("playback state", logger.Stringer("from", c.state), logger.Stringer("to", s))
	c.state = s
}

func (c *Controller) rate() float64 {
	if c.tracker.Mode() == model.StreamBacked {
		return 1
	}
	return c.chain.Rate()
}

func (c *Controller) startPolling() {
	if c.ticker != nil {
		return
	}
	c.ticker = c.tickers(c.tracker.Interval())
	c.tickC = c.ticker.C()
}

func (c *Controller) stopPolling() {
	if c.ticker == nil {
		return
	}
	c.ticker.Stop()
	c.ticker = nil
	c.tickC = nil
}

func (c *Controller) onTick() {
	if c.state != model.Playing {
		return
	}
	rate := c.rate()
	r := c.tracker.Advance(rate)
	c.emit(model.PlaybackInfoEvent(model.PlaybackInfo{
		CurrentTime: r.Current,
		Duration:    r.Duration,
		IsPlaying:   true,
	}))
	if err := c.sink.UpdateProgress(r.Current, rate); err != nil {
		logger.Warn("now playing progress update failed", logger.ErrorField(err))
	}
	if r.Ended {
		c.finish()
	}
}

// finish runs the end of track transition.
func (c *Controller) finish() {
	c.tracker.MarkEnded()
	c.stopPolling()
	if c.backend != nil {
		c.backend.Pause()
	}
	c.setState(model.Ended)
	c.emit(model.StatusEvent(model.StatusEnded))
	c.emitInfo()
	if err := c.sink.UpdateProgress(c.tracker.Current(), 0); err != nil {
		logger.Warn("now playing progress update failed", logger.ErrorField(err))
	}
	logger.Info("track ended", logger.String("url", c.trackURL()))
}

func (c *Controller) pauseOutput() {
	c.backend.Pause()
	c.stopPolling()
	c.setState(model.Paused)
	c.emitInfo()
	if err := c.sink.UpdateProgress(c.tracker.Current(), 0); err != nil {
		logger.Warn("now playing progress update failed", logger.ErrorField(err))
	}
}

// restartOutput resumes the backend from the tracker position, rebuilding the graph
// first when a device change asked for it.
func (c *Controller) restartOutput() *Error {
	if c.backend == nil {
		return newError(KindResume, ErrNoTrack)
	}
	if err := c.handle.Activate(); err != nil {
		return newError(KindSession, err)
	}
	if c.backend.Mode() == model.FileBacked {
		if err := c.ensureGraph(); err != nil {
			return newError(KindEngine, err)
		}
	}
	if err := c.backend.Resume(); err != nil {
		return newError(KindResume, err)
	}
	c.setState(model.Playing)
	c.startPolling()
	c.emitInfo()
	if err := c.sink.UpdateProgress(c.tracker.Current(), c.rate()); err != nil {
		logger.Warn("now playing progress update failed", logger.ErrorField(err))
	}
	return nil
}

func (c *Controller) resumeOutput() {
	if c.streamFailed {
		c.reopenStream()
		return
	}
	if err := c.restartOutput(); err != nil {
		logger.Error("resume failed", logger.ErrorField(err))
		c.fail(err)
	}
}

// reopenStream loads the failed stream again. A stream with a known length continues
// from the frozen position.
func (c *Controller) reopenStream() {
	track := c.track
	at := c.tracker.Current()
	logger.Info("reopening failed stream",
		logger.String("url", track.URL),
		logger.Float64("position", at))
	c.startLoad(track)
	if c.state == model.Loading && !track.IsLive {
		c.resumeAt = at
	}
}

// ensureGraph brings the graph up, rebuilding it when flagged. A failed start is retried
// once after the engine restart delay.
func (c *Controller) ensureGraph() error {
	if c.needsRebuild {
		logger.Info("rebuilding audio graph")
		if err := c.graph.Rebuild(); err != nil {
			return err
		}
		c.needsRebuild = false
		c.chain.Reapply()
		return nil
	}
	if c.graph.Running() {
		return nil
	}
	if err := c.graph.Start(); err != nil {
		logger.Warn("audio graph start failed, retrying", logger.ErrorField(err))
		time.Sleep(c.opts.EngineRestartDelay)
		if err := c.graph.Rebuild(); err != nil {
			return err
		}
	}
	c.chain.Reapply()
	return nil
}

func (c *Controller) seekLocked(seconds float64) {
	if c.state != model.Playing && c.state != model.Paused {
		logger.Debug("seek ignored", logger.Stringer("state", c.state))
		return
	}
	playing := c.state == model.Playing
	p, atEnd := c.tracker.Resolve(seconds)
	if atEnd {
		c.finish()
		return
	}
	target := p.Seconds
	if err := c.backend.Seek(p, playing); err != nil {
		if errors.Is(err, errOutputLost) {
			c.fail(newError(KindEngine, err))
			return
		}
		logger.Warn("seek failed", logger.Float64("target", target), logger.ErrorField(err))
		return
	}
	c.tracker.MoveTo(p)
	if playing {
		// a tick that raced with the seek must not advance the new position
		c.stopPolling()
		c.startPolling()
	}
	c.emit(model.StatusEvent(model.StatusSeeked))
	c.emitInfo()
	rate := 0.0
	if playing {
		rate = c.rate()
	}
	if err := c.sink.UpdateProgress(target, rate); err != nil {
		logger.Warn("now playing progress update failed", logger.ErrorField(err))
	}
}

// teardown stops output and drops the backend and any load in flight.
func (c *Controller) teardown() {
	c.stopPolling()
	c.gen++
	c.liveGen.Store(c.gen)
	c.streamFailed = false
	c.resumeAt = 0
	if c.cancelLoad != nil {
		c.cancelLoad()
		c.cancelLoad = nil
	}
	if c.backend != nil {
		c.backend.Stop()
		c.backend = nil
	}
}

func (c *Controller) stopLocked() {
	c.recovery.Cancel()
	c.teardown()
	c.tracker.Clear()
	c.track = nil
	c.meta = nil
	c.lastErr = nil
	c.chain.SetStreamMode(false)
	c.setState(model.Idle)

	if err := c.handle.Deactivate(); err != nil {
		logger.Warn("release audio focus failed", logger.ErrorField(err))
	}
	if err := c.sink.Clear(); err != nil {
		logger.Warn("clear now playing failed", logger.ErrorField(err))
	}
	c.emitInfo()
}

// fail makes err terminal for the current track. The track is kept so a later Play can
// load it again.
func (c *Controller) fail(err *Error) {
	c.recovery.Cancel()
	c.teardown()
	c.lastErr = err
	c.setState(model.Error)
	if derr := c.handle.Deactivate(); derr != nil {
		logger.Warn("release audio focus failed", logger.ErrorField(derr))
	}
	c.emit(err.Event())
	logger.Error("playback failed",
		logger.String("kind", string(err.Kind)),
		logger.String("url", c.trackURL()),
		logger.String("error", err.Message))
}

func (c *Controller) trackURL() string {
	if c.track == nil {
		return ""
	}
	return c.track.URL
}

func (c *Controller) publishNowPlaying() {
	if c.track == nil {
		return
	}
	info := nowplaying.Info{
		Title:       c.track.Title,
		Artist:      c.track.Artist,
		Album:       c.track.Album,
		Description: c.track.Description,
		ArtworkURI:  c.track.Artwork,
		IsLive:      c.track.IsLive,
		Elapsed:     c.tracker.Current(),
		Rate:        c.rate(),
	}
	if c.track.Duration != nil {
		info.Duration = *c.track.Duration
	}
	if c.meta != nil {
		info.Title = c.meta.Title
		info.Artist = c.meta.Artist
		if c.meta.ArtworkURI != "" {
			info.ArtworkURI = c.meta.ArtworkURI
		}
		if c.meta.Duration != nil {
			info.Duration = *c.meta.Duration
		}
	}
	if info.Title == "" {
		info.Title = model.UnknownTitle
	}
	if info.Artist == "" {
		info.Artist = model.UnknownArtist
	}
	// fall back to the measured length when the host gave none
	if info.Duration <= 0 {
		info.Duration = c.tracker.Duration()
	}
	if c.state != model.Playing {
		info.Rate = 0
	}
	if err := c.sink.Publish(info); err != nil {
		logger.Warn("now playing publish failed", logger.ErrorField(err))
	}
}

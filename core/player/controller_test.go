package player

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"SonicPlayer/core/audio"
	"SonicPlayer/core/audio/headless"
	"SonicPlayer/core/download"
	"SonicPlayer/core/effects"
	"SonicPlayer/core/events"
	"SonicPlayer/core/nowplaying"
	"SonicPlayer/core/position"
	"SonicPlayer/core/remote"
	"SonicPlayer/core/session"
	"SonicPlayer/model"
)

const (
	testRate   = 48000
	testFrames = 10 * testRate // 10s
	testTick   = 100 * time.Millisecond
)

type harness struct {
	c         *Controller
	graph     *headless.Graph
	transport *headless.Transport
	ticks     *position.ManualTicks
	np        *nowplaying.Memory
	sess      *session.Session
	sub       *events.Subscription
}

func newHarness(t *testing.T, mutate ...func(*Options)) *harness {
	t.Helper()
	h := &harness{
		graph:     headless.NewGraph(),
		transport: headless.NewTransport(),
		ticks:     position.NewManualTicks(),
		np:        nowplaying.NewMemory(),
		sess:      session.New(nil),
	}
	h.graph.AddFile("song.wav", testRate, testFrames)

	opts := Options{
		Graph:        h.graph,
		Transport:    h.transport,
		Session:      h.sess,
		Fetcher:      download.New(t.TempDir(), "test-agent", nil),
		NowPlaying:   h.np,
		Ticker:       h.ticks.Factory,
		TickInterval: testTick,
		SettleDelay:  time.Millisecond,
	}
	for _, m := range mutate {
		m(&opts)
	}
	h.sess = opts.Session
	h.c = New(opts)
	h.sub = h.c.Events().Subscribe(1024)
	t.Cleanup(func() { h.c.Close() })
	return h
}

func fileTrack() *model.Track {
	return &model.Track{URL: "song.wav", Title: "Song", Artist: "Band"}
}

func streamTrack(url string, live bool) *model.Track {
	d := 30.0
	return &model.Track{URL: url, IsLive: live, UseSpatialAudio: !live, Duration: &d}
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func (h *harness) waitState(t *testing.T, want model.PlaybackState) Status {
	t.Helper()
	var s Status
	eventually(t, "state "+want.String(), func() bool {
		s = h.c.Status()
		return s.State == want
	})
	return s
}

// waitStatus drains events until a statusChange with status arrives.
func (h *harness) waitStatus(t *testing.T, status string) model.Event {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case e := <-h.sub.C():
			if e.Type == model.EventStatusChange && e.Status == status {
				return e
			}
		case <-timeout:
			t.Fatalf("no %q status event", status)
		}
	}
}

// sawStatus drains buffered events and reports whether a statusChange with status was among them.
func (h *harness) sawStatus(status string) bool {
	for {
		select {
		case e := <-h.sub.C():
			if e.Type == model.EventStatusChange && e.Status == status {
				return true
			}
		default:
			return false
		}
	}
}

// scriptedActivator fails activations on demand and records the last applied category.
type scriptedActivator struct {
	mu     sync.Mutex
	reject session.Category
	err    error
	last   session.Category
}

func (a *scriptedActivator) Activate(c session.Category) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	if a.reject != "" && c == a.reject {
		return fmt.Errorf("category %s rejected", c)
	}
	a.last = c
	return nil
}

func (a *scriptedActivator) Deactivate() error { return nil }

func (a *scriptedActivator) set(reject session.Category, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reject = reject
	a.err = err
}

func (a *scriptedActivator) lastCategory() session.Category {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.last
}

func (h *harness) playFile(t *testing.T) {
	t.Helper()
	h.c.Play(fileTrack())
	h.waitState(t, model.Playing)
}

func near(a, b float64) bool {
	d := a - b
	return d < 1e-6 && d > -1e-6
}

func TestPlayFileTrack(t *testing.T) {
	h := newHarness(t)
	h.c.Play(fileTrack())

	h.waitStatus(t, model.StatusLoading)
	h.waitStatus(t, model.StatusReady)
	s := h.waitState(t, model.Playing)

	if s.Mode != model.FileBacked || !near(s.Duration, 10) {
		t.Fatalf("unexpected status %+v", s)
	}
	seg, ok := h.graph.CurrentSegment()
	if !ok || seg.Start != 0 || seg.Count != testFrames {
		t.Fatalf("unexpected segment %+v", seg)
	}
	if !h.graph.PlayerPlaying() || !h.ticks.Polling() {
		t.Fatal("output and polling should be running")
	}
	if h.sess.Holder() != h.c.Session().ID() {
		t.Fatal("controller should hold audio focus")
	}
	info, ok := h.np.Current()
	if !ok || info.Title != "Song" || info.Artist != "Band" || !near(info.Duration, 10) {
		t.Fatalf("unexpected now playing %+v", info)
	}
}

func TestPlaySameTrackIsNoop(t *testing.T) {
	h := newHarness(t)
	h.playFile(t)
	h.ticks.TickN(3)

	h.c.Play(fileTrack())
	if got := h.c.CurrentTime(); !near(got, 0.3) {
		t.Fatalf("replaying the same track should not reload, position %v", got)
	}
}

func TestTickScalesWithRate(t *testing.T) {
	h := newHarness(t)
	h.playFile(t)

	if err := h.c.Effects().SetSlowedReverb(2, 0, 0); err != nil {
		t.Fatalf("SetSlowedReverb: %v", err)
	}
	h.ticks.TickN(5)
	if got := h.c.CurrentTime(); !near(got, 1.0) {
		t.Fatalf("position = %v, want 1.0 at double rate", got)
	}
	if h.np.ProgressUpdates() < 5 {
		t.Fatalf("now playing progress updated %d times", h.np.ProgressUpdates())
	}
}

func TestPauseResumeKeepsPosition(t *testing.T) {
	h := newHarness(t)
	h.playFile(t)
	h.ticks.TickN(3)

	h.c.Pause()
	s := h.c.Status()
	if s.State != model.Paused || s.IsPlaying || h.ticks.Polling() || h.graph.PlayerPlaying() {
		t.Fatalf("pause did not freeze output: %+v", s)
	}
	if h.ticks.Tick() {
		t.Fatal("no ticker should be running while paused")
	}

	h.c.Resume()
	s = h.c.Status()
	if s.State != model.Playing || !near(s.CurrentTime, 0.3) {
		t.Fatalf("unexpected status after resume %+v", s)
	}
	seg, _ := h.graph.CurrentSegment()
	if seg.Start != 14400 {
		t.Fatalf("resume scheduled from frame %d, want 14400", seg.Start)
	}
}

func TestPauseAndResumeOutsideTheirStates(t *testing.T) {
	h := newHarness(t)
	h.c.Pause()
	h.c.Resume()
	if s := h.c.Status(); s.State != model.Idle {
		t.Fatalf("state = %v, want idle", s.State)
	}

	h.playFile(t)
	h.c.Resume()
	if s := h.c.Status(); s.State != model.Playing {
		t.Fatalf("resume while playing changed state to %v", s.State)
	}
}

func TestSeekWithinTrack(t *testing.T) {
	h := newHarness(t)
	h.playFile(t)
	starts := h.ticks.Starts()

	h.c.Seek(5)
	h.waitStatus(t, model.StatusSeeked)

	seg, _ := h.graph.CurrentSegment()
	if seg.Start != 5*testRate || seg.Count != 5*testRate {
		t.Fatalf("unexpected segment after seek %+v", seg)
	}
	if h.ticks.Starts() != starts+1 {
		t.Fatal("seek should restart polling")
	}
	h.ticks.Tick()
	if got := h.c.CurrentTime(); !near(got, 5.1) {
		t.Fatalf("position = %v, want 5.1", got)
	}
}

func TestSeekWhilePausedStaysPaused(t *testing.T) {
	h := newHarness(t)
	h.playFile(t)
	h.c.Pause()

	h.c.Seek(-3)
	s := h.c.Status()
	if s.State != model.Paused || s.CurrentTime != 0 || h.graph.PlayerPlaying() {
		t.Fatalf("unexpected status %+v", s)
	}
}

func TestSeekScheduleFailureKeepsPosition(t *testing.T) {
	h := newHarness(t)
	h.playFile(t)
	h.ticks.TickN(3)

	h.graph.FailNextSchedule(errors.New("schedule rejected"))
	h.c.Seek(5)

	s := h.c.Status()
	if s.State != model.Playing || !near(s.CurrentTime, 0.3) {
		t.Fatalf("failed seek moved playback: %+v", s)
	}
	seg, ok := h.graph.CurrentSegment()
	if !ok || seg.Start != 14400 || !h.graph.PlayerPlaying() {
		t.Fatalf("output should continue from the old position, segment %+v", seg)
	}
	if h.sawStatus(model.StatusSeeked) {
		t.Fatal("a failed seek must not report seeked")
	}
}

func TestSeekWithLostOutputFails(t *testing.T) {
	h := newHarness(t)
	h.playFile(t)
	h.graph.Stop()

	h.c.Seek(5)
	e := h.waitStatus(t, model.StatusError)
	if e.Reason != string(KindEngine) {
		t.Fatalf("reason = %q", e.Reason)
	}
	if s := h.c.Status(); s.State != model.Error {
		t.Fatalf("state = %v", s.State)
	}
}

func TestSeekNearEndEndsTrack(t *testing.T) {
	h := newHarness(t)
	h.playFile(t)

	h.c.Seek(9.95)
	h.waitStatus(t, model.StatusEnded)
	s := h.c.Status()
	if s.State != model.Ended || !near(s.CurrentTime, 10) || h.ticks.Polling() {
		t.Fatalf("unexpected status %+v", s)
	}
}

func TestTickReachesEnd(t *testing.T) {
	h := newHarness(t)
	h.playFile(t)

	delivered := h.ticks.TickN(200)
	if delivered != 100 {
		t.Fatalf("delivered %d ticks, want polling to stop after 100", delivered)
	}
	h.waitStatus(t, model.StatusEnded)
	if s := h.c.Status(); s.State != model.Ended {
		t.Fatalf("state = %v", s.State)
	}
}

func TestSegmentCompletionEndsTrack(t *testing.T) {
	h := newHarness(t)
	h.playFile(t)

	if err := h.graph.CompleteSegment(); err != nil {
		t.Fatalf("CompleteSegment: %v", err)
	}
	h.waitStatus(t, model.StatusEnded)
	h.waitState(t, model.Ended)
}

func TestCompletionWhilePausedIgnored(t *testing.T) {
	h := newHarness(t)
	h.playFile(t)
	h.c.Pause()

	if err := h.graph.CompleteSegment(); err != nil {
		t.Fatalf("CompleteSegment: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if s := h.c.Status(); s.State != model.Paused {
		t.Fatalf("state = %v, want paused", s.State)
	}
}

func TestPlayAfterEndRestarts(t *testing.T) {
	h := newHarness(t)
	h.playFile(t)
	h.c.Seek(10)
	h.waitState(t, model.Ended)

	h.c.Play(nil)
	s := h.c.Status()
	if s.State != model.Playing || s.CurrentTime != 0 {
		t.Fatalf("unexpected status %+v", s)
	}
	seg, _ := h.graph.CurrentSegment()
	if seg.Start != 0 {
		t.Fatalf("restart scheduled from %d", seg.Start)
	}
}

func TestPlayNilResumesPaused(t *testing.T) {
	h := newHarness(t)
	h.playFile(t)
	h.c.Pause()
	h.c.Play(nil)
	if s := h.c.Status(); s.State != model.Playing {
		t.Fatalf("state = %v", s.State)
	}
}

func TestInvalidURLFails(t *testing.T) {
	h := newHarness(t)
	h.c.Play(&model.Track{URL: "ftp://example.com/a.mp3"})

	e := h.waitStatus(t, model.StatusError)
	if e.Reason != string(KindLoad) {
		t.Fatalf("reason = %q", e.Reason)
	}
	s := h.c.Status()
	if s.State != model.Error || s.LastError == nil || s.LastError.Kind != KindLoad {
		t.Fatalf("unexpected status %+v", s)
	}
	if h.sess.Holder() != "" {
		t.Fatal("failure should release audio focus")
	}
}

func TestOpenFailure(t *testing.T) {
	h := newHarness(t)
	h.graph.FailOpen(audio.ErrUnsupportedCodec)
	h.c.Play(fileTrack())

	h.waitState(t, model.Error)
	if s := h.c.Status(); !errors.Is(s.LastError, audio.ErrUnsupportedCodec) {
		t.Fatalf("last error = %v", s.LastError)
	}

	// a failed track can be loaded again
	h.graph.FailOpen(nil)
	h.c.Play(nil)
	h.waitState(t, model.Playing)
}

func TestEngineStartFailure(t *testing.T) {
	h := newHarness(t)
	h.graph.FailStart(errors.New("device busy"))
	h.c.Play(fileTrack())

	e := h.waitStatus(t, model.StatusError)
	if e.Reason != string(KindEngine) {
		t.Fatalf("reason = %q", e.Reason)
	}
}

func TestHTTPDownloadReportsProgress(t *testing.T) {
	body := make([]byte, 64*1024)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "test-agent" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.Write(body)
	}))
	defer srv.Close()

	h := newHarness(t)
	h.c.Play(&model.Track{URL: srv.URL + "/track.wav"})

	timeout := time.After(2 * time.Second)
	for done := false; !done; {
		select {
		case e := <-h.sub.C():
			if e.Type == model.EventProgress && *e.Progress == 1 {
				done = true
			}
		case <-timeout:
			t.Fatal("no final progress event")
		}
	}
	s := h.waitState(t, model.Playing)
	// headless decoding assumes 4 byte frames at 44.1k
	if !near(s.Duration, float64(len(body)/4)/headless.DefaultSampleRate) {
		t.Fatalf("duration = %v", s.Duration)
	}
}

func TestNewPlayDiscardsStaleLoad(t *testing.T) {
	h := newHarness(t)
	h.transport.Hold()

	h.c.Play(streamTrack("https://a.example/one", false))
	h.waitState(t, model.Loading)
	h.c.Play(streamTrack("https://a.example/two", false))
	h.transport.Release()

	h.waitState(t, model.Playing)
	if last := h.transport.Last(); last == nil || last.URL != "https://a.example/two" {
		t.Fatalf("unexpected stream %+v", last)
	}
	if s := h.c.Status(); s.Track.URL != "https://a.example/two" {
		t.Fatalf("track = %s", s.Track.URL)
	}
}

func TestStopDuringLoad(t *testing.T) {
	h := newHarness(t)
	h.transport.Hold()
	h.c.Play(streamTrack("https://a.example/one", false))
	h.waitState(t, model.Loading)

	h.c.Stop()
	h.transport.Release()
	time.Sleep(20 * time.Millisecond)

	s := h.c.Status()
	if s.State != model.Idle || s.Track != nil {
		t.Fatalf("unexpected status %+v", s)
	}
}

func TestLoadTimeout(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.LoadTimeout = 20 * time.Millisecond })
	h.transport.Hold()
	defer h.transport.Release()

	h.c.Play(streamTrack("https://a.example/slow", false))
	s := h.waitState(t, model.Error)
	if s.LastError == nil || s.LastError.Kind != KindLoad {
		t.Fatalf("unexpected error %+v", s.LastError)
	}
}

func TestStreamPlayback(t *testing.T) {
	h := newHarness(t)
	h.c.Play(streamTrack("https://a.example/spatial", false))
	s := h.waitState(t, model.Playing)
	if s.Mode != model.StreamBacked || s.Duration != 30 {
		t.Fatalf("unexpected status %+v", s)
	}

	item := h.transport.Last()
	if !item.Playing() {
		t.Fatal("stream should be playing")
	}
	if err := h.c.Effects().SetBandGain(0, 6); !errors.Is(err, effects.ErrStreamBacked) {
		t.Fatalf("effects should be rejected in stream mode, got %v", err)
	}

	item.Advance(4)
	h.ticks.Tick()
	if got := h.c.CurrentTime(); got != 4 {
		t.Fatalf("position = %v", got)
	}

	h.c.Seek(12)
	if got := h.c.CurrentTime(); got != 12 {
		t.Fatalf("position after seek = %v", got)
	}

	item.Finish()
	h.waitState(t, model.Ended)
}

func TestLiveStream(t *testing.T) {
	h := newHarness(t)
	h.c.Play(streamTrack("https://radio.example/live", true))
	s := h.waitState(t, model.Playing)
	if s.Duration != 0 {
		t.Fatalf("live duration = %v", s.Duration)
	}

	h.c.Seek(1000)
	if s := h.c.Status(); s.State != model.Playing {
		t.Fatalf("unsupported seek should be ignored, state %v", s.State)
	}
}

func TestStreamFailure(t *testing.T) {
	h := newHarness(t)
	h.c.Play(streamTrack("https://radio.example/live", true))
	h.waitState(t, model.Playing)
	item := h.transport.Last()

	item.Fail(errors.New("connection reset"))
	e := h.waitStatus(t, model.StatusError)
	if e.Reason != string(KindLoad) {
		t.Fatalf("reason = %q", e.Reason)
	}
	if !item.Closed() {
		t.Fatal("failed stream should be closed")
	}
}

func TestPausedStreamFailureReopensOnResume(t *testing.T) {
	h := newHarness(t)
	h.c.Play(streamTrack("https://a.example/spatial", false))
	h.waitState(t, model.Playing)
	first := h.transport.Last()
	first.Advance(7)
	h.c.Pause()

	first.Fail(errors.New("connection reset"))
	time.Sleep(20 * time.Millisecond)
	if s := h.c.Status(); s.State != model.Paused || s.Track == nil {
		t.Fatalf("a paused stream failure should keep the track, got %+v", s)
	}

	h.c.Resume()
	h.waitState(t, model.Playing)
	second := h.transport.Last()
	if second == first {
		t.Fatal("resume should reopen the stream")
	}
	if !first.Closed() {
		t.Fatal("the failed item should be closed")
	}
	if !second.Playing() || second.CurrentTime() != 7 {
		t.Fatalf("reopened stream playing=%v at %v, want 7", second.Playing(), second.CurrentTime())
	}
	if got := h.c.CurrentTime(); got != 7 {
		t.Fatalf("position = %v", got)
	}
}

func TestPausedLiveStreamFailureReopensFromLiveEdge(t *testing.T) {
	h := newHarness(t)
	h.c.Play(streamTrack("https://radio.example/live", true))
	h.waitState(t, model.Playing)
	first := h.transport.Last()
	h.c.Pause()

	first.Fail(errors.New("connection reset"))
	time.Sleep(20 * time.Millisecond)
	h.c.Play(nil)
	h.waitState(t, model.Playing)

	second := h.transport.Last()
	if second == first || !second.Playing() || second.CurrentTime() != 0 {
		t.Fatalf("live stream should reopen at the live edge, got %+v", second)
	}
}

func TestLeavingStreamModeRestoresEffects(t *testing.T) {
	h := newHarness(t)
	h.playFile(t)
	if err := h.c.Effects().SetBandGain(3, 4); err != nil {
		t.Fatalf("SetBandGain: %v", err)
	}

	h.c.Play(streamTrack("https://a.example/spatial", false))
	h.waitState(t, model.Playing)
	h.c.Play(fileTrack())
	h.waitState(t, model.Playing)

	settings, _ := h.graph.Settings()
	if settings.BandGains[3] != 4 {
		t.Fatalf("band gain = %v after returning to file mode", settings.BandGains[3])
	}
}

func TestStopResetsEverything(t *testing.T) {
	h := newHarness(t)
	h.playFile(t)
	h.ticks.TickN(2)

	h.c.Stop()
	s := h.c.Status()
	if s.State != model.Idle || s.Track != nil || s.CurrentTime != 0 {
		t.Fatalf("unexpected status %+v", s)
	}
	if _, ok := h.np.Current(); ok {
		t.Fatal("now playing should be cleared")
	}
	if h.sess.Holder() != "" || h.ticks.Polling() {
		t.Fatal("stop should release focus and polling")
	}
	if _, ok := h.graph.CurrentSegment(); ok {
		t.Fatal("stop should drop the scheduled segment")
	}
}

func TestInterruptionResumesWhenWasPlaying(t *testing.T) {
	h := newHarness(t)
	h.playFile(t)
	h.ticks.TickN(2)

	h.sess.Post(session.Notification{Kind: session.InterruptionBegan})
	h.waitStatus(t, model.StatusInterrupted)
	s := h.c.Status()
	if s.State != model.Interrupted || !s.Interruption.WasPlaying || !s.NeedsRebuild {
		t.Fatalf("unexpected status %+v", s)
	}
	if h.graph.PlayerPlaying() {
		t.Fatal("output should be paused")
	}

	h.sess.Post(session.Notification{Kind: session.InterruptionEnded})
	h.waitStatus(t, model.StatusResumedAfterInterruption)
	s = h.c.Status()
	if s.State != model.Playing || !near(s.CurrentTime, 0.2) || s.NeedsRebuild {
		t.Fatalf("unexpected status after resume %+v", s)
	}
	if h.graph.Rebuilds() != 1 {
		t.Fatalf("graph rebuilt %d times", h.graph.Rebuilds())
	}
}

func TestInterruptionWhilePausedSettles(t *testing.T) {
	h := newHarness(t)
	h.playFile(t)
	h.c.Pause()

	h.sess.Post(session.Notification{Kind: session.InterruptionBegan})
	h.waitState(t, model.Interrupted)
	h.sess.Post(session.Notification{Kind: session.InterruptionEnded})
	h.waitState(t, model.Paused)
}

func TestStopCancelsPendingInterruptionResume(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.SettleDelay = 50 * time.Millisecond })
	h.playFile(t)

	h.sess.Post(session.Notification{Kind: session.InterruptionBegan})
	h.waitState(t, model.Interrupted)
	h.sess.Post(session.Notification{Kind: session.InterruptionEnded, ShouldResume: true})
	eventually(t, "pending resume", func() bool {
		var pending bool
		h.c.do(func() { pending = h.c.recovery.Pending() })
		return pending
	})

	h.c.Stop()
	time.Sleep(100 * time.Millisecond)

	s := h.c.Status()
	if s.State != model.Idle || s.Interruption.IsHandling {
		t.Fatalf("unexpected status %+v", s)
	}
	if h.sawStatus(model.StatusResumedAfterInterruption) {
		t.Fatal("stop should cancel the scheduled resume")
	}
	if h.graph.PlayerPlaying() || h.ticks.Polling() {
		t.Fatal("nothing should be playing after stop")
	}
}

func TestSeekWhileInterruptedIgnored(t *testing.T) {
	h := newHarness(t)
	h.playFile(t)
	h.ticks.TickN(2)

	h.sess.Post(session.Notification{Kind: session.InterruptionBegan})
	h.waitState(t, model.Interrupted)
	before, _ := h.graph.CurrentSegment()

	h.c.Seek(5)
	s := h.c.Status()
	if s.State != model.Interrupted || !near(s.CurrentTime, 0.2) {
		t.Fatalf("seek while interrupted changed playback: %+v", s)
	}
	if after, _ := h.graph.CurrentSegment(); after.Start != before.Start {
		t.Fatalf("segment moved from %d to %d", before.Start, after.Start)
	}
}

func TestInterruptionReactivationFailure(t *testing.T) {
	act := &scriptedActivator{}
	h := newHarness(t, func(o *Options) { o.Session = session.New(act) })
	h.playFile(t)

	h.sess.Post(session.Notification{Kind: session.InterruptionBegan})
	h.waitState(t, model.Interrupted)
	act.set("", errors.New("session busy"))
	h.sess.Post(session.Notification{Kind: session.InterruptionEnded, ShouldResume: true})

	e := h.waitStatus(t, model.StatusSessionError)
	if e.Reason != string(KindSession) {
		t.Fatalf("reason = %q", e.Reason)
	}
	s := h.c.Status()
	if s.State != model.Error || s.LastError == nil || s.LastError.Kind != KindSession {
		t.Fatalf("unexpected status %+v", s)
	}
	if s.Interruption.IsHandling {
		t.Fatal("a failed recovery should clear the interruption context")
	}
}

func TestRouteLossPauses(t *testing.T) {
	h := newHarness(t)
	h.playFile(t)

	h.sess.Post(session.Notification{Kind: session.RouteChanged, Reason: session.RouteOldDeviceUnavailable})
	h.waitStatus(t, model.StatusRouteChangedPaused)
	if s := h.c.Status(); s.State != model.Paused {
		t.Fatalf("state = %v", s.State)
	}

	h.sess.Post(session.Notification{Kind: session.RouteChanged, Reason: session.RouteNewDeviceAvailable})
	eventually(t, "rebuild flag", func() bool { return h.c.Status().NeedsRebuild })
	h.c.Resume()
	if h.graph.Rebuilds() != 1 {
		t.Fatalf("resume should rebuild the graph, rebuilds %d", h.graph.Rebuilds())
	}
}

func TestFocusPreemption(t *testing.T) {
	h := newHarness(t)
	h.playFile(t)

	other := New(Options{
		Graph:      headless.NewGraph(),
		Transport:  h.transport,
		Session:    h.sess,
		Ticker:     position.NewManualTicks().Factory,
		NowPlaying: nowplaying.Nop{},
	})
	defer other.Close()

	other.Play(streamTrack("https://a.example/other", false))
	h.waitState(t, model.Interrupted)

	other.Stop()
	h.waitState(t, model.Playing)
	if h.sess.Holder() != h.c.Session().ID() {
		t.Fatal("focus should return to the first controller")
	}
}

func TestToggleAmbientMode(t *testing.T) {
	h := newHarness(t)
	h.playFile(t)

	if !h.c.ToggleAmbientMode() {
		t.Fatal("first toggle should enable ambient mode")
	}
	h.waitStatus(t, model.AmbientModeStatus(true))
	if h.sess.Category() != session.CategoryAmbient {
		t.Fatalf("category = %s", h.sess.Category())
	}
	if s := h.c.Status(); s.State != model.Playing || !s.AmbientMode {
		t.Fatalf("unexpected status %+v", s)
	}

	if h.c.ToggleAmbientMode() {
		t.Fatal("second toggle should disable ambient mode")
	}
	if h.sess.Category() != session.CategoryPlayback {
		t.Fatalf("category = %s", h.sess.Category())
	}
}

func TestToggleAmbientModeActivationFailure(t *testing.T) {
	act := &scriptedActivator{}
	h := newHarness(t, func(o *Options) { o.Session = session.New(act) })
	h.playFile(t)
	act.set(session.CategoryAmbient, nil)

	if h.c.ToggleAmbientMode() {
		t.Fatal("a rejected category should leave ambient mode off")
	}
	h.waitStatus(t, model.StatusSessionError)
	if h.sess.Category() != session.CategoryPlayback {
		t.Fatalf("category = %s after a failed switch", h.sess.Category())
	}
	if s := h.c.Status(); s.AmbientMode {
		t.Fatal("status should report ambient mode off")
	}

	act.set("", nil)
	h.c.Play(nil)
	h.waitState(t, model.Playing)
	if act.lastCategory() != session.CategoryPlayback {
		t.Fatalf("reactivated with category %s", act.lastCategory())
	}
}

func TestRemoteCommands(t *testing.T) {
	h := newHarness(t)
	skip := 15.0
	h.c.Initialize(model.InitOptions{SkipForwardSeconds: &skip})
	h.playFile(t)

	if err := h.c.Remote().Dispatch(remote.Command{Kind: model.CommandSkipForward}); err != nil {
		t.Fatalf("skip forward: %v", err)
	}
	// 15s past the start of a 10s track ends it
	h.waitState(t, model.Ended)

	if err := h.c.Remote().Dispatch(remote.Command{Kind: model.CommandSkipBackward}); !errors.Is(err, remote.ErrCommandDisabled) {
		t.Fatalf("skip backward should be disabled, got %v", err)
	}
}

func TestSetMetadataForCurrentTrack(t *testing.T) {
	h := newHarness(t)
	h.c.SetMetadataForCurrentTrack(model.TrackMetadata{Title: "ignored"})
	if _, ok := h.np.Current(); ok {
		t.Fatal("metadata without a track should be ignored")
	}

	h.playFile(t)
	d := 99.0
	h.c.SetMetadataForCurrentTrack(model.TrackMetadata{ArtworkURI: "https://img/1.png", Duration: &d})
	info, _ := h.np.Current()
	if info.Title != model.UnknownTitle || info.Artist != model.UnknownArtist || info.Duration != 99 || info.ArtworkURI != "https://img/1.png" {
		t.Fatalf("unexpected now playing %+v", info)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	h := newHarness(t)
	h.playFile(t)
	h.c.Close()
	h.c.Close()

	h.c.Play(fileTrack())
	if s := h.c.Status(); s.State != model.Idle {
		t.Fatalf("closed controller reported %v", s.State)
	}
}

package interruption

import (
	"errors"
	"testing"
	"time"

	"SonicPlayer/core/session"
	"SonicPlayer/model"
)

type fakePlayer struct {
	state         model.PlaybackState
	rebuilds      int
	reactivateErr error
	resumeErr     error
	failures      []string
	statuses      []string
	delayed       []func()
	delays        []time.Duration
}

func (p *fakePlayer) State() model.PlaybackState { return p.state }
func (p *fakePlayer) EnterInterrupted()          { p.state = model.Interrupted }
func (p *fakePlayer) MarkNeedsRebuild()          { p.rebuilds++ }
func (p *fakePlayer) ReactivateSession() error   { return p.reactivateErr }
func (p *fakePlayer) SettleToPaused()            { p.state = model.Paused }
func (p *fakePlayer) PauseForRouteChange()       { p.state = model.Paused }
func (p *fakePlayer) Emit(status string)         { p.statuses = append(p.statuses, status) }

func (p *fakePlayer) ResumeFromInterruption() error {
	if p.resumeErr != nil {
		return p.resumeErr
	}
	p.state = model.Playing
	return nil
}

func (p *fakePlayer) Fail(reason string, err error) {
	p.state = model.Error
	p.failures = append(p.failures, reason)
}

func (p *fakePlayer) AfterDelay(d time.Duration, fn func()) {
	p.delays = append(p.delays, d)
	p.delayed = append(p.delayed, fn)
}

func (p *fakePlayer) runDelayed() {
	fns := p.delayed
	p.delayed = nil
	for _, fn := range fns {
		fn()
	}
}

func TestInterruptionResumesPlayback(t *testing.T) {
	p := &fakePlayer{state: model.Playing}
	m := NewManager(p, DefaultSettleDelay)

	m.Handle(session.Notification{Kind: session.InterruptionBegan})
	if p.state != model.Interrupted {
		t.Fatalf("state = %v, want interrupted", p.state)
	}
	ctx := m.Context()
	if !ctx.IsHandling || !ctx.WasPlaying || ctx.StartedAt.IsZero() {
		t.Fatalf("context = %+v", ctx)
	}
	if p.rebuilds != 1 {
		t.Errorf("rebuild not requested")
	}

	// a second begin is ignored
	m.Begin()
	if p.rebuilds != 1 {
		t.Error("duplicate begin was handled")
	}

	m.Handle(session.Notification{Kind: session.InterruptionEnded, ShouldResume: false})
	if p.state != model.Interrupted || !m.Pending() {
		t.Fatal("resume should wait for the settle delay")
	}
	if len(p.delays) != 1 || p.delays[0] != DefaultSettleDelay {
		t.Fatalf("delays = %v", p.delays)
	}
	p.runDelayed()
	if p.state != model.Playing {
		t.Fatalf("state = %v, want playing", p.state)
	}
	if len(p.statuses) != 1 || p.statuses[0] != model.StatusResumedAfterInterruption {
		t.Errorf("statuses = %v", p.statuses)
	}
	if m.Context().IsHandling {
		t.Error("context should be cleared")
	}
}

func TestPausedInterruptionHonoursHint(t *testing.T) {
	cases := []struct {
		hint bool
		want model.PlaybackState
	}{
		{hint: false, want: model.Paused},
		{hint: true, want: model.Playing},
	}
	for _, tc := range cases {
		p := &fakePlayer{state: model.Paused}
		m := NewManager(p, 0)
		m.Begin()
		if p.state != model.Interrupted || m.Context().WasPlaying {
			t.Fatalf("begin from paused: state %v ctx %+v", p.state, m.Context())
		}
		m.End(tc.hint)
		p.runDelayed()
		if p.state != tc.want {
			t.Errorf("hint=%v: state = %v, want %v", tc.hint, p.state, tc.want)
		}
	}
}

func TestReactivationFailure(t *testing.T) {
	p := &fakePlayer{state: model.Playing, reactivateErr: errors.New("busy")}
	m := NewManager(p, 0)
	m.Begin()
	m.End(true)

	if p.state != model.Error {
		t.Fatalf("state = %v, want error", p.state)
	}
	if len(p.failures) != 1 || p.failures[0] != model.StatusSessionError {
		t.Fatalf("failures = %v", p.failures)
	}
	if len(p.delayed) != 0 {
		t.Fatal("resume must not be attempted after reactivation failure")
	}
}

func TestResumeFailure(t *testing.T) {
	p := &fakePlayer{state: model.Playing, resumeErr: errors.New("no resource")}
	m := NewManager(p, 0)
	m.Begin()
	m.End(true)
	p.runDelayed()
	if len(p.failures) != 1 || p.failures[0] != model.StatusResumeError {
		t.Fatalf("failures = %v", p.failures)
	}
}

func TestCancelVoidsPendingResume(t *testing.T) {
	p := &fakePlayer{state: model.Playing}
	m := NewManager(p, 0)
	m.Begin()
	m.End(true)
	m.Cancel()
	p.state = model.Idle
	p.runDelayed()
	if p.state != model.Idle {
		t.Fatalf("cancelled resume ran, state = %v", p.state)
	}
}

func TestBeginDuringPendingResume(t *testing.T) {
	p := &fakePlayer{state: model.Paused}
	m := NewManager(p, 0)
	m.Begin()
	m.End(true)
	m.Begin()
	p.runDelayed()
	if p.state != model.Interrupted {
		t.Fatalf("stale resume ran, state = %v", p.state)
	}
	if !m.Context().WasPlaying {
		t.Error("playback was about to continue, context should say so")
	}
	m.End(false)
	p.runDelayed()
	if p.state != model.Playing {
		t.Fatalf("state = %v, want playing", p.state)
	}
}

func TestBeginOutsidePlayback(t *testing.T) {
	p := &fakePlayer{state: model.Idle}
	m := NewManager(p, 0)
	m.Begin()
	if m.Context().IsHandling || p.state != model.Idle {
		t.Fatal("idle controller should not enter interruption handling")
	}
	if p.rebuilds != 1 {
		t.Error("graph should still be marked for rebuild")
	}
}

func TestRouteChanges(t *testing.T) {
	p := &fakePlayer{state: model.Playing}
	m := NewManager(p, 0)

	m.Handle(session.Notification{Kind: session.RouteChanged, Reason: session.RouteNewDeviceAvailable})
	if p.state != model.Playing || p.rebuilds != 1 {
		t.Fatalf("new device: state %v rebuilds %d", p.state, p.rebuilds)
	}

	m.Handle(session.Notification{Kind: session.RouteChanged, Reason: session.RouteOldDeviceUnavailable})
	if p.state != model.Paused {
		t.Fatalf("device removal should pause, state = %v", p.state)
	}
	if len(p.statuses) != 1 || p.statuses[0] != model.StatusRouteChangedPaused {
		t.Errorf("statuses = %v", p.statuses)
	}

	// removal while paused is not reported again
	m.RouteChanged(session.RouteOldDeviceUnavailable)
	if len(p.statuses) != 1 {
		t.Errorf("statuses = %v", p.statuses)
	}
}

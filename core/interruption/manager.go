// Package interruption keeps playback consistent across platform interruptions and
// audio route changes.
package interruption

import (
	"time"

	"SonicPlayer/core/session"
	"SonicPlayer/logger"
	"SonicPlayer/model"
)

// DefaultSettleDelay is the pause between reactivating the session and resuming output.
const DefaultSettleDelay = 300 * time.Millisecond

// Player is the part of the controller the manager drives. Every method is called from
// the controller's control goroutine.
type Player interface {
	State() model.PlaybackState
	// EnterInterrupted pauses output when playing, freezes the position and moves to
	// Interrupted.
	EnterInterrupted()
	// MarkNeedsRebuild flags the graph for reconstruction on the next play or resume.
	MarkNeedsRebuild()
	ReactivateSession() error
	// ResumeFromInterruption restarts output from the frozen position.
	ResumeFromInterruption() error
	// SettleToPaused leaves Interrupted for Paused without touching output.
	SettleToPaused()
	// PauseForRouteChange is a user visible pause caused by a lost output device.
	PauseForRouteChange()
	Fail(reason string, err error)
	Emit(status string)
	// AfterDelay runs fn on the control goroutine after d.
	AfterDelay(d time.Duration, fn func())
}

// Context 中断上下文
type Context struct {
	WasPlaying bool      `json:"wasPlayingBeforeInterruption"`
	StartedAt  time.Time `json:"interruptionStartTime"`
	IsHandling bool      `json:"isHandlingInterruption"`
}

// Manager 中断恢复管理器
type Manager struct {
	player Player
	settle time.Duration

	ctx Context
	// epoch invalidates scheduled resumes
	epoch   uint64
	pending bool
}

func NewManager(p Player, settle time.Duration) *Manager {
	if settle < 0 {
		settle = 0
	}
	return &Manager{player: p, settle: settle}
}

// Context returns the current interruption context.
func (m *Manager) Context() Context {
	return m.ctx
}

// Pending reports whether a resume is waiting for the settle delay.
func (m *Manager) Pending() bool {
	return m.pending
}

// Handle dispatches a session notification.
func (m *Manager) Handle(n session.Notification) {
	switch n.Kind {
	case session.InterruptionBegan:
		m.Begin()
	case session.InterruptionEnded:
		m.End(n.ShouldResume)
	case session.RouteChanged:
		m.RouteChanged(n.Reason)
	}
}

// Begin starts handling an interruption.
func (m *Manager) Begin() {
	if m.ctx.IsHandling {
		if m.pending {
			// the scheduled resume is void; playback was about to continue
			m.epoch++
			m.pending = false
			m.ctx.WasPlaying = true
			m.ctx.StartedAt = time.Now()
			m.player.MarkNeedsRebuild()
			logger.Info("interruption began before pending resume, resume cancelled")
			return
		}
		logger.Debug("interruption already being handled, begin ignored")
		return
	}

	state := m.player.State()
	if state != model.Playing && state != model.Paused {
		m.player.MarkNeedsRebuild()
		logger.Debug("interruption began outside playback", logger.Stringer("state", state))
		return
	}

	m.ctx = Context{
		WasPlaying: state == model.Playing,
		StartedAt:  time.Now(),
		IsHandling: true,
	}
	m.player.EnterInterrupted()
	m.player.MarkNeedsRebuild()
	logger.Info("interruption began", logger.Bool("wasPlaying", m.ctx.WasPlaying))
}

// End finishes an interruption. shouldResume is the platform's advisory hint.
func (m *Manager) End(shouldResume bool) {
	if !m.ctx.IsHandling {
		logger.Debug("interruption ended without a matching begin")
		return
	}
	if m.pending {
		return
	}

	if err := m.player.ReactivateSession(); err != nil {
		logger.Error("audio session reactivation failed", logger.ErrorField(err))
		m.reset()
		m.player.Fail(model.StatusSessionError, err)
		return
	}

	if !m.ctx.WasPlaying && !shouldResume {
		m.reset()
		m.player.SettleToPaused()
		logger.Info("interruption ended, staying paused")
		return
	}

	m.pending = true
	epoch := m.epoch
	m.player.AfterDelay(m.settle, func() {
		if m.epoch != epoch || !m.pending {
			return
		}
		m.pending = false
		m.reset()
		if err := m.player.ResumeFromInterruption(); err != nil {
			logger.Error("resume after interruption failed", logger.ErrorField(err))
			m.player.Fail(model.StatusResumeError, err)
			return
		}
		m.player.Emit(model.StatusResumedAfterInterruption)
		logger.Info("playback resumed after interruption")
	})
}

// RouteChanged reacts to an output route change.
func (m *Manager) RouteChanged(reason session.RouteChangeReason) {
	switch reason {
	case session.RouteOldDeviceUnavailable:
		if m.player.State() == model.Playing {
			m.player.PauseForRouteChange()
			m.player.Emit(model.StatusRouteChangedPaused)
			logger.Info("output device lost, playback paused")
		}
	case session.RouteNewDeviceAvailable, session.RouteCategoryChange:
		m.player.MarkNeedsRebuild()
		logger.Debug("route changed, graph marked for rebuild", logger.Stringer("reason", reason))
	}
}

// Cancel abandons any interruption in progress, including a scheduled resume.
func (m *Manager) Cancel() {
	if m.ctx.IsHandling || m.pending {
		logger.Debug("interruption handling cancelled")
	}
	m.epoch++
	m.pending = false
	m.reset()
}

func (m *Manager) reset() {
	m.ctx = Context{}
}

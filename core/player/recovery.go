package player

import (
	"time"

	"SonicPlayer/logger"
	"SonicPlayer/model"
)

// recoveryTarget exposes the controller to the interruption manager. The manager only
// runs on the control goroutine, so these methods touch controller state directly.
type recoveryTarget struct {
	c *Controller
}

func (r recoveryTarget) State() model.PlaybackState {
	return r.c.state
}

func (r recoveryTarget) EnterInterrupted() {
	c := r.c
	if c.state == model.Playing {
		c.backend.Pause()
		c.stopPolling()
	}
	c.setState(model.Interrupted)
	c.emit(model.StatusEvent(model.StatusInterrupted))
	c.emitInfo()
	if err := c.sink.UpdateProgress(c.tracker.Current(), 0); err != nil {
		logger.Warn("now playing progress update failed", logger.ErrorField(err))
	}
}

func (r recoveryTarget) MarkNeedsRebuild() {
	r.c.needsRebuild = true
}

func (r recoveryTarget) ReactivateSession() error {
	return r.c.handle.Reactivate()
}

func (r recoveryTarget) ResumeFromInterruption() error {
	c := r.c
	if c.state != model.Interrupted {
		logger.Debug("interruption resume skipped", logger.Stringer("state", c.state))
		return nil
	}
	if c.streamFailed {
		c.reopenStream()
		return nil
	}
	if err := c.restartOutput(); err != nil {
		return err
	}
	return nil
}

func (r recoveryTarget) SettleToPaused() {
	c := r.c
	if c.state != model.Interrupted {
		return
	}
	c.setState(model.Paused)
	c.emitInfo()
}

func (r recoveryTarget) PauseForRouteChange() {
	if r.c.state == model.Playing {
		r.c.pauseOutput()
	}
}

func (r recoveryTarget) Fail(reason string, err error) {
	var perr *Error
	if e, ok := err.(*Error); ok {
		perr = e
	} else {
		perr = newError(kindForStatus(reason), err)
	}
	r.c.fail(perr)
}

func (r recoveryTarget) Emit(status string) {
	r.c.emit(model.StatusEvent(status))
}

func (r recoveryTarget) AfterDelay(d time.Duration, fn func()) {
	if d <= 0 {
		r.c.post(fn)
		return
	}
	time.AfterFunc(d, func() { r.c.post(fn) })
}

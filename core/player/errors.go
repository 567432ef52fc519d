package player

import (
	"errors"

	"SonicPlayer/model"
)

// ErrorKind classifies controller failures. The value is the reason string carried by
// the status event.
type ErrorKind string

const (
	KindLoad    ErrorKind = "load_error"
	KindEngine  ErrorKind = "engine_error"
	KindResume  ErrorKind = "resume_error"
	KindSession ErrorKind = "session_error"
)

var (
	ErrClosed  = errors.New("player closed")
	ErrNoTrack = errors.New("no track loaded")
)

// Error is a failure of the current track. It is reported through events and Status,
// never returned from the control surface.
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	err     error
}

func newError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Message: err.Error(), err: err}
}

func (e *Error) Error() string {
	return string(e.Kind) + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.err
}

// Event renders the failure as a statusChange event. Session and resume failures have
// their own status strings; load and engine failures are reported as "error".
func (e *Error) Event() model.Event {
	ev := model.ErrorEvent(string(e.Kind))
	switch e.Kind {
	case KindSession:
		ev.Status = model.StatusSessionError
	case KindResume:
		ev.Status = model.StatusResumeError
	}
	return ev
}

// kindForStatus maps the recovery manager's failure reasons onto error kinds.
func kindForStatus(status string) ErrorKind {
	switch status {
	case model.StatusSessionError:
		return KindSession
	case model.StatusResumeError:
		return KindResume
	default:
		return KindEngine
	}
}

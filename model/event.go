package model

import (
	"strconv"
	"time"
)

// EventType 事件类型
type EventType string

const (
	EventProgress     EventType = "progress"
	EventStatusChange EventType = "statusChange"
	EventPlaybackInfo EventType = "playbackInfo"
	EventMediaControl EventType = "mediaControlEvent"
)

// Status strings carried by statusChange events.
const (
	StatusLoading                  = "loading"
	StatusReady                    = "ready"
	StatusError                    = "error"
	StatusSeeked                   = "seeked"
	StatusEnded                    = "ended"
	StatusInterrupted              = "interrupted"
	StatusResumedAfterInterruption = "resumed_after_interruption"
	StatusRouteChangedPaused       = "route_changed_paused"
	StatusSessionError             = "session_error"
	StatusResumeError              = "resume_error"
)

// AmbientModeStatus formats the status emitted after toggling ambient mode.
func AmbientModeStatus(enabled bool) string {
	return "ambientMode:" + strconv.FormatBool(enabled)
}

// MediaCommand 远程控制命令
type MediaCommand string

const (
	CommandSeek          MediaCommand = "seek"
	CommandPlay          MediaCommand = "play"
	CommandPause         MediaCommand = "pause"
	CommandSkipForward   MediaCommand = "skipForward"
	CommandSkipBackward  MediaCommand = "skipBackward"
	CommandNextTrack     MediaCommand = "nextTrack"
	CommandPreviousTrack MediaCommand = "previousTrack"
)

// MediaControl describes a remote command that reached the engine.
type MediaControl struct {
	Command  MediaCommand `json:"command"`
	Position *float64     `json:"position,omitempty"`
	Seconds  *float64     `json:"seconds,omitempty"`
}

// Event is everything the engine pushes to the host.
type Event struct {
	Type      EventType     `json:"type"`
	Status    string        `json:"status,omitempty"`
	Reason    string        `json:"reason,omitempty"`
	Progress  *float64      `json:"progress,omitempty"`
	Info      *PlaybackInfo `json:"info,omitempty"`
	Media     *MediaControl `json:"media,omitempty"`
	Timestamp int64         `json:"timestamp"`
}

func StatusEvent(status string) Event {
	return Event{Type: EventStatusChange, Status: status, Timestamp: time.Now().UnixMilli()}
}

func ErrorEvent(reason string) Event {
	return Event{Type: EventStatusChange, Status: StatusError, Reason: reason, Timestamp: time.Now().UnixMilli()}
}

func ProgressEvent(fraction float64) Event {
	return Event{Type: EventProgress, Progress: &fraction, Timestamp: time.Now().UnixMilli()}
}

func PlaybackInfoEvent(info PlaybackInfo) Event {
	return Event{Type: EventPlaybackInfo, Info: &info, Timestamp: time.Now().UnixMilli()}
}

func MediaControlEvent(mc MediaControl) Event {
	return Event{Type: EventMediaControl, Media: &mc, Timestamp: time.Now().UnixMilli()}
}

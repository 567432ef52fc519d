package model

// PlaybackMode 播放后端类型
type PlaybackMode int

const (
	// FileBacked plays a fully available local file through the effects graph.
	FileBacked PlaybackMode = iota
	// StreamBacked plays through the streaming transport, no effects.
	StreamBacked
)

func (m PlaybackMode) String() string {
	if m == StreamBacked {
		return "stream"
	}
	return "file"
}

// PlaybackState 播放器状态
type PlaybackState int

const (
	Idle PlaybackState = iota
	Loading
	Playing
	Paused
	Interrupted
	Ended
	Error
)

func (s PlaybackState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	case Interrupted:
		return "interrupted"
	case Ended:
		return "ended"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalText renders the state name in JSON payloads.
func (s PlaybackState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (m PlaybackMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// PlaybackInfo is the position snapshot pushed on every tick.
type PlaybackInfo struct {
	CurrentTime float64 `json:"currentTime"`
	Duration    float64 `json:"duration"`
	IsPlaying   bool    `json:"isPlaying"`
}

// InitOptions configures remote command routing.
type InitOptions struct {
	EnableRemoteControls *bool    `json:"enableRemoteControls,omitempty"`
	SkipForwardSeconds   *float64 `json:"skipForwardSeconds,omitempty"`
	SkipBackwardSeconds  *float64 `json:"skipBackwardSeconds,omitempty"`
	EnableNextTrack      bool     `json:"enableNextTrack"`
	EnablePreviousTrack  bool     `json:"enablePreviousTrack"`
}

// RemoteControlsEnabled defaults to true when unset.
func (o InitOptions) RemoteControlsEnabled() bool {
	return o.EnableRemoteControls == nil || *o.EnableRemoteControls
}

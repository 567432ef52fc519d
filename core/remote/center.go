// Package remote routes system transport commands (lock screen, media keys, headset
// buttons) to the player and echoes them back to the host.
package remote

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"SonicPlayer/logger"
	"SonicPlayer/model"
)

var (
	ErrCommandDisabled = errors.New("remote command disabled")
	ErrUnknownCommand  = errors.New("unknown remote command")
	ErrInvalidArgument = errors.New("invalid remote command argument")
)

// Target is the playback surface remote commands drive.
type Target interface {
	Resume()
	Pause()
	Seek(seconds float64)
	CurrentTime() float64
}

// Command is one incoming transport command.
type Command struct {
	Kind model.MediaCommand `json:"command"`
	// Position is the absolute target for seek.
	Position *float64 `json:"position,omitempty"`
	// Seconds overrides the configured skip interval.
	Seconds *float64 `json:"seconds,omitempty"`
}

// Center 远程控制中心
type Center struct {
	mu      sync.RWMutex
	target  Target
	publish func(model.Event)

	enabled      bool
	skipForward  *float64
	skipBackward *float64
	nextTrack    bool
	prevTrack    bool

	onNext     func()
	onPrevious func()
}

// NewCenter builds a center with every command disabled until Configure runs.
func NewCenter(target Target, publish func(model.Event)) *Center {
	if publish == nil {
		publish = func(model.Event) {}
	}
	return &Center{target: target, publish: publish}
}

// Configure applies the initialize options.
func (c *Center) Configure(opts model.InitOptions) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.enabled = opts.RemoteControlsEnabled()
	c.skipForward = copyFloat(opts.SkipForwardSeconds)
	c.skipBackward = copyFloat(opts.SkipBackwardSeconds)
	c.nextTrack = opts.EnableNextTrack
	c.prevTrack = opts.EnablePreviousTrack

	logger.Info("remote controls configured",
		logger.Bool("enabled", c.enabled),
		logger.Bool("skipForward", c.skipForward != nil),
		logger.Bool("skipBackward", c.skipBackward != nil),
		logger.Bool("nextTrack", c.nextTrack),
		logger.Bool("previousTrack", c.prevTrack))
}

// SetTrackCallbacks installs the host's next/previous handlers.
func (c *Center) SetTrackCallbacks(next, previous func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onNext = next
	c.onPrevious = previous
}

// Enabled lists the commands currently accepted.
func (c *Center) Enabled() []model.MediaCommand {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.enabled {
		return nil
	}
	cmds := []model.MediaCommand{model.CommandSeek, model.CommandPlay, model.CommandPause}
	if c.skipForward != nil {
		cmds = append(cmds, model.CommandSkipForward)
	}
	if c.skipBackward != nil {
		cmds = append(cmds, model.CommandSkipBackward)
	}
	if c.nextTrack {
		cmds = append(cmds, model.CommandNextTrack)
	}
	if c.prevTrack {
		cmds = append(cmds, model.CommandPreviousTrack)
	}
	return cmds
}

// Dispatch runs a command against the target and echoes it as a mediaControlEvent.
func (c *Center) Dispatch(cmd Command) error {
	c.mu.RLock()
	enabled := c.enabled
	skipForward, skipBackward := c.skipForward, c.skipBackward
	nextTrack, prevTrack := c.nextTrack, c.prevTrack
	onNext, onPrevious := c.onNext, c.onPrevious
	c.mu.RUnlock()

	if !enabled {
		return fmt.Errorf("%w: %s", ErrCommandDisabled, cmd.Kind)
	}

	echo := model.MediaControl{Command: cmd.Kind}
	switch cmd.Kind {
	case model.CommandSeek:
		if cmd.Position == nil || !finite(*cmd.Position) {
			return fmt.Errorf("%w: seek needs a position", ErrInvalidArgument)
		}
		c.target.Seek(*cmd.Position)
		echo.Position = copyFloat(cmd.Position)
	case model.CommandPlay:
		c.target.Resume()
	case model.CommandPause:
		c.target.Pause()
	case model.CommandSkipForward, model.CommandSkipBackward:
		interval := skipForward
		if cmd.Kind == model.CommandSkipBackward {
			interval = skipBackward
		}
		if interval == nil {
			return fmt.Errorf("%w: %s", ErrCommandDisabled, cmd.Kind)
		}
		secs := *interval
		if cmd.Seconds != nil {
			if !finite(*cmd.Seconds) || *cmd.Seconds < 0 {
				return fmt.Errorf("%w: skip interval %v", ErrInvalidArgument, *cmd.Seconds)
			}
			secs = *cmd.Seconds
		}
		current := c.target.CurrentTime()
		if cmd.Kind == model.CommandSkipForward {
			c.target.Seek(current + secs)
		} else {
			c.target.Seek(math.Max(0, current-secs))
		}
		echo.Seconds = &secs
	case model.CommandNextTrack:
		if !nextTrack {
			return fmt.Errorf("%w: %s", ErrCommandDisabled, cmd.Kind)
		}
		if onNext != nil {
			onNext()
		}
	case model.CommandPreviousTrack:
		if !prevTrack {
			return fmt.Errorf("%w: %s", ErrCommandDisabled, cmd.Kind)
		}
		if onPrevious != nil {
			onPrevious()
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Kind)
	}

	c.publish(model.MediaControlEvent(echo))
	logger.Debug("remote command handled", logger.String("command", string(cmd.Kind)))
	return nil
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

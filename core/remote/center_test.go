package remote

import (
	"errors"
	"testing"

	"SonicPlayer/model"
)

type fakeTarget struct {
	now     float64
	seeks   []float64
	resumed int
	paused  int
}

func (f *fakeTarget) Resume()              { f.resumed++ }
func (f *fakeTarget) Pause()               { f.paused++ }
func (f *fakeTarget) Seek(s float64)       { f.seeks = append(f.seeks, s) }
func (f *fakeTarget) CurrentTime() float64 { return f.now }

func ptr(v float64) *float64 { return &v }

func newCenter(opts model.InitOptions) (*Center, *fakeTarget, *[]model.Event) {
	target := &fakeTarget{now: 10}
	var echoed []model.Event
	c := NewCenter(target, func(e model.Event) { echoed = append(echoed, e) })
	c.Configure(opts)
	return c, target, &echoed
}

func TestDisabledBeforeConfigure(t *testing.T) {
	c := NewCenter(&fakeTarget{}, nil)
	if err := c.Dispatch(Command{Kind: model.CommandPlay}); !errors.Is(err, ErrCommandDisabled) {
		t.Fatalf("err = %v", err)
	}
}

func TestRemoteControlsOptOut(t *testing.T) {
	off := false
	c, target, _ := newCenter(model.InitOptions{EnableRemoteControls: &off})
	if err := c.Dispatch(Command{Kind: model.CommandPause}); !errors.Is(err, ErrCommandDisabled) {
		t.Fatalf("err = %v", err)
	}
	if target.paused != 0 {
		t.Fatal("disabled command reached the player")
	}
	if len(c.Enabled()) != 0 {
		t.Errorf("enabled = %v", c.Enabled())
	}
}

func TestTransportCommandsEcho(t *testing.T) {
	c, target, echoed := newCenter(model.InitOptions{})

	if err := c.Dispatch(Command{Kind: model.CommandPlay}); err != nil {
		t.Fatal(err)
	}
	if err := c.Dispatch(Command{Kind: model.CommandPause}); err != nil {
		t.Fatal(err)
	}
	if err := c.Dispatch(Command{Kind: model.CommandSeek, Position: ptr(42)}); err != nil {
		t.Fatal(err)
	}
	if target.resumed != 1 || target.paused != 1 || len(target.seeks) != 1 || target.seeks[0] != 42 {
		t.Fatalf("target = %+v", target)
	}
	if len(*echoed) != 3 {
		t.Fatalf("echoed %d events", len(*echoed))
	}
	last := (*echoed)[2]
	if last.Type != model.EventMediaControl || last.Media.Command != model.CommandSeek || *last.Media.Position != 42 {
		t.Errorf("seek echo = %+v", last.Media)
	}

	if err := c.Dispatch(Command{Kind: model.CommandSeek}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("seek without position err = %v", err)
	}
	if err := c.Dispatch(Command{Kind: "rewind"}); !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("unknown err = %v", err)
	}
}

func TestSkipCommands(t *testing.T) {
	c, target, echoed := newCenter(model.InitOptions{
		SkipForwardSeconds:  ptr(15),
		SkipBackwardSeconds: ptr(30),
	})

	if err := c.Dispatch(Command{Kind: model.CommandSkipForward}); err != nil {
		t.Fatal(err)
	}
	if err := c.Dispatch(Command{Kind: model.CommandSkipBackward}); err != nil {
		t.Fatal(err)
	}
	if target.seeks[0] != 25 || target.seeks[1] != 0 {
		t.Fatalf("seeks = %v", target.seeks)
	}
	if got := *(*echoed)[1].Media.Seconds; got != 30 {
		t.Errorf("skip echo seconds = %v", got)
	}
}

func TestSkipWithoutInterval(t *testing.T) {
	c, _, _ := newCenter(model.InitOptions{})
	if err := c.Dispatch(Command{Kind: model.CommandSkipForward}); !errors.Is(err, ErrCommandDisabled) {
		t.Fatalf("err = %v", err)
	}
}

func TestTrackCallbacks(t *testing.T) {
	c, _, echoed := newCenter(model.InitOptions{EnableNextTrack: true})
	next := 0
	c.SetTrackCallbacks(func() { next++ }, nil)

	if err := c.Dispatch(Command{Kind: model.CommandNextTrack}); err != nil {
		t.Fatal(err)
	}
	if next != 1 || len(*echoed) != 1 {
		t.Fatalf("next = %d echoed = %d", next, len(*echoed))
	}
	if err := c.Dispatch(Command{Kind: model.CommandPreviousTrack}); !errors.Is(err, ErrCommandDisabled) {
		t.Fatalf("previous err = %v", err)
	}
}

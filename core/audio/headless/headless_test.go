package headless

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"SonicPlayer/core/audio"
)

func TestGraphScheduleAndComplete(t *testing.T) {
	g := NewGraph()
	g.AddFile("song.wav", 48000, 480000)

	f, err := g.Open("song.wav")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if f.SampleRate() != 48000 || f.Frames() != 480000 {
		t.Fatalf("unexpected format: %v/%v", f.SampleRate(), f.Frames())
	}

	if err := g.Schedule(f, 0, f.Frames(), nil); !errors.Is(err, audio.ErrGraphStopped) {
		t.Fatalf("scheduling on a stopped graph should fail, got %v", err)
	}
	if err := g.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	fired := 0
	if err := g.Schedule(f, 1000, f.Frames()-1000, func() { fired++ }); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	g.Play()
	if !g.PlayerPlaying() {
		t.Fatal("player should be playing")
	}

	seg, ok := g.CurrentSegment()
	if !ok || seg.Start != 1000 {
		t.Fatalf("unexpected segment %+v", seg)
	}

	if err := g.CompleteSegment(); err != nil {
		t.Fatalf("CompleteSegment: %v", err)
	}
	if fired != 1 {
		t.Fatalf("done fired %d times, want 1", fired)
	}
	if err := g.CompleteSegment(); !errors.Is(err, ErrNothingScheduled) {
		t.Fatalf("second completion should report nothing scheduled, got %v", err)
	}
}

func TestGraphStopPlayerDropsCallback(t *testing.T) {
	g := NewGraph()
	g.AddFile("a", 44100, 44100)
	_ = g.Start()
	f, _ := g.Open("a")

	fired := false
	_ = g.Schedule(f, 0, 44100, func() { fired = true })
	g.StopPlayer()

	if err := g.CompleteSegment(); !errors.Is(err, ErrNothingScheduled) {
		t.Fatalf("expected no segment after StopPlayer, got %v", err)
	}
	if fired {
		t.Fatal("StopPlayer must not fire the completion")
	}
}

func TestGraphOpenFromDisk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "raw.pcm")
	if err := os.WriteFile(path, make([]byte, 4*44100), 0o644); err != nil {
		t.Fatal(err)
	}

	g := NewGraph()
	f, err := g.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if f.Frames() != 44100 {
		t.Errorf("Frames = %d, want 44100", f.Frames())
	}

	if _, err := g.Open(filepath.Join(dir, "missing.pcm")); err == nil {
		t.Error("opening a missing file should fail")
	}
}

func TestGraphFailStart(t *testing.T) {
	g := NewGraph()
	boom := errors.New("device busy")
	g.FailStart(boom)
	if err := g.Start(); !errors.Is(err, boom) {
		t.Fatalf("Start error = %v", err)
	}
	if err := g.Rebuild(); !errors.Is(err, boom) {
		t.Fatalf("Rebuild error = %v", err)
	}
	g.FailStart(nil)
	if err := g.Rebuild(); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if g.Rebuilds() != 1 || !g.Running() {
		t.Fatal("graph should be running after a successful rebuild")
	}
}

func TestTransportItem(t *testing.T) {
	tr := NewTransport()
	item, err := tr.Open(context.Background(), "http://radio/live", audio.StreamOptions{Live: true, DurationHint: 99})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if item.Duration() != 0 {
		t.Errorf("live duration = %v, want 0", item.Duration())
	}
	if err := item.Seek(5); !errors.Is(err, audio.ErrSeekUnsupported) {
		t.Errorf("live seek error = %v", err)
	}

	hi := tr.Last()
	hi.Advance(1)
	if item.CurrentTime() != 0 {
		t.Error("paused item should not advance")
	}
	item.Play()
	hi.Advance(1.5)
	if item.CurrentTime() != 1.5 {
		t.Errorf("CurrentTime = %v, want 1.5", item.CurrentTime())
	}

	hi.Finish()
	ev := <-item.Events()
	if ev.Kind != audio.StreamEnded {
		t.Errorf("event kind = %v", ev.Kind)
	}
}

func TestTransportHoldHonoursContext(t *testing.T) {
	tr := NewTransport()
	tr.Hold()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := tr.Open(ctx, "http://x", audio.StreamOptions{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("Open error = %v, want context.Canceled", err)
	}
	tr.Release()
}

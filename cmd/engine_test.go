package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"SonicPlayer/config"
	"SonicPlayer/model"
)

func headlessConfig(t *testing.T) *config.Config {
	cfg := config.FromEnv()
	cfg.AudioBackend = "headless"
	cfg.DownloadDir = filepath.Join(t.TempDir(), "downloads")
	cfg.RedisEnabled = false
	cfg.MinioEnabled = false
	cfg.PresetFile = ""
	cfg.LogConsole = true
	return cfg
}

func TestRemoteDefaults(t *testing.T) {
	cfg := &config.Config{EnableRemoteControls: true, SkipForwardSeconds: 30}
	opts := remoteDefaults(cfg)
	if !opts.RemoteControlsEnabled() {
		t.Fatal("remote controls should be enabled")
	}
	if opts.SkipForwardSeconds == nil || *opts.SkipForwardSeconds != 30 {
		t.Fatalf("skip forward %v", opts.SkipForwardSeconds)
	}
	if opts.SkipBackwardSeconds != nil {
		t.Fatal("zero skip backward should stay disabled")
	}
}

func TestBuildEngineHeadless(t *testing.T) {
	cfg := headlessConfig(t)
	eng, closeEngine, err := buildEngine(context.Background(), cfg)
	if err != nil {
		t.Fatalf("buildEngine: %v", err)
	}
	defer closeEngine()

	if _, err := os.Stat(cfg.DownloadDir); err != nil {
		t.Fatalf("download dir not created: %v", err)
	}
	if got := len(eng.player.Remote().Enabled()); got != 5 {
		t.Fatalf("expected seek, play, pause and both skips, got %d", got)
	}

	// a real file on disk opens through the headless graph
	song := filepath.Join(t.TempDir(), "tone.raw")
	if err := os.WriteFile(song, make([]byte, 4*44100), 0o644); err != nil {
		t.Fatal(err)
	}
	eng.player.Play(&model.Track{URL: song, Title: "Tone"})

	deadline := time.Now().Add(2 * time.Second)
	for eng.player.Status().State != model.Playing {
		if time.Now().After(deadline) {
			t.Fatalf("state %s", eng.player.Status().State)
		}
		time.Sleep(5 * time.Millisecond)
	}
	if info, ok := eng.np.Current(); !ok || info.Title != "Tone" {
		t.Fatalf("now playing not published: %+v", info)
	}
}

func TestBuildEngineRejectsUnknownBackend(t *testing.T) {
	cfg := headlessConfig(t)
	cfg.AudioBackend = "alsa"
	if _, _, err := buildEngine(context.Background(), cfg); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestBuildEngineMissingPresetFile(t *testing.T) {
	cfg := headlessConfig(t)
	cfg.PresetFile = filepath.Join(t.TempDir(), "missing.yaml")
	if _, _, err := buildEngine(context.Background(), cfg); err == nil {
		t.Fatal("expected error for missing preset file")
	}
}

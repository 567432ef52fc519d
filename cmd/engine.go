package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"SonicPlayer/cache"
	"SonicPlayer/config"
	"SonicPlayer/core/audio"
	"SonicPlayer/core/audio/headless"
	"SonicPlayer/core/audio/speaker"
	"SonicPlayer/core/download"
	"SonicPlayer/core/effects"
	"SonicPlayer/core/nowplaying"
	"SonicPlayer/core/player"
	"SonicPlayer/core/session"
	"SonicPlayer/logger"
	"SonicPlayer/model"
	"SonicPlayer/storage"
)

// engine is a fully wired controller plus the optional backing services.
type engine struct {
	cfg     *config.Config
	player  *player.Controller
	session *session.Session
	store   *storage.Store
	np      *nowplaying.Memory
}

func initLogger(cfg *config.Config) {
	logger.InitLogger(logger.Config{
		Level:      logger.LogLevel(cfg.LogLevel),
		Console:    cfg.LogConsole,
		OutputPath: cfg.LogFile,
		MaxSize:    cfg.LogMaxSize,
		MaxBackups: cfg.LogMaxBackups,
		MaxAge:     cfg.LogMaxAge,
		Compress:   true,
	})
}

// buildEngine wires the controller from configuration. closeFn releases everything it opened.
func buildEngine(ctx context.Context, cfg *config.Config) (e *engine, closeFn func(), err error) {
	initLogger(cfg)

	var cleanups []func()
	release := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
		logger.Sync()
	}
	defer func() {
		if err != nil {
			release()
		}
	}()

	catalog := effects.DefaultCatalog()
	if cfg.PresetFile != "" {
		if catalog, err = effects.LoadCatalog(cfg.PresetFile); err != nil {
			return nil, nil, err
		}
		logger.Info("preset catalog loaded", logger.String("path", cfg.PresetFile))
	}

	e = &engine{cfg: cfg, session: session.Shared(), np: nowplaying.NewMemory()}

	fetcher := download.New(cfg.DownloadDir, cfg.HTTPUserAgent, nil)
	if cfg.MinioEnabled {
		if e.store, err = storage.NewStore(cfg); err != nil {
			return nil, nil, err
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = e.store.Ping(pingCtx)
		cancel()
		if err != nil {
			return nil, nil, fmt.Errorf("minio: %w", err)
		}
		fetcher.WithObjects(e.store)
		logger.Info("object storage ready",
			logger.String("endpoint", cfg.MinioEndpoint),
			logger.String("bucket", cfg.MinioBucket))
	}

	if err = os.MkdirAll(cfg.DownloadDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create download dir: %w", err)
	}

	var (
		graph     audio.Graph
		transport audio.Transport
	)
	switch cfg.AudioBackend {
	case "headless":
		graph, transport = headless.NewGraph(), headless.NewTransport()
	case "speaker", "":
		graph = speaker.NewGraph(cfg.SampleRate, cfg.BufferDuration)
		transport = speaker.NewTransport(cfg.SampleRate, cfg.BufferDuration, nil)
		e.session.SetActivator(speaker.Activator{SampleRate: cfg.SampleRate, Buffer: cfg.BufferDuration})
	default:
		return nil, nil, fmt.Errorf("unknown audio backend %q", cfg.AudioBackend)
	}

	sinks := nowplaying.Multi{e.np}
	if cfg.RedisEnabled {
		if err = cache.ConnectRedis(cfg); err != nil {
			return nil, nil, err
		}
		cleanups = append(cleanups, func() {
			if err := cache.CloseRedis(); err != nil {
				logger.Warn("close redis failed", logger.ErrorField(err))
			}
		})
		holder, _ := os.Hostname()
		if holder == "" {
			holder = "sonicplayer"
		}
		sinks = append(sinks, cache.NewNowPlayingCache(nil, holder, cfg.NowPlayingTTL))
	}

	e.player = player.New(player.Options{
		Graph:              graph,
		Transport:          transport,
		Session:            e.session,
		Fetcher:            fetcher,
		NowPlaying:         sinks,
		Catalog:            catalog,
		TickInterval:       cfg.TickInterval,
		SettleDelay:        cfg.SettleDelay,
		EngineRestartDelay: cfg.EngineRestartDelay,
		LoadTimeout:        cfg.LoadTimeout,
		UserAgent:          cfg.HTTPUserAgent,
	})
	cleanups = append(cleanups, func() { e.player.Close() })

	e.player.Initialize(remoteDefaults(cfg))

	if cfg.PresetFile != "" {
		watchCtx, cancel := context.WithCancel(ctx)
		cleanups = append(cleanups, cancel)
		go func() {
			err := effects.WatchCatalog(watchCtx, cfg.PresetFile, e.player.Effects().SetCatalog)
			if err != nil {
				logger.Error("preset watcher stopped", logger.ErrorField(err))
			}
		}()
	}

	logger.Info("engine ready",
		logger.String("backend", cfg.AudioBackend),
		logger.Bool("redis", cfg.RedisEnabled),
		logger.Bool("minio", cfg.MinioEnabled))
	return e, release, nil
}

// remoteDefaults maps the configured skip intervals; zero disables a skip command.
func remoteDefaults(cfg *config.Config) model.InitOptions {
	enabled := cfg.EnableRemoteControls
	opts := model.InitOptions{EnableRemoteControls: &enabled}
	if cfg.SkipForwardSeconds > 0 {
		v := cfg.SkipForwardSeconds
		opts.SkipForwardSeconds = &v
	}
	if cfg.SkipBackwardSeconds > 0 {
		v := cfg.SkipBackwardSeconds
		opts.SkipBackwardSeconds = &v
	}
	return opts
}

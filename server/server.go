package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"SonicPlayer/config"
	"SonicPlayer/core/player"
	"SonicPlayer/core/session"
	"SonicPlayer/logger"
	"SonicPlayer/storage"
)

// Deps are the components the control server exposes.
type Deps struct {
	Config  *config.Config
	Player  *player.Controller
	Session *session.Session
	// Store is optional; without it /api/tracks reports 503.
	Store *storage.Store
}

// NewRouter builds the HTTP surface around a controller. The hub must be running.
func NewRouter(d Deps, hub *EventHub) *mux.Router {
	router := mux.NewRouter()

	// 添加 CORS 中间件
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Max-Age", "86400")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status": "ok",
			"state":  d.Player.Status().State,
		})
	}).Methods(http.MethodGet)

	secret := ""
	if d.Config != nil {
		secret = d.Config.ControlJWTSecret
	}

	api := router.PathPrefix("/api").Subrouter()
	if secret != "" {
		api.Use(AuthMiddleware(secret))
	}

	ph := NewPlayerHandler(d.Player, d.Store)
	api.HandleFunc("/player/initialize", ph.InitializeHandler).Methods(http.MethodPost)
	api.HandleFunc("/player/play", ph.PlayHandler).Methods(http.MethodPost)
	api.HandleFunc("/player/pause", ph.PauseHandler).Methods(http.MethodPost)
	api.HandleFunc("/player/resume", ph.ResumeHandler).Methods(http.MethodPost)
	api.HandleFunc("/player/stop", ph.StopHandler).Methods(http.MethodPost)
	api.HandleFunc("/player/seek", ph.SeekHandler).Methods(http.MethodPost)
	api.HandleFunc("/player/status", ph.StatusHandler).Methods(http.MethodGet)
	api.HandleFunc("/player/metadata", ph.MetadataHandler).Methods(http.MethodPost)
	api.HandleFunc("/player/ambient", ph.AmbientHandler).Methods(http.MethodPost)
	api.HandleFunc("/tracks", ph.TracksHandler).Methods(http.MethodGet)

	eh := NewEffectsHandler(d.Player.Effects())
	api.HandleFunc("/effects", eh.StateHandler).Methods(http.MethodGet)
	api.HandleFunc("/effects/equalizer/bands/{band:[0-9]+}", eh.BandHandler).Methods(http.MethodPut)
	api.HandleFunc("/effects/equalizer/preset", eh.EqualizerPresetHandler).Methods(http.MethodPost)
	api.HandleFunc("/effects/equalizer/reset", eh.EqualizerResetHandler).Methods(http.MethodPost)
	api.HandleFunc("/effects/reverb", eh.ReverbHandler).Methods(http.MethodPut)
	api.HandleFunc("/effects/delay", eh.DelayHandler).Methods(http.MethodPut)
	api.HandleFunc("/effects/distortion", eh.DistortionHandler).Methods(http.MethodPut)
	api.HandleFunc("/effects/compressor", eh.CompressorHandler).Methods(http.MethodPut)
	api.HandleFunc("/effects/spatial", eh.SpatialHandler).Methods(http.MethodPut)
	api.HandleFunc("/effects/preset", eh.AudioPresetHandler).Methods(http.MethodPost)
	api.HandleFunc("/effects/slowed-reverb", eh.SlowedReverbHandler).Methods(http.MethodPut)
	api.HandleFunc("/effects/slowed-reverb/{action:enable|disable|toggle}", eh.SlowedReverbSwitchHandler).Methods(http.MethodPost)
	api.HandleFunc("/effects/slowed-reverb/preset", eh.SlowedReverbPresetHandler).Methods(http.MethodPost)
	api.HandleFunc("/presets", eh.PresetsHandler).Methods(http.MethodGet)
	api.HandleFunc("/presets/slowed-reverb/{name}", eh.SlowedReverbInfoHandler).Methods(http.MethodGet)

	plh := NewPlatformHandler(d.Player, d.Session)
	api.HandleFunc("/remote/{command}", plh.RemoteHandler).Methods(http.MethodPost)
	api.HandleFunc("/platform/interruption", plh.InterruptionHandler).Methods(http.MethodPost)
	api.HandleFunc("/platform/route", plh.RouteHandler).Methods(http.MethodPost)

	wh := NewEventsHandler(hub, d.Player, secret)
	router.HandleFunc("/ws/events", wh.WebSocketHandler)

	return router
}

// Start serves the control API until ctx is cancelled, then shuts down gracefully.
func Start(ctx context.Context, d Deps) error {
	hub := NewEventHub()
	go hub.Run()
	defer hub.Stop()

	sub := d.Player.Events().Subscribe(256)
	defer sub.Close()
	go hub.Forward(sub)

	srv := &http.Server{
		Addr:         d.Config.ServerAddr,
		Handler:      NewRouter(d, hub),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("control server starting",
			logger.String("addr", srv.Addr),
			logger.Bool("auth", d.Config.ControlJWTSecret != ""))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down control server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("control server stopped")
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("write response failed", logger.ErrorField(err))
	}
}

// decodeBody decodes an optional JSON body. An empty body leaves v untouched.
func decodeBody(r *http.Request, v interface{}) (bool, error) {
	if r.Body == nil {
		return false, nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

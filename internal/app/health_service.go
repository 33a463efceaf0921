package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/padlight/internal/bulb"
	"github.com/dokzlo13/padlight/internal/config"
)

// stateTimeout bounds the device round trip behind GET /state.
const stateTimeout = 3 * time.Second

// BulbStatus is the view of the bulb session exposed over HTTP.
type BulbStatus interface {
	Connected() bool
	ID() string
	State(ctx context.Context) (bulb.State, error)
}

// HealthService provides HTTP health check endpoints.
type HealthService struct {
	cfg    *config.Config
	bulb   BulbStatus
	server *http.Server
}

// NewHealthService creates a new HealthService.
func NewHealthService(cfg *config.Config, status BulbStatus) *HealthService {
	return &HealthService{
		cfg:  cfg,
		bulb: status,
	}
}

// Start begins the health check server if enabled.
func (s *HealthService) Start(ctx context.Context) {
	if !s.cfg.Healthcheck.Enabled {
		return
	}

	go s.run(ctx)
}

// Routes returns the health check handler.
func (s *HealthService) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "healthy"})
	})

	// Ready only while a bulb connection is established
	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		if !s.bulb.Connected() {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "disconnected"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready", "session_id": s.bulb.ID()})
	})

	r.Get("/state", s.handleState)

	return r
}

func (s *HealthService) handleState(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), stateTimeout)
	defer cancel()

	st, err := s.bulb.State(ctx)
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": s.bulb.ID(),
		"state":      st,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Debug().Err(err).Msg("Failed to write health response")
	}
}

func (s *HealthService) run(ctx context.Context) {
	addr := fmt.Sprintf("%s:%d", s.cfg.Healthcheck.Host, s.cfg.Healthcheck.Port)

	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Info().Str("addr", addr).Msg("Starting health check server")

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout.Duration())
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Health check server shutdown error")
		}
	}()

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("Health check server error")
	}
}

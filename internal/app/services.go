package app

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/padlight/internal/bulb"
	"github.com/dokzlo13/padlight/internal/config"
	"github.com/dokzlo13/padlight/internal/db"
	"github.com/dokzlo13/padlight/internal/dispatch"
	"github.com/dokzlo13/padlight/internal/eventbus"
	"github.com/dokzlo13/padlight/internal/gamepad"
	"github.com/dokzlo13/padlight/internal/ledger"
	"github.com/dokzlo13/padlight/internal/modulation"
)

// Services is a container for all application services.
// It manages service initialization order and dependencies.
type Services struct {
	cfg *config.Config

	// Core infrastructure
	Bus    *eventbus.Bus
	DB     *db.DB         // nil when the ledger is disabled
	Ledger *ledger.Ledger // nil when the ledger is disabled

	// Bulb control
	Session    *bulb.Session
	Power      *atomic.Bool
	Loops      *modulation.Manager
	Source     gamepad.Source
	Dispatcher *dispatch.Dispatcher

	Health *HealthService
}

// NewServices creates all services with proper dependency injection.
// The SDL joystick source is opened here, so this must run on the
// goroutine that later calls Run.
func NewServices(cfg *config.Config) (*Services, error) {
	source, err := gamepad.NewSDLSource()
	if err != nil {
		return nil, err
	}
	s, err := newServices(cfg, source, bulb.HTTPDialer{Timeout: cfg.Bulb.Timeout.Duration()})
	if err != nil {
		source.Close()
		return nil, err
	}
	return s, nil
}

func newServices(cfg *config.Config, source gamepad.Source, dialer bulb.Dialer) (*Services, error) {
	s := &Services{
		cfg:    cfg,
		Source: source,
		Power:  &atomic.Bool{},
	}

	s.Bus = eventbus.NewWithConfig(cfg.EventBus.GetWorkers(), cfg.EventBus.GetQueueSize())

	// Initialize database and ledger (optional)
	if cfg.Database.Path != "" {
		database, err := db.Open(cfg.Database.Path)
		if err != nil {
			s.Bus.Close(context.Background())
			return nil, err
		}
		s.DB = database
		s.Ledger = ledger.New(database.DB)
	} else {
		log.Info().Msg("No database path configured, session ledger disabled")
	}

	s.Session = bulb.NewSession(dialer, bulb.SessionConfig{
		Address:    cfg.Bulb.Address,
		Network:    cfg.Bulb.Network,
		Credential: cfg.Bulb.Credential,
		Attempts:   cfg.Bulb.ConnectAttempts,
		RetryDelay: cfg.Bulb.RetryDelay.Duration(),
	}, s.Bus)

	s.Loops = modulation.NewManager(s.Session, modulation.Config{
		Tick:               cfg.Loops.Tick.Duration(),
		BrightnessLifespan: cfg.Loops.BrightnessLifespan.Duration(),
		SceneDwell:         cfg.Loops.SceneDwell.Duration(),
		Scene:              sceneColors(cfg.Loops.Scene),
	}, s.Power.Load, s.Bus)

	s.Dispatcher = dispatch.New(dispatch.Config{
		Tick:            cfg.Input.Tick.Duration(),
		HoldThreshold:   cfg.Input.HoldThreshold.Duration(),
		AxisInterval:    cfg.Input.AxisInterval.Duration(),
		ColorScale:      cfg.Input.ColorScale,
		BrightnessScale: cfg.Input.BrightnessScale,
		Deadzone:        cfg.Input.Deadzone,
	}, s.Source, s.Session, s.Loops, s.Power, s.Bus)

	s.Health = NewHealthService(cfg, s.Session)

	return s, nil
}

// sceneColors converts configured [r, g, b] triples. nil selects the
// built-in rainbow.
func sceneColors(triples [][]int) []bulb.RGB {
	if len(triples) == 0 {
		return nil
	}
	colors := make([]bulb.RGB, 0, len(triples))
	for _, t := range triples {
		colors = append(colors, bulb.RGB{R: t[0], G: t[1], B: t[2]})
	}
	return colors
}

// Start starts background services and establishes the first bulb
// connection. A failed first connection is returned as is.
func (s *Services) Start(ctx context.Context) error {
	if s.Ledger != nil {
		ledger.Record(s.Bus, s.Ledger, s.Session.ID)
		go ledger.RunCleanup(ctx, s.Ledger, s.cfg.Ledger.CleanupInterval.Duration(), retention(s.cfg.Ledger.RetentionDays))
	}

	s.Health.Start(ctx)

	return s.Session.Connect(ctx)
}

// Run processes controller input on the calling goroutine until ctx is
// cancelled or the bulb is lost for good.
func (s *Services) Run(ctx context.Context) error {
	return s.Dispatcher.Run(ctx)
}

// Stop gracefully stops all services.
func (s *Services) Stop() error {
	s.Close()
	return nil
}

// Close releases all resources.
func (s *Services) Close() {
	if s.Loops != nil {
		s.Loops.StopAll()
	}
	if s.Source != nil {
		if err := s.Source.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close controller source")
		}
	}
	if s.Session != nil {
		if err := s.Session.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close bulb session")
		}
	}

	// Drain the bus before closing the database the ledger writes to
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout.Duration())
	defer cancel()
	s.Bus.Close(ctx)

	if s.DB != nil {
		s.DB.Close()
	}
}

func retention(days int) time.Duration {
	return time.Duration(days) * 24 * time.Hour
}

package bulb

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/padlight/internal/eventbus"
)

// SessionConfig contains bulb connection and retry settings.
type SessionConfig struct {
	Address    string
	Network    string
	Credential string

	Attempts   int           // Total connect attempts per Connect call
	RetryDelay time.Duration // Delay before every attempt after the first
}

// DefaultSessionConfig returns the retry policy used when none is configured.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Attempts:   3,
		RetryDelay: 10 * time.Second,
	}
}

type connection struct {
	id     uuid.UUID
	device Device
}

// Session owns the single connection to the bulb. Every device call is
// serialized, so a read-modify-write from one caller never interleaves with
// another caller's round trip.
type Session struct {
	dialer Dialer
	cfg    SessionConfig
	bus    *eventbus.Bus
	sleep  func(ctx context.Context, d time.Duration) error

	connectMu sync.Mutex // serializes Connect
	mu        sync.Mutex // guards conn and every device round trip
	conn      *connection
	connected atomic.Bool
}

// NewSession creates a disconnected session.
func NewSession(dialer Dialer, cfg SessionConfig, bus *eventbus.Bus) *Session {
	defaults := DefaultSessionConfig()
	if cfg.Attempts <= 0 {
		cfg.Attempts = defaults.Attempts
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaults.RetryDelay
	}

	return &Session{
		dialer: dialer,
		cfg:    cfg,
		bus:    bus,
		sleep:  sleepContext,
	}
}

// Connect (re)establishes the connection. It performs up to cfg.Attempts
// dials, waiting cfg.RetryDelay before each one after the first. Any previous
// connection is dropped first, so state calls fail fast with ErrNotConnected
// while the retry loop runs.
func (s *Session) Connect(ctx context.Context) error {
	s.connectMu.Lock()
	defer s.connectMu.Unlock()

	s.mu.Lock()
	s.dropLocked()
	s.mu.Unlock()
	s.connected.Store(false)

	var lastErr error
	for attempt := 1; attempt <= s.cfg.Attempts; attempt++ {
		if attempt > 1 {
			log.Info().
				Dur("delay", s.cfg.RetryDelay).
				Int("attempt", attempt).
				Msg("Retrying bulb connection")
			if err := s.sleep(ctx, s.cfg.RetryDelay); err != nil {
				return err
			}
		}

		device, err := s.dialer.Dial(ctx, s.cfg.Address, s.cfg.Network, s.cfg.Credential)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			log.Warn().
				Err(err).
				Str("address", s.cfg.Address).
				Int("attempt", attempt).
				Int("max_attempts", s.cfg.Attempts).
				Msg("Bulb connect attempt failed")
			continue
		}

		conn := &connection{id: uuid.New(), device: device}
		s.mu.Lock()
		s.conn = conn
		s.mu.Unlock()
		s.connected.Store(true)

		log.Info().
			Str("address", s.cfg.Address).
			Str("model", device.Model()).
			Str("session_id", conn.id.String()).
			Int("attempt", attempt).
			Msg("Connected to bulb")

		s.bus.Publish(eventbus.Event{
			Type: eventbus.EventTypeConnected,
			Data: map[string]any{
				"session_id": conn.id.String(),
				"model":      device.Model(),
				"attempt":    attempt,
			},
		})
		return nil
	}

	log.Error().
		Str("address", s.cfg.Address).
		Int("attempts", s.cfg.Attempts).
		Msg("Could not connect to bulb, giving up")

	s.bus.Publish(eventbus.Event{
		Type: eventbus.EventTypeConnectFailed,
		Data: map[string]any{
			"address":  s.cfg.Address,
			"attempts": s.cfg.Attempts,
			"error":    fmt.Sprint(lastErr),
		},
	})

	return fmt.Errorf("%w after %d attempts: %v", ErrConnectFailed, s.cfg.Attempts, lastErr)
}

// Connected reports whether the last Connect succeeded.
func (s *Session) Connected() bool {
	return s.connected.Load()
}

// ID returns the current connection's session id, or "" when disconnected.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return ""
	}
	return s.conn.id.String()
}

// State reads the bulb state.
func (s *Session) State(ctx context.Context) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return State{}, ErrNotConnected
	}
	st, err := s.conn.device.State(ctx)
	if err != nil {
		return State{}, fmt.Errorf("get state: %w", err)
	}
	return st, nil
}

// SetState applies a partial update.
func (s *Session) SetState(ctx context.Context, u Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return ErrNotConnected
	}
	if err := s.conn.device.SetState(ctx, u); err != nil {
		return fmt.Errorf("set state: %w", err)
	}
	return nil
}

// Modify reads the state, passes it to fn and writes the returned update,
// all under one lock. fn returning false skips the write.
func (s *Session) Modify(ctx context.Context, fn func(State) (Update, bool)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return ErrNotConnected
	}
	st, err := s.conn.device.State(ctx)
	if err != nil {
		return fmt.Errorf("get state: %w", err)
	}
	u, ok := fn(st)
	if !ok || u.IsEmpty() {
		return nil
	}
	if err := s.conn.device.SetState(ctx, u); err != nil {
		return fmt.Errorf("set state: %w", err)
	}
	return nil
}

// Close drops the connection.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected.Store(false)
	return s.dropLocked()
}

func (s *Session) dropLocked() error {
	if s.conn == nil {
		return nil
	}
	err := s.conn.device.Close()
	s.conn = nil
	return err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

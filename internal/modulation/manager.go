// Package modulation runs the periodic loops that keep adjusting the bulb
// while a control is held: the color wheel, the brightness ramp and the
// scene cycle.
package modulation

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/padlight/internal/bulb"
	"github.com/dokzlo13/padlight/internal/eventbus"
)

// Session is the part of the bulb session the loops need.
type Session interface {
	SetState(ctx context.Context, u bulb.Update) error
	Modify(ctx context.Context, fn func(bulb.State) (bulb.Update, bool)) error
}

// Kind identifies a loop. At most one loop of each kind runs at a time.
type Kind string

const (
	KindColorWheel Kind = "color_wheel"
	KindBrightness Kind = "brightness"
	KindScene      Kind = "scene"
)

// Config contains loop timings.
type Config struct {
	Tick               time.Duration
	BrightnessLifespan time.Duration
	SceneDwell         time.Duration
	Scene              []bulb.RGB
}

// DefaultConfig returns the standard loop timings.
func DefaultConfig() Config {
	return Config{
		Tick:               100 * time.Millisecond,
		BrightnessLifespan: 15 * time.Second,
		SceneDwell:         2500 * time.Millisecond,
		Scene:              DefaultScene,
	}
}

// Delta is a per-tick adjustment written by the dispatcher and read by loops.
type Delta struct {
	v atomic.Int64
}

// Store sets the delta.
func (d *Delta) Store(n int) {
	d.v.Store(int64(n))
}

// Load returns the delta.
func (d *Delta) Load() int {
	return int(d.v.Load())
}

type loop struct {
	kind    Kind
	cancel  context.CancelFunc
	done    chan struct{}
	started time.Time
}

// Manager starts and stops loops against a shared bulb session.
type Manager struct {
	session Session
	cfg     Config
	power   func() bool
	bus     *eventbus.Bus
	onFault func(error)

	ColorDelta      Delta
	BrightnessDelta Delta

	mu    sync.Mutex
	loops map[Kind]*loop
}

// NewManager creates a manager. power reports the last known bulb power
// state; the brightness loop stops as soon as it turns false.
func NewManager(session Session, cfg Config, power func() bool, bus *eventbus.Bus) *Manager {
	defaults := DefaultConfig()
	if cfg.Tick <= 0 {
		cfg.Tick = defaults.Tick
	}
	if cfg.BrightnessLifespan <= 0 {
		cfg.BrightnessLifespan = defaults.BrightnessLifespan
	}
	if cfg.SceneDwell <= 0 {
		cfg.SceneDwell = defaults.SceneDwell
	}
	if cfg.Scene == nil {
		cfg.Scene = defaults.Scene
	}
	if power == nil {
		power = func() bool { return true }
	}

	return &Manager{
		session: session,
		cfg:     cfg,
		power:   power,
		bus:     bus,
		loops:   make(map[Kind]*loop),
	}
}

// OnFault registers a callback for device errors that end a loop.
// Must be set before any loop starts.
func (m *Manager) OnFault(fn func(error)) {
	m.onFault = fn
}

// Running reports whether a loop of the given kind is active.
func (m *Manager) Running(kind Kind) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.loops[kind]
	return ok
}

// StartColorWheel starts ramping ch by ColorDelta every tick.
// Returns false if a color wheel is already running.
func (m *Manager) StartColorWheel(ctx context.Context, ch bulb.Channel) bool {
	return m.start(ctx, KindColorWheel, map[string]any{"channel": ch.String()}, func(ctx context.Context, l *loop) error {
		return m.colorWheel(ctx, ch)
	})
}

// StartBrightness starts ramping brightness by BrightnessDelta every tick.
// Returns false if a brightness loop is already running.
func (m *Manager) StartBrightness(ctx context.Context) bool {
	return m.start(ctx, KindBrightness, map[string]any{"lifespan": m.cfg.BrightnessLifespan.String()}, func(ctx context.Context, l *loop) error {
		return m.brightness(ctx, l.started)
	})
}

// StartScene starts cycling the scene sequence.
// Returns false if a scene loop is already running or the sequence is empty.
func (m *Manager) StartScene(ctx context.Context) bool {
	if len(m.cfg.Scene) == 0 {
		log.Warn().Msg("Scene sequence is empty, not starting scene loop")
		return false
	}
	return m.start(ctx, KindScene, map[string]any{"colors": len(m.cfg.Scene)}, func(ctx context.Context, l *loop) error {
		return m.scene(ctx)
	})
}

// ToggleScene stops a running scene loop or starts one. Returns whether a
// scene loop is running afterwards.
func (m *Manager) ToggleScene(ctx context.Context) bool {
	if m.Stop(KindScene) {
		return false
	}
	return m.StartScene(ctx)
}

// Stop cancels the loop of the given kind and waits for it to exit.
// Stopping a kind that is not running is a no-op and returns false.
func (m *Manager) Stop(kind Kind) bool {
	m.mu.Lock()
	l, ok := m.loops[kind]
	m.mu.Unlock()
	if !ok {
		return false
	}

	l.cancel()
	<-l.done
	return true
}

// StopAll stops every running loop.
func (m *Manager) StopAll() {
	for _, kind := range []Kind{KindColorWheel, KindBrightness, KindScene} {
		m.Stop(kind)
	}
}

func (m *Manager) start(ctx context.Context, kind Kind, fields map[string]any, body func(context.Context, *loop) error) bool {
	m.mu.Lock()
	if _, ok := m.loops[kind]; ok {
		m.mu.Unlock()
		return false
	}
	lctx, cancel := context.WithCancel(ctx)
	l := &loop{
		kind:    kind,
		cancel:  cancel,
		done:    make(chan struct{}),
		started: time.Now(),
	}
	m.loops[kind] = l
	m.mu.Unlock()

	log.Info().Str("loop", string(kind)).Fields(fields).Msg("Loop started")
	m.bus.Publish(eventbus.Event{
		Type: eventbus.EventTypeLoopStarted,
		Data: map[string]any{"loop": string(kind)},
	})

	go func() {
		err := body(lctx, l)
		if lctx.Err() != nil {
			// cancelled mid round trip; whatever the device said no longer matters
			err = nil
		}

		m.mu.Lock()
		if m.loops[kind] == l {
			delete(m.loops, kind)
		}
		m.mu.Unlock()
		cancel()

		elapsed := time.Since(l.started)
		if err != nil {
			log.Warn().Err(err).Str("loop", string(kind)).Dur("runtime", elapsed).Msg("Loop stopped on device error")
		} else {
			log.Info().Str("loop", string(kind)).Dur("runtime", elapsed).Msg("Loop stopped")
		}
		m.bus.Publish(eventbus.Event{
			Type: eventbus.EventTypeLoopStopped,
			Data: map[string]any{
				"loop":       string(kind),
				"runtime_ms": elapsed.Milliseconds(),
				"failed":     err != nil,
			},
		})

		close(l.done)

		if err != nil && m.onFault != nil && !errors.Is(err, context.Canceled) {
			m.onFault(err)
		}
	}()

	return true
}

// every calls fn once per tick until fn returns false, fn fails or ctx is
// cancelled. Cancellation is observed before each call.
func (m *Manager) every(ctx context.Context, fn func(context.Context) (bool, error)) error {
	ticker := time.NewTicker(m.cfg.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		if ctx.Err() != nil {
			return nil
		}

		more, err := fn(ctx)
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
}

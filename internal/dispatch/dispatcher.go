// Package dispatch turns controller events into bulb commands.
package dispatch

import (
	"context"
	"math"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/padlight/internal/bulb"
	"github.com/dokzlo13/padlight/internal/eventbus"
	"github.com/dokzlo13/padlight/internal/gamepad"
	"github.com/dokzlo13/padlight/internal/modulation"
)

// Session is the bulb session as seen by the dispatcher.
type Session interface {
	Connect(ctx context.Context) error
	State(ctx context.Context) (bulb.State, error)
	SetState(ctx context.Context, u bulb.Update) error
}

// Config contains dispatcher timings and stick scaling.
type Config struct {
	Tick            time.Duration // Event polling period
	HoldThreshold   time.Duration // Press duration that turns a tap into a hold
	AxisInterval    time.Duration // Minimum spacing of processed axis events
	ColorScale      int           // Color wheel step at full deflection
	BrightnessScale int           // Brightness step at full deflection
	Deadzone        float64       // Deflection treated as centred
}

// DefaultConfig returns the standard dispatcher settings.
func DefaultConfig() Config {
	return Config{
		Tick:            100 * time.Millisecond,
		HoldThreshold:   200 * time.Millisecond,
		AxisInterval:    50 * time.Millisecond,
		ColorScale:      15,
		BrightnessScale: 10,
		Deadzone:        0.1,
	}
}

// Dispatcher polls the controller and drives the bulb. Everything except the
// power flag and the stick deltas is confined to the goroutine calling Run.
type Dispatcher struct {
	cfg     Config
	source  gamepad.Source
	session Session
	loops   *modulation.Manager
	power   *atomic.Bool
	bus     *eventbus.Bus

	hold       *HoldTracker
	throttle   *Throttle
	controller gamepad.Controller
	faults     chan error
	now        func() time.Time
}

// New creates a dispatcher. power is the flag the loop manager reads; the
// dispatcher is its only writer.
func New(cfg Config, source gamepad.Source, session Session, loops *modulation.Manager, power *atomic.Bool, bus *eventbus.Bus) *Dispatcher {
	defaults := DefaultConfig()
	if cfg.Tick <= 0 {
		cfg.Tick = defaults.Tick
	}
	if cfg.HoldThreshold <= 0 {
		cfg.HoldThreshold = defaults.HoldThreshold
	}
	if cfg.ColorScale == 0 {
		cfg.ColorScale = defaults.ColorScale
	}
	if cfg.BrightnessScale == 0 {
		cfg.BrightnessScale = defaults.BrightnessScale
	}

	d := &Dispatcher{
		cfg:      cfg,
		source:   source,
		session:  session,
		loops:    loops,
		power:    power,
		bus:      bus,
		hold:     NewHoldTracker(cfg.HoldThreshold, gamepad.ButtonB, gamepad.ButtonA, gamepad.ButtonX),
		throttle: NewThrottle(cfg.AxisInterval),
		faults:   make(chan error, 1),
		now:      time.Now,
	}
	loops.OnFault(d.reportFault)
	return d
}

// Run processes controller events until ctx is cancelled or the bulb cannot
// be reconnected. The session must already be connected.
func (d *Dispatcher) Run(ctx context.Context) error {
	defer d.loops.StopAll()

	if err := d.syncPower(ctx); err != nil {
		if !bulb.IsConnectionLost(err) {
			log.Warn().Err(err).Msg("Failed to read initial bulb state")
		} else if err := d.reconnect(ctx, err); err != nil {
			return d.exitErr(ctx, err)
		}
	}

	log.Info().Dur("tick", d.cfg.Tick).Msg("Dispatcher started")

	ticker := time.NewTicker(d.cfg.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Dispatcher stopping")
			return nil
		case <-ticker.C:
		}

		if err := d.tick(ctx); err != nil {
			return d.exitErr(ctx, err)
		}
	}
}

func (d *Dispatcher) exitErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// tick handles one polling period. It returns an error only when the
// session is gone for good.
func (d *Dispatcher) tick(ctx context.Context) error {
	select {
	case err := <-d.faults:
		return d.reconnect(ctx, err)
	default:
	}

	for _, ev := range d.source.Poll() {
		err := d.handle(ctx, ev)
		if err == nil {
			continue
		}
		if bulb.IsConnectionLost(err) {
			if err := d.reconnect(ctx, err); err != nil {
				return err
			}
			continue
		}
		log.Warn().Err(err).Msg("Failed to handle controller event")
	}

	d.checkHold(ctx)
	return nil
}

func (d *Dispatcher) handle(ctx context.Context, ev gamepad.Event) error {
	switch ev := ev.(type) {
	case gamepad.DeviceAdded:
		d.controller = ev.Controller
		log.Info().
			Str("name", ev.Controller.Name()).
			Str("guid", ev.Controller.GUID()).
			Int("id", ev.Controller.ID()).
			Msg("Controller detected")
		d.bus.Publish(eventbus.Event{
			Type: eventbus.EventTypeControllerAdded,
			Data: map[string]any{"name": ev.Controller.Name(), "guid": ev.Controller.GUID()},
		})

	case gamepad.DeviceRemoved:
		if d.controller != nil && d.controller.ID() == ev.ID {
			d.controller = nil
		}
		log.Warn().Int("id", ev.ID).Msg("Controller disconnected")
		d.bus.Publish(eventbus.Event{
			Type: eventbus.EventTypeControllerRemoved,
			Data: map[string]any{"id": ev.ID},
		})

	case gamepad.ButtonDown:
		if d.hold.Press(ev.Button, ev.At) {
			log.Debug().Stringer("button", ev.Button).Msg("Hold tracking started")
		}

	case gamepad.ButtonUp:
		matched, engaged := d.hold.Release(ev.Button)
		if matched && engaged {
			d.loops.Stop(modulation.KindColorWheel)
			return nil
		}
		return d.command(ctx, ev.Button)

	case gamepad.AxisMotion:
		if !d.throttle.Allow(ev.At) {
			return nil
		}
		return d.axis(ctx, ev)

	case gamepad.HatMotion:
		return d.hat(ctx, ev.Direction)
	}

	return nil
}

// command applies the fixed action bound to a released button.
func (d *Dispatcher) command(ctx context.Context, b gamepad.Button) error {
	if b == gamepad.ButtonStart {
		return d.togglePower(ctx)
	}
	if !d.power.Load() {
		return nil
	}

	if color, ok := buttonPresets[b]; ok {
		log.Info().Stringer("button", b).Int("red", color.R).Int("green", color.G).Int("blue", color.B).Msg("Applying color preset")
		return d.session.SetState(ctx, bulb.SetColor(color))
	}

	switch b {
	case gamepad.ButtonBack:
		st, err := d.session.State(ctx)
		if err != nil {
			return err
		}
		colorMode := !st.ColorMode
		u := bulb.SetBrightness(colorModeBrightness)
		u.ColorMode = &colorMode
		log.Info().Bool("color_mode", colorMode).Msg("Toggling color mode")
		return d.session.SetState(ctx, u)

	case gamepad.ButtonBumperLeft:
		st, err := d.session.State(ctx)
		if err != nil {
			return err
		}
		log.Info().
			Bool("power", st.Power).
			Int("red", st.Red).
			Int("green", st.Green).
			Int("blue", st.Blue).
			Int("brightness", st.Brightness).
			Bool("color_mode", st.ColorMode).
			Msg("Bulb state")

	case gamepad.ButtonBumperRight:
		running := d.loops.ToggleScene(ctx)
		log.Info().Bool("running", running).Msg("Scene loop toggled")
	}

	return nil
}

func (d *Dispatcher) togglePower(ctx context.Context) error {
	st, err := d.session.State(ctx)
	if err != nil {
		return err
	}
	on := !st.Power
	d.power.Store(on)
	if err := d.session.SetState(ctx, bulb.SetPower(on)); err != nil {
		return err
	}
	log.Info().Bool("power", on).Msg("Power toggled")
	return nil
}

func (d *Dispatcher) axis(ctx context.Context, ev gamepad.AxisMotion) error {
	switch {
	case ev.Axis.IsLeftStick():
		y, ok := d.stickY(ev, gamepad.AxisLeftY, gamepad.Controller.LeftStick)
		if !ok {
			return nil
		}
		d.loops.ColorDelta.Store(d.delta(y, d.cfg.ColorScale))

	case ev.Axis.IsRightStick():
		y, ok := d.stickY(ev, gamepad.AxisRightY, gamepad.Controller.RightStick)
		if !ok {
			return nil
		}
		d.loops.BrightnessDelta.Store(d.delta(y, d.cfg.BrightnessScale))
		if d.power.Load() && !d.loops.Running(modulation.KindBrightness) {
			d.loops.StartBrightness(ctx)
		}
	}
	return nil
}

// stickY returns the current vertical deflection of a stick, sampling the
// controller when one is attached and falling back to the event itself.
func (d *Dispatcher) stickY(ev gamepad.AxisMotion, yAxis gamepad.Axis, sample func(gamepad.Controller) (float64, float64)) (float64, bool) {
	if d.controller != nil {
		_, y := sample(d.controller)
		return y, true
	}
	if ev.Axis == yAxis {
		return ev.Value, true
	}
	return 0, false
}

// delta converts a deflection into a per-tick step. Up is negative on the
// controller, so the sign is inverted.
func (d *Dispatcher) delta(y float64, scale int) int {
	if math.Abs(y) < d.cfg.Deadzone {
		return 0
	}
	return -int(math.Round(y * float64(scale)))
}

func (d *Dispatcher) hat(ctx context.Context, dir gamepad.Direction) error {
	if dir == gamepad.DirCentre {
		return nil
	}
	for _, p := range hatPresets {
		if !dir.Has(p.dir) {
			continue
		}
		if err := d.session.SetState(ctx, bulb.SetColor(p.color)); err != nil {
			return err
		}
	}
	return nil
}

// checkHold starts the color wheel once the held button crosses the
// threshold.
func (d *Dispatcher) checkHold(ctx context.Context) {
	b, ok := d.hold.Sustained(d.now())
	if !ok || d.hold.Engaged() || !d.power.Load() {
		return
	}
	d.hold.Engage()
	d.loops.StartColorWheel(ctx, holdChannels[b])
}

func (d *Dispatcher) syncPower(ctx context.Context) error {
	st, err := d.session.State(ctx)
	if err != nil {
		return err
	}
	d.power.Store(st.Power)
	return nil
}

// reconnect stops every loop and runs the session's bounded retry.
// A failure here ends the dispatcher.
func (d *Dispatcher) reconnect(ctx context.Context, cause error) error {
	log.Warn().Err(cause).Msg("Bulb connection lost, reconnecting")

	d.loops.StopAll()
	d.hold.Reset()

	if err := d.session.Connect(ctx); err != nil {
		return err
	}

	// faults raised by loops stopped above refer to the old connection
	select {
	case <-d.faults:
	default:
	}

	if err := d.syncPower(ctx); err != nil {
		if bulb.IsConnectionLost(err) {
			d.reportFault(err)
		} else {
			log.Warn().Err(err).Msg("Failed to read bulb state after reconnect")
		}
	}
	return nil
}

func (d *Dispatcher) reportFault(err error) {
	select {
	case d.faults <- err:
	default:
	}
}

package modulation

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/padlight/internal/bulb"
)

// DefaultScene is the sequence cycled by the scene loop when none is configured.
var DefaultScene = []bulb.RGB{
	{R: 255, G: 1, B: 1},
	{R: 255, G: 127, B: 1},
	{R: 255, G: 255, B: 1},
	{R: 1, G: 255, B: 1},
	{R: 1, G: 1, B: 255},
	{R: 75, G: 1, B: 130},
	{R: 148, G: 1, B: 211},
}

// colorWheel adds ColorDelta to one channel each tick.
func (m *Manager) colorWheel(ctx context.Context, ch bulb.Channel) error {
	return m.every(ctx, func(ctx context.Context) (bool, error) {
		return true, m.session.Modify(ctx, stepChannel(ch, m.ColorDelta.Load()))
	})
}

// brightness adds BrightnessDelta to the brightness each tick. It ends on
// its own once the lifespan is used up or the bulb is switched off.
func (m *Manager) brightness(ctx context.Context, started time.Time) error {
	return m.every(ctx, func(ctx context.Context) (bool, error) {
		if !m.power() {
			log.Debug().Msg("Bulb is off, ending brightness loop")
			return false, nil
		}
		if time.Since(started) >= m.cfg.BrightnessLifespan {
			log.Debug().Dur("lifespan", m.cfg.BrightnessLifespan).Msg("Brightness loop lifespan reached")
			return false, nil
		}
		return true, m.session.Modify(ctx, stepBrightness(m.BrightnessDelta.Load()))
	})
}

// scene applies each color of the sequence in turn, holding it for the
// dwell time, and wraps around after the last one.
func (m *Manager) scene(ctx context.Context) error {
	seq := m.cfg.Scene
	for i := 0; ; i = (i + 1) % len(seq) {
		if ctx.Err() != nil {
			return nil
		}

		if err := m.session.SetState(ctx, bulb.SetColor(seq[i])); err != nil {
			return err
		}
		log.Debug().Int("step", i).Int("red", seq[i].R).Int("green", seq[i].G).Int("blue", seq[i].B).Msg("Scene color applied")

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(m.cfg.SceneDwell):
		}
	}
}

func stepChannel(ch bulb.Channel, delta int) func(bulb.State) (bulb.Update, bool) {
	return func(st bulb.State) (bulb.Update, bool) {
		cur := ch.Value(st)
		next := bulb.ClampColor(cur + delta)
		return bulb.SetChannel(ch, next), next != cur
	}
}

func stepBrightness(delta int) func(bulb.State) (bulb.Update, bool) {
	return func(st bulb.State) (bulb.Update, bool) {
		next := bulb.ClampBrightness(st.Brightness + delta)
		return bulb.SetBrightness(next), next != st.Brightness
	}
}

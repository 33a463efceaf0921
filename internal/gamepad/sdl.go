package gamepad

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/veandco/go-sdl2/sdl"
)

// SDL joystick button indices for an Xbox 360 pad.
var sdlButtons = map[uint8]Button{
	0:  ButtonA,
	1:  ButtonB,
	2:  ButtonX,
	3:  ButtonY,
	4:  ButtonBumperLeft,
	5:  ButtonBumperRight,
	6:  ButtonBack,
	7:  ButtonStart,
	8:  ButtonGuide,
	9:  ButtonStickLeft,
	10: ButtonStickRight,
}

var sdlAxes = map[uint8]Axis{
	0: AxisLeftX,
	1: AxisLeftY,
	2: AxisTriggerLeft,
	3: AxisRightX,
	4: AxisRightY,
	5: AxisTriggerRight,
}

// SDLSource reads joystick events through SDL2. It must be created and
// polled from the same goroutine.
type SDLSource struct {
	joysticks map[sdl.JoystickID]*sdlController
	now       func() time.Time
}

// NewSDLSource initialises the SDL joystick subsystem. Controllers already
// plugged in are reported through DeviceAdded events on the first Poll.
func NewSDLSource() (*SDLSource, error) {
	// no window, so events must be delivered while unfocused
	sdl.SetHint(sdl.HINT_JOYSTICK_ALLOW_BACKGROUND_EVENTS, "1")

	if err := sdl.Init(sdl.INIT_JOYSTICK); err != nil {
		return nil, fmt.Errorf("sdl: %w", err)
	}

	log.Debug().Int("joysticks", sdl.NumJoysticks()).Msg("SDL joystick subsystem initialised")

	return &SDLSource{
		joysticks: make(map[sdl.JoystickID]*sdlController),
		now:       time.Now,
	}, nil
}

// Poll drains the SDL event queue.
func (s *SDLSource) Poll() []Event {
	var events []Event

	for ev := sdl.PollEvent(); ev != nil; ev = sdl.PollEvent() {
		now := s.now()

		switch ev := ev.(type) {
		case *sdl.JoyDeviceAddedEvent:
			joy := sdl.JoystickOpen(int(ev.Which))
			if joy == nil || !joy.Attached() {
				log.Warn().Int32("index", int32(ev.Which)).Msg("Failed to open joystick")
				continue
			}
			c := &sdlController{joy: joy}
			s.joysticks[joy.InstanceID()] = c
			events = append(events, DeviceAdded{Controller: c})

		case *sdl.JoyDeviceRemovedEvent:
			if c, ok := s.joysticks[ev.Which]; ok {
				c.joy.Close()
				delete(s.joysticks, ev.Which)
			}
			events = append(events, DeviceRemoved{ID: int(ev.Which)})

		case *sdl.JoyButtonEvent:
			button, ok := sdlButtons[ev.Button]
			if !ok {
				continue
			}
			if ev.State == sdl.PRESSED {
				events = append(events, ButtonDown{Button: button, At: now})
			} else {
				events = append(events, ButtonUp{Button: button, At: now})
			}

		case *sdl.JoyAxisEvent:
			axis, ok := sdlAxes[ev.Axis]
			if !ok {
				continue
			}
			events = append(events, AxisMotion{Axis: axis, Value: normaliseAxis(ev.Value), At: now})

		case *sdl.JoyHatEvent:
			if ev.Hat != 0 {
				continue
			}
			events = append(events, HatMotion{Direction: hatDirection(ev.Value), At: now})
		}
	}

	return events
}

// Close closes all open joysticks and shuts SDL down.
func (s *SDLSource) Close() error {
	for id, c := range s.joysticks {
		c.joy.Close()
		delete(s.joysticks, id)
	}
	sdl.Quit()
	return nil
}

type sdlController struct {
	joy *sdl.Joystick
}

func (c *sdlController) ID() int {
	return int(c.joy.InstanceID())
}

func (c *sdlController) Name() string {
	return c.joy.Name()
}

func (c *sdlController) GUID() string {
	return sdl.JoystickGetGUIDString(c.joy.GUID())
}

func (c *sdlController) LeftStick() (float64, float64) {
	return normaliseAxis(c.joy.Axis(0)), normaliseAxis(c.joy.Axis(1))
}

func (c *sdlController) RightStick() (float64, float64) {
	return normaliseAxis(c.joy.Axis(3)), normaliseAxis(c.joy.Axis(4))
}

func (c *sdlController) Pad() Direction {
	return hatDirection(c.joy.Hat(0))
}

// normaliseAxis maps an SDL axis reading onto [-1,1].
func normaliseAxis(v int16) float64 {
	f := float64(v) / 32767
	if f < -1 {
		return -1
	}
	return f
}

func hatDirection(v uint8) Direction {
	var d Direction
	if v&sdl.HAT_UP != 0 {
		d |= DirUp
	}
	if v&sdl.HAT_RIGHT != 0 {
		d |= DirRight
	}
	if v&sdl.HAT_DOWN != 0 {
		d |= DirDown
	}
	if v&sdl.HAT_LEFT != 0 {
		d |= DirLeft
	}
	return d
}

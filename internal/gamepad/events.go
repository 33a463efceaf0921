// Package gamepad defines controller events and the sources that produce them.
package gamepad

import "time"

// Button is a symbolic controller button, laid out like an Xbox 360 pad.
type Button int

const (
	ButtonNone Button = iota
	ButtonA
	ButtonB
	ButtonX
	ButtonY
	ButtonBumperLeft
	ButtonBumperRight
	ButtonBack
	ButtonStart
	ButtonGuide
	ButtonStickLeft
	ButtonStickRight
)

var buttonNames = map[Button]string{
	ButtonNone:        "none",
	ButtonA:           "A",
	ButtonB:           "B",
	ButtonX:           "X",
	ButtonY:           "Y",
	ButtonBumperLeft:  "LB",
	ButtonBumperRight: "RB",
	ButtonBack:        "BACK",
	ButtonStart:       "START",
	ButtonGuide:       "GUIDE",
	ButtonStickLeft:   "LS",
	ButtonStickRight:  "RS",
}

func (b Button) String() string {
	if name, ok := buttonNames[b]; ok {
		return name
	}
	return "unknown"
}

// Axis is a symbolic analogue axis.
type Axis int

const (
	AxisNone Axis = iota
	AxisLeftX
	AxisLeftY
	AxisTriggerLeft
	AxisRightX
	AxisRightY
	AxisTriggerRight
)

// IsLeftStick reports whether the axis belongs to the left thumbstick.
func (a Axis) IsLeftStick() bool {
	return a == AxisLeftX || a == AxisLeftY
}

// IsRightStick reports whether the axis belongs to the right thumbstick.
func (a Axis) IsRightStick() bool {
	return a == AxisRightX || a == AxisRightY
}

// Direction is a bitmask of pressed d-pad directions.
type Direction uint8

const (
	DirUp Direction = 1 << iota
	DirRight
	DirDown
	DirLeft

	DirCentre Direction = 0
)

// Has reports whether d includes dir.
func (d Direction) Has(dir Direction) bool {
	return d&dir != 0
}

// Event is one of DeviceAdded, DeviceRemoved, ButtonDown, ButtonUp,
// AxisMotion or HatMotion.
type Event interface {
	isEvent()
}

// DeviceAdded is sent when a controller is plugged in and opened.
type DeviceAdded struct {
	Controller Controller
}

// DeviceRemoved is sent when a controller goes away.
type DeviceRemoved struct {
	ID int
}

// ButtonDown is sent when a button is pressed.
type ButtonDown struct {
	Button Button
	At     time.Time
}

// ButtonUp is sent when a button is released.
type ButtonUp struct {
	Button Button
	At     time.Time
}

// AxisMotion is sent when an analogue axis moves. Value is in [-1,1].
type AxisMotion struct {
	Axis  Axis
	Value float64
	At    time.Time
}

// HatMotion is sent when the d-pad changes.
type HatMotion struct {
	Direction Direction
	At        time.Time
}

func (DeviceAdded) isEvent()   {}
func (DeviceRemoved) isEvent() {}
func (ButtonDown) isEvent()    {}
func (ButtonUp) isEvent()      {}
func (AxisMotion) isEvent()    {}
func (HatMotion) isEvent()     {}

// Controller is an opened controller that can be sampled at any time.
type Controller interface {
	ID() int
	Name() string
	GUID() string
	// LeftStick and RightStick return (x, y) in [-1,1]. y is negative when
	// the stick is pushed up.
	LeftStick() (x, y float64)
	RightStick() (x, y float64)
	Pad() Direction
}

// Source produces controller events. Poll never blocks and returns every
// pending event in arrival order.
type Source interface {
	Poll() []Event
	Close() error
}

package bulb

// Channel bounds. A channel value of 0 is never sent; the bulb treats it as
// "unset" in color mode.
const (
	MinColor      = 1
	MaxColor      = 255
	MinBrightness = 1
	MaxBrightness = 100
)

// State is the composite state reported by the bulb.
type State struct {
	Power      bool `json:"pwr"`
	Red        int  `json:"red"`
	Green      int  `json:"green"`
	Blue       int  `json:"blue"`
	Brightness int  `json:"brightness"`
	ColorMode  bool `json:"bulb_colormode"`
}

// Update is a partial state change. Only non-nil fields are sent.
type Update struct {
	Power      *bool `json:"pwr,omitempty"`
	Red        *int  `json:"red,omitempty"`
	Green      *int  `json:"green,omitempty"`
	Blue       *int  `json:"blue,omitempty"`
	Brightness *int  `json:"brightness,omitempty"`
	ColorMode  *bool `json:"bulb_colormode,omitempty"`
}

// IsEmpty reports whether the update carries no fields.
func (u Update) IsEmpty() bool {
	return u.Power == nil && u.Red == nil && u.Green == nil && u.Blue == nil &&
		u.Brightness == nil && u.ColorMode == nil
}

// Apply returns s with the update's fields applied.
func (u Update) Apply(s State) State {
	if u.Power != nil {
		s.Power = *u.Power
	}
	if u.Red != nil {
		s.Red = *u.Red
	}
	if u.Green != nil {
		s.Green = *u.Green
	}
	if u.Blue != nil {
		s.Blue = *u.Blue
	}
	if u.Brightness != nil {
		s.Brightness = *u.Brightness
	}
	if u.ColorMode != nil {
		s.ColorMode = *u.ColorMode
	}
	return s
}

// RGB is a color triple.
type RGB struct {
	R, G, B int
}

// Channel identifies one color channel of the bulb.
type Channel int

const (
	ChannelRed Channel = iota
	ChannelGreen
	ChannelBlue
)

// String returns the channel name
func (c Channel) String() string {
	switch c {
	case ChannelRed:
		return "red"
	case ChannelGreen:
		return "green"
	case ChannelBlue:
		return "blue"
	default:
		return "unknown"
	}
}

// Value returns the channel value from a state.
func (c Channel) Value(s State) int {
	switch c {
	case ChannelRed:
		return s.Red
	case ChannelGreen:
		return s.Green
	default:
		return s.Blue
	}
}

// ClampColor limits v to [MinColor, MaxColor].
func ClampColor(v int) int {
	return clamp(v, MinColor, MaxColor)
}

// ClampBrightness limits v to [MinBrightness, MaxBrightness].
func ClampBrightness(v int) int {
	return clamp(v, MinBrightness, MaxBrightness)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// SetPower returns an update switching power.
func SetPower(on bool) Update {
	return Update{Power: &on}
}

// SetColor returns an update for all three channels, clamped.
func SetColor(c RGB) Update {
	r, g, b := ClampColor(c.R), ClampColor(c.G), ClampColor(c.B)
	return Update{Red: &r, Green: &g, Blue: &b}
}

// SetChannel returns an update for one channel, clamped.
func SetChannel(ch Channel, v int) Update {
	v = ClampColor(v)
	switch ch {
	case ChannelRed:
		return Update{Red: &v}
	case ChannelGreen:
		return Update{Green: &v}
	default:
		return Update{Blue: &v}
	}
}

// SetBrightness returns a brightness update, clamped.
func SetBrightness(v int) Update {
	v = ClampBrightness(v)
	return Update{Brightness: &v}
}

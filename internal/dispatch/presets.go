package dispatch

import (
	"github.com/dokzlo13/padlight/internal/bulb"
	"github.com/dokzlo13/padlight/internal/gamepad"
)

// Colors applied when the face buttons are tapped.
var buttonPresets = map[gamepad.Button]bulb.RGB{
	gamepad.ButtonA: {R: 0, G: 100, B: 0},
	gamepad.ButtonB: {R: 100, G: 0, B: 0},
	gamepad.ButtonX: {R: 0, G: 0, B: 100},
	gamepad.ButtonY: {R: 255, G: 140, B: 0},
}

// Channel ramped by the color wheel while a face button is held.
var holdChannels = map[gamepad.Button]bulb.Channel{
	gamepad.ButtonB: bulb.ChannelRed,
	gamepad.ButtonA: bulb.ChannelGreen,
	gamepad.ButtonX: bulb.ChannelBlue,
}

var hatPresets = []struct {
	dir   gamepad.Direction
	color bulb.RGB
}{
	{gamepad.DirUp, bulb.RGB{R: 255, G: 255, B: 255}},
	{gamepad.DirRight, bulb.RGB{R: 160, G: 32, B: 240}},
	{gamepad.DirDown, bulb.RGB{R: 255, G: 180, B: 107}},
	{gamepad.DirLeft, bulb.RGB{R: 0, G: 255, B: 255}},
}

// brightness set together with a color mode switch
const colorModeBrightness = 50

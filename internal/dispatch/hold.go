package dispatch

import (
	"time"

	"github.com/dokzlo13/padlight/internal/gamepad"
)

// HoldTracker tells taps from sustained holds. Only one eligible button is
// tracked at a time; presses of other eligible buttons while one is held
// are ignored.
type HoldTracker struct {
	threshold time.Duration
	eligible  map[gamepad.Button]bool

	held    gamepad.Button
	since   time.Time
	engaged bool
}

// NewHoldTracker creates a tracker for the given buttons.
func NewHoldTracker(threshold time.Duration, eligible ...gamepad.Button) *HoldTracker {
	h := &HoldTracker{
		threshold: threshold,
		eligible:  make(map[gamepad.Button]bool, len(eligible)),
	}
	for _, b := range eligible {
		h.eligible[b] = true
	}
	return h
}

// Press starts tracking b. Returns false if b is not eligible or another
// button is already held.
func (h *HoldTracker) Press(b gamepad.Button, at time.Time) bool {
	if !h.eligible[b] || h.held != gamepad.ButtonNone {
		return false
	}
	h.held = b
	h.since = at
	h.engaged = false
	return true
}

// Release stops tracking b. matched is true if b was the held button;
// engaged is true if the hold had been acted on (see Engage).
func (h *HoldTracker) Release(b gamepad.Button) (matched, engaged bool) {
	if b == gamepad.ButtonNone || b != h.held {
		return false, false
	}
	engaged = h.engaged
	h.Reset()
	return true, engaged
}

// Sustained returns the held button once it has been down for at least
// the threshold.
func (h *HoldTracker) Sustained(now time.Time) (gamepad.Button, bool) {
	if h.held == gamepad.ButtonNone || now.Sub(h.since) < h.threshold {
		return gamepad.ButtonNone, false
	}
	return h.held, true
}

// Engage marks the current hold as acted on; its release is then consumed.
func (h *HoldTracker) Engage() {
	if h.held != gamepad.ButtonNone {
		h.engaged = true
	}
}

// Engaged reports whether the current hold has been acted on.
func (h *HoldTracker) Engaged() bool {
	return h.engaged
}

// Reset forgets the current hold.
func (h *HoldTracker) Reset() {
	h.held = gamepad.ButtonNone
	h.since = time.Time{}
	h.engaged = false
}

package dispatch

import (
	"testing"
	"time"

	"github.com/dokzlo13/padlight/internal/gamepad"
)

func TestHoldTracker(t *testing.T) {
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	h := NewHoldTracker(200*time.Millisecond, gamepad.ButtonB, gamepad.ButtonA, gamepad.ButtonX)

	if h.Press(gamepad.ButtonY, base) {
		t.Error("ineligible button tracked")
	}
	if !h.Press(gamepad.ButtonB, base) {
		t.Fatal("eligible button not tracked")
	}
	if h.Press(gamepad.ButtonA, base) {
		t.Error("second button tracked while one is held")
	}

	if _, ok := h.Sustained(base.Add(150 * time.Millisecond)); ok {
		t.Error("sustained before threshold")
	}
	if b, ok := h.Sustained(base.Add(200 * time.Millisecond)); !ok || b != gamepad.ButtonB {
		t.Errorf("Sustained() = %v %v, want B true", b, ok)
	}

	if matched, _ := h.Release(gamepad.ButtonA); matched {
		t.Error("release of a different button matched")
	}

	h.Engage()
	matched, engaged := h.Release(gamepad.ButtonB)
	if !matched || !engaged {
		t.Errorf("Release() = %v %v, want true true", matched, engaged)
	}
	if _, ok := h.Sustained(base.Add(time.Hour)); ok {
		t.Error("hold not cleared on release")
	}
}

func TestHoldTracker_TapIsNotEngaged(t *testing.T) {
	base := time.Now()
	h := NewHoldTracker(200*time.Millisecond, gamepad.ButtonX)

	h.Press(gamepad.ButtonX, base)
	matched, engaged := h.Release(gamepad.ButtonX)
	if !matched || engaged {
		t.Errorf("Release() = %v %v, want true false", matched, engaged)
	}

	// Engage without a hold is ignored
	h.Engage()
	if h.Engaged() {
		t.Error("Engaged() = true with nothing held")
	}
}

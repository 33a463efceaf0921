package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/dokzlo13/padlight/internal/db"
	"github.com/dokzlo13/padlight/internal/eventbus"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "ledger.sqlite"))
	if err != nil {
		t.Fatalf("db.Open() error = %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return New(database.DB)
}

func TestLedger_AppendAndGetByType(t *testing.T) {
	l := newTestLedger(t)

	if err := l.Append(eventbus.EventTypeConnected, "s-1", "bulb", map[string]any{"model": "RGBW-9"}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := l.Append(eventbus.EventTypeLoopStarted, "s-1", "loop", map[string]any{"loop": "scene"}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := l.Append(eventbus.EventTypeConnected, "s-2", "bulb", nil); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	entries, err := l.GetByType(eventbus.EventTypeConnected, 10)
	if err != nil {
		t.Fatalf("GetByType() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("GetByType() returned %d entries, want 2", len(entries))
	}
	// newest first
	if entries[0].SessionID != "s-2" || entries[1].SessionID != "s-1" {
		t.Errorf("order = %s, %s; want s-2, s-1", entries[0].SessionID, entries[1].SessionID)
	}
	if entries[0].Payload != nil {
		t.Errorf("nil payload read back as %v", entries[0].Payload)
	}
	if got := entries[1].Payload["model"]; got != "RGBW-9" {
		t.Errorf("payload model = %v, want RGBW-9", got)
	}
	if entries[1].Source != "bulb" {
		t.Errorf("source = %q, want bulb", entries[1].Source)
	}
}

func TestLedger_TimeRangeAndRetention(t *testing.T) {
	l := newTestLedger(t)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	for _, age := range []time.Duration{40 * 24 * time.Hour, 10 * 24 * time.Hour, time.Hour} {
		l.now = func() time.Time { return now.Add(-age) }
		if err := l.Append(eventbus.EventTypeLoopStopped, "", "loop", nil); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}
	l.now = func() time.Time { return now }

	recent, err := l.GetByTimeRange(now.Add(-11*24*time.Hour), now, 10)
	if err != nil {
		t.Fatalf("GetByTimeRange() error = %v", err)
	}
	if len(recent) != 2 {
		t.Errorf("GetByTimeRange() returned %d entries, want 2", len(recent))
	}

	deleted, err := l.DeleteOlderThan(30 * 24 * time.Hour)
	if err != nil {
		t.Fatalf("DeleteOlderThan() error = %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	all, _ := l.GetByType(eventbus.EventTypeLoopStopped, 10)
	if len(all) != 2 {
		t.Errorf("remaining = %d, want 2", len(all))
	}
}

func TestRecord(t *testing.T) {
	l := newTestLedger(t)
	bus := eventbus.New()

	Record(bus, l, func() string { return "current" })

	bus.Publish(eventbus.Event{
		Type: eventbus.EventTypeConnected,
		Data: map[string]any{"session_id": "own", "model": "RGBW-9"},
	})
	bus.Publish(eventbus.Event{
		Type: eventbus.EventTypeControllerAdded,
		Data: map[string]any{"name": "Xbox 360 Controller"},
	})

	// Close drains the queue
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	bus.Close(ctx)

	connected, err := l.GetByType(eventbus.EventTypeConnected, 10)
	if err != nil || len(connected) != 1 {
		t.Fatalf("connected entries = %d, err = %v", len(connected), err)
	}
	if connected[0].SessionID != "own" || connected[0].Source != "bulb" {
		t.Errorf("connected entry = %+v", connected[0])
	}

	added, err := l.GetByType(eventbus.EventTypeControllerAdded, 10)
	if err != nil || len(added) != 1 {
		t.Fatalf("controller entries = %d, err = %v", len(added), err)
	}
	if added[0].SessionID != "current" || added[0].Source != "controller" {
		t.Errorf("controller entry = %+v", added[0])
	}
}

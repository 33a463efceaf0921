package app

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dokzlo13/padlight/internal/bulb"
	"github.com/dokzlo13/padlight/internal/config"
	"github.com/dokzlo13/padlight/internal/eventbus"
	"github.com/dokzlo13/padlight/internal/gamepad"
)

type idleSource struct{}

func (idleSource) Poll() []gamepad.Event { return nil }
func (idleSource) Close() error          { return nil }

type memoryDevice struct {
	mu    sync.Mutex
	state bulb.State
}

func (d *memoryDevice) Model() string { return "RGBW-9" }

func (d *memoryDevice) State(ctx context.Context) (bulb.State, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state, nil
}

func (d *memoryDevice) SetState(ctx context.Context, u bulb.Update) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = u.Apply(d.state)
	return nil
}

func (d *memoryDevice) Close() error { return nil }

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Bulb: config.BulbConfig{
			Address:         "192.168.4.1",
			Network:         "home",
			Credential:      "pass",
			ConnectAttempts: 2,
			RetryDelay:      config.Duration(time.Millisecond),
		},
		Input:           config.InputConfig{Tick: config.Duration(5 * time.Millisecond)},
		Database:        config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "padlight.sqlite")},
		Ledger:          config.LedgerConfig{CleanupInterval: config.Duration(time.Hour), RetentionDays: 30},
		ShutdownTimeout: config.Duration(2 * time.Second),
	}
}

func TestServices_StartRecordsConnection(t *testing.T) {
	device := &memoryDevice{state: bulb.State{Power: true, Brightness: 60}}
	dialer := bulb.DialerFunc(func(ctx context.Context, address, network, credential string) (bulb.Device, error) {
		if address != "192.168.4.1" || network != "home" || credential != "pass" {
			t.Errorf("Dial(%q, %q, %q)", address, network, credential)
		}
		return device, nil
	})

	s, err := newServices(testConfig(t), idleSource{}, dialer)
	if err != nil {
		t.Fatalf("newServices() error = %v", err)
	}
	defer s.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !s.Session.Connected() {
		t.Fatal("session not connected after Start")
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		entries, err := s.Ledger.GetByType(eventbus.EventTypeConnected, 10)
		if err != nil {
			t.Fatalf("GetByType() error = %v", err)
		}
		if len(entries) == 1 {
			if entries[0].SessionID != s.Session.ID() {
				t.Errorf("ledger session_id = %q, want %q", entries[0].SessionID, s.Session.ID())
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("connected event never reached the ledger")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// Run seeds the power flag from the bulb and returns cleanly on cancel
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	deadline = time.Now().Add(2 * time.Second)
	for !s.Power.Load() {
		if time.Now().After(deadline) {
			t.Fatal("power flag never synced")
		}
		time.Sleep(time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestServices_StartFailsWhenBulbUnreachable(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.Path = ""

	var mu sync.Mutex
	dials := 0
	dialer := bulb.DialerFunc(func(ctx context.Context, address, network, credential string) (bulb.Device, error) {
		mu.Lock()
		defer mu.Unlock()
		dials++
		return nil, bulb.ErrTimeout
	})

	s, err := newServices(cfg, idleSource{}, dialer)
	if err != nil {
		t.Fatalf("newServices() error = %v", err)
	}
	defer s.Stop()

	if s.Ledger != nil {
		t.Error("ledger enabled without a database path")
	}

	err = s.Start(context.Background())
	if !errors.Is(err, bulb.ErrConnectFailed) {
		t.Fatalf("Start() error = %v, want ErrConnectFailed", err)
	}
	if dials != 2 {
		t.Errorf("dials = %d, want 2", dials)
	}
}

func TestSceneColors(t *testing.T) {
	if got := sceneColors(nil); got != nil {
		t.Errorf("sceneColors(nil) = %v, want nil", got)
	}
	got := sceneColors([][]int{{255, 0, 0}, {0, 0, 255}})
	want := []bulb.RGB{{R: 255}, {B: 255}}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("sceneColors() = %v, want %v", got, want)
	}
}

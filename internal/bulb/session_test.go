package bulb

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })
	return &buf
}

func newTestSession(d Dialer) (*Session, *[]time.Duration) {
	s := NewSession(d, SessionConfig{Address: "10.0.0.5", Network: "home", Credential: "secret"}, nil)
	var sleeps []time.Duration
	s.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}
	return s, &sleeps
}

func TestSession_ConnectAllAttemptsFail(t *testing.T) {
	logs := captureLogs(t)
	dialer := &fakeDialer{failures: 100}
	s, sleeps := newTestSession(dialer)

	err := s.Connect(context.Background())
	if !errors.Is(err, ErrConnectFailed) {
		t.Fatalf("Connect() error = %v, want ErrConnectFailed", err)
	}
	if dialer.calls != 3 {
		t.Errorf("dial calls = %d, want 3", dialer.calls)
	}
	if len(*sleeps) != 2 {
		t.Fatalf("sleeps = %v, want two delays", *sleeps)
	}
	for _, d := range *sleeps {
		if d != 10*time.Second {
			t.Errorf("delay = %v, want 10s", d)
		}
	}
	if s.Connected() {
		t.Error("Connected() = true after exhausted retries")
	}
	if n := strings.Count(logs.String(), "Bulb connect attempt failed"); n != 3 {
		t.Errorf("failure log lines = %d, want 3", n)
	}
}

func TestSession_ConnectFirstAttemptNoDelay(t *testing.T) {
	dialer := &fakeDialer{device: &fakeDevice{}}
	s, sleeps := newTestSession(dialer)

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if len(*sleeps) != 0 {
		t.Errorf("sleeps = %v, want none before the first attempt", *sleeps)
	}
	if !s.Connected() {
		t.Error("Connected() = false")
	}
	if s.ID() == "" {
		t.Error("ID() empty after connect")
	}
}

func TestSession_ConnectSucceedsOnThirdAttempt(t *testing.T) {
	dialer := &fakeDialer{failures: 2, device: &fakeDevice{}}
	s, sleeps := newTestSession(dialer)

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if dialer.calls != 3 || len(*sleeps) != 2 {
		t.Errorf("calls = %d sleeps = %d, want 3 and 2", dialer.calls, len(*sleeps))
	}
}

func TestSession_ReconnectReplacesHandle(t *testing.T) {
	first := &fakeDevice{}
	dialer := &fakeDialer{device: first}
	s, _ := newTestSession(dialer)

	if err := s.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	id := s.ID()

	dialer.device = &fakeDevice{}
	if err := s.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !first.closed {
		t.Error("previous device not closed on reconnect")
	}
	if s.ID() == id {
		t.Error("session id not replaced on reconnect")
	}
}

func TestSession_ConnectCancelledDuringDelay(t *testing.T) {
	dialer := &fakeDialer{failures: 100}
	s := NewSession(dialer, SessionConfig{RetryDelay: time.Hour}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.Connect(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Connect() error = %v, want context.Canceled", err)
	}
}

func TestSession_CallsWithoutConnection(t *testing.T) {
	s, _ := newTestSession(&fakeDialer{})

	if _, err := s.State(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("State() error = %v, want ErrNotConnected", err)
	}
	if err := s.SetState(context.Background(), SetPower(true)); !errors.Is(err, ErrNotConnected) {
		t.Errorf("SetState() error = %v, want ErrNotConnected", err)
	}
	if !IsConnectionLost(ErrNotConnected) {
		t.Error("IsConnectionLost(ErrNotConnected) = false")
	}
}

func TestSession_TimeoutIsWrapped(t *testing.T) {
	dev := &fakeDevice{failErr: ErrTimeout}
	s, _ := newTestSession(&fakeDialer{device: dev})
	if err := s.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}

	_, err := s.State(context.Background())
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("State() error = %v, want ErrTimeout", err)
	}
	if !IsConnectionLost(err) {
		t.Error("IsConnectionLost() = false for wrapped timeout")
	}
}

func TestSession_Modify(t *testing.T) {
	dev := &fakeDevice{state: State{Power: true, Red: 250}}
	s, _ := newTestSession(&fakeDialer{device: dev})
	if err := s.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}

	add := func(st State) (Update, bool) {
		next := ClampColor(st.Red + 15)
		return SetChannel(ChannelRed, next), next != st.Red
	}

	if err := s.Modify(context.Background(), add); err != nil {
		t.Fatal(err)
	}
	if dev.state.Red != 255 {
		t.Errorf("red = %d, want 255", dev.state.Red)
	}

	if err := s.Modify(context.Background(), add); err != nil {
		t.Fatal(err)
	}
	if len(dev.sets) != 1 {
		t.Errorf("writes = %d, want 1 (no-op update skipped)", len(dev.sets))
	}
}

func TestNewSession_RetryPolicyDefaults(t *testing.T) {
	tests := []struct {
		name         string
		cfg          SessionConfig
		wantAttempts int
		wantDelay    time.Duration
	}{
		{"unset", SessionConfig{}, 3, 10 * time.Second},
		{"negative", SessionConfig{Attempts: -1, RetryDelay: -time.Second}, 3, 10 * time.Second},
		{"explicit", SessionConfig{Attempts: 5, RetryDelay: 2 * time.Second}, 5, 2 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dialer := &fakeDialer{failures: 100}
			s := NewSession(dialer, tt.cfg, nil)
			var sleeps []time.Duration
			s.sleep = func(ctx context.Context, d time.Duration) error {
				sleeps = append(sleeps, d)
				return nil
			}

			if err := s.Connect(context.Background()); !errors.Is(err, ErrConnectFailed) {
				t.Fatalf("Connect() error = %v, want ErrConnectFailed", err)
			}
			if dialer.calls != tt.wantAttempts {
				t.Errorf("dial calls = %d, want %d", dialer.calls, tt.wantAttempts)
			}
			if len(sleeps) != tt.wantAttempts-1 {
				t.Fatalf("sleeps = %v, want %d delays", sleeps, tt.wantAttempts-1)
			}
			for _, d := range sleeps {
				if d != tt.wantDelay {
					t.Errorf("delay = %v, want %v", d, tt.wantDelay)
				}
			}
		})
	}
}

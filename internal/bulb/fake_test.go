package bulb

import (
	"context"
	"errors"
	"sync"
)

// fakeDevice is an in-memory bulb.
type fakeDevice struct {
	mu      sync.Mutex
	state   State
	failErr error
	sets    []Update
	closed  bool
}

func (d *fakeDevice) Model() string { return "LB1" }

func (d *fakeDevice) State(ctx context.Context) (State, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failErr != nil {
		return State{}, d.failErr
	}
	return d.state, nil
}

func (d *fakeDevice) SetState(ctx context.Context, u Update) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failErr != nil {
		return d.failErr
	}
	d.sets = append(d.sets, u)
	d.state = u.Apply(d.state)
	return nil
}

func (d *fakeDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// fakeDialer fails the first failures dials and then returns device.
type fakeDialer struct {
	failures int
	device   *fakeDevice
	calls    int
}

func (d *fakeDialer) Dial(ctx context.Context, address, network, credential string) (Device, error) {
	d.calls++
	if d.calls <= d.failures {
		return nil, errors.New("no route to host")
	}
	return d.device, nil
}

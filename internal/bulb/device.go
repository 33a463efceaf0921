package bulb

import "context"

// Device is a live connection to a bulb. Implementations perform one
// synchronous round trip per call.
type Device interface {
	Model() string
	State(ctx context.Context) (State, error)
	SetState(ctx context.Context, u Update) error
	Close() error
}

// Dialer opens a Device. The network name and credential are provisioned on
// the bulb as part of the handshake.
type Dialer interface {
	Dial(ctx context.Context, address, network, credential string) (Device, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, address, network, credential string) (Device, error)

// Dial calls f.
func (f DialerFunc) Dial(ctx context.Context, address, network, credential string) (Device, error) {
	return f(ctx, address, network, credential)
}

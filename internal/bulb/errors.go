package bulb

import "errors"

var (
	// ErrTimeout is returned when a single state call fails mid-session.
	ErrTimeout = errors.New("bulb timeout")

	// ErrNotConnected is returned by state calls made without a live connection.
	ErrNotConnected = errors.New("bulb not connected")

	// ErrConnectFailed is returned when every connect attempt has failed.
	ErrConnectFailed = errors.New("bulb connect failed")
)

// IsConnectionLost reports whether err means the session must reconnect.
func IsConnectionLost(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrNotConnected)
}

package dispatch

import (
	"time"

	"golang.org/x/time/rate"
)

// Throttle drops axis events that arrive sooner than interval after the
// last accepted one. Stick motion can produce hundreds of events a second
// while the bulb handles one request at a time.
type Throttle struct {
	limiter *rate.Limiter
}

// NewThrottle creates a throttle. A zero interval accepts everything.
func NewThrottle(interval time.Duration) *Throttle {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	// burst of one: a single accepted event spends the whole bucket
	return &Throttle{limiter: rate.NewLimiter(limit, 1)}
}

// Allow reports whether an event at the given time should be processed.
func (t *Throttle) Allow(at time.Time) bool {
	return t.limiter.AllowN(at, 1)
}

package registry

import (
	"time"

	"github.com/jonboulle/clockwork"
)

type hubConfig struct {
	clock     clockwork.Clock
	startedAt time.Time
}

// Option defines a functional configuration type for the Hub.
type Option func(*Hub)

// WithClock replaces the wall clock used for uptime reporting.
func WithClock(clock clockwork.Clock) Option {
	return func(h *Hub) {
		h.config.clock = clock
	}
}

package live

import (
	"sync"
	"time"
)

// rateLimiter is a per-connection sliding-window limiter on inbound messages.
type rateLimiter struct {
	mu     sync.Mutex
	events []time.Time
	limit  int
	window time.Duration
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	if limit <= 0 {
		limit = defaultRateEvents
	}
	if window <= 0 {
		window = defaultRateWindow
	}
	return &rateLimiter{
		events: make([]time.Time, 0, limit+1),
		limit:  limit,
		window: window,
	}
}

// Allow reports whether an event at now is permitted and records it if so.
func (r *rateLimiter) Allow(now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cut := now.Add(-r.window)
	dst := r.events[:0]
	for _, t := range r.events {
		if t.After(cut) {
			dst = append(dst, t)
		}
	}
	r.events = dst

	if len(r.events) >= r.limit {
		return false
	}
	r.events = append(r.events, now)
	return true
}

package verify

import (
	"context"
	"sync"
	"time"
)

// Limiter throttles code requests per key.
type Limiter interface {
	// Allow records one attempt for key at now and reports whether it is within the limit.
	Allow(ctx context.Context, key string, now time.Time) (bool, error)
}

// MemoryLimiter is a process-local sliding-window limiter, used when no redis is configured.
type MemoryLimiter struct {
	max    int
	window time.Duration

	mu     sync.Mutex
	events map[string][]time.Time
}

// NewMemoryLimiter allows max attempts per key within window.
func NewMemoryLimiter(max int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		max:    max,
		window: window,
		events: make(map[string][]time.Time),
	}
}

// Allow implements Limiter.
func (l *MemoryLimiter) Allow(_ context.Context, key string, now time.Time) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cut := now.Add(-l.window)
	kept := l.events[key][:0]
	for _, t := range l.events[key] {
		if t.After(cut) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= l.max {
		l.events[key] = kept
		return false, nil
	}
	l.events[key] = append(kept, now)

	// Opportunistic cleanup keeps idle keys from accumulating.
	if len(l.events) > 4096 {
		for k, ts := range l.events {
			if len(ts) == 0 || !ts[len(ts)-1].After(cut) {
				delete(l.events, k)
			}
		}
	}
	return true, nil
}

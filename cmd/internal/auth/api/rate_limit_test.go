package authapi

import (
	"testing"
	"time"
)

func minutesAgo(now time.Time, mins ...float64) []time.Time {
	out := make([]time.Time, 0, len(mins))
	for _, m := range mins {
		out = append(out, now.Add(-time.Duration(m*float64(time.Minute))))
	}
	return out
}

func TestEvaluateWindowThrottle(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	const window = 15 * time.Minute

	cases := []struct {
		name        string
		failures    []time.Time
		max         int
		wantBlocked bool
		wantRetry   time.Duration
	}{
		{"under limit", minutesAgo(now, 1, 2), 3, false, 0},
		{"at limit", minutesAgo(now, 1, 4, 10), 3, true, 5 * time.Minute},
		{"old failures fall out", minutesAgo(now, 1, 16, 20), 2, false, 0},
		{"future timestamps ignored", append(minutesAgo(now, 1), now.Add(time.Minute)), 2, false, 0},
		{"disabled", minutesAgo(now, 1, 2, 3), 0, false, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			blocked, retry := evaluateWindowThrottle(now, tc.failures, tc.max, window)
			if blocked != tc.wantBlocked || retry != tc.wantRetry {
				t.Fatalf("got blocked=%v retry=%v, want %v %v", blocked, retry, tc.wantBlocked, tc.wantRetry)
			}
		})
	}
}

func TestEvaluateProgressiveLockout_DefaultTiers(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	tiers := DefaultConfig().lockoutTiers()

	spread := func(n int, every time.Duration) []time.Time {
		out := make([]time.Time, n)
		for i := range out {
			out[i] = now.Add(-time.Duration(i+1) * every)
		}
		return out
	}

	cases := []struct {
		name        string
		failures    []time.Time
		wantBlocked bool
		wantRetry   time.Duration
	}{
		{"none", nil, false, 0},
		{"below short tier", spread(4, 10*time.Second), false, 0},
		{"short tier", spread(5, 10*time.Second), true, 5*time.Minute - 10*time.Second},
		{"short tier expired", spread(5, 6*time.Minute), false, 0},
		{"long tier", spread(10, time.Minute), true, 29 * time.Minute},
		{"severe tier", spread(20, time.Minute), true, 2*time.Hour - time.Minute},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			blocked, retry := evaluateProgressiveLockout(now, tc.failures, tiers)
			if blocked != tc.wantBlocked || retry != tc.wantRetry {
				t.Fatalf("got blocked=%v retry=%v, want %v %v", blocked, retry, tc.wantBlocked, tc.wantRetry)
			}
		})
	}
}

package authapi

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"
)

// lockoutTier blocks logins for Duration after the latest failure once Threshold
// failures have accumulated.
type lockoutTier struct {
	Threshold int
	Duration  time.Duration
}

// evaluateWindowThrottle blocks when at least max failures fall within window before now.
// retry is the time until the oldest counted failure leaves the window.
func evaluateWindowThrottle(now time.Time, failures []time.Time, max int, window time.Duration) (bool, time.Duration) {
	if max <= 0 || window <= 0 {
		return false, 0
	}
	cut := now.Add(-window)

	var (
		count  int
		oldest time.Time
	)
	for _, f := range failures {
		if f.Before(cut) || f.After(now) {
			continue
		}
		count++
		if oldest.IsZero() || f.Before(oldest) {
			oldest = f
		}
	}
	if count < max {
		return false, 0
	}
	return true, oldest.Add(window).Sub(now)
}

// evaluateProgressiveLockout applies the tier with the longest remaining lockout.
func evaluateProgressiveLockout(now time.Time, failures []time.Time, tiers []lockoutTier) (bool, time.Duration) {
	if len(failures) == 0 {
		return false, 0
	}
	latest := failures[0]
	for _, f := range failures[1:] {
		if f.After(latest) {
			latest = f
		}
	}

	var retry time.Duration
	for _, t := range tiers {
		if t.Threshold <= 0 || t.Duration <= 0 || len(failures) < t.Threshold {
			continue
		}
		if left := latest.Add(t.Duration).Sub(now); left > retry {
			retry = left
		}
	}
	return retry > 0, retry
}

func (h *Handler) checkLoginIPThrottle(ctx context.Context, ip net.IP, now time.Time) (bool, time.Duration, error) {
	if ip == nil || h.cfg.LoginIPMax <= 0 {
		return false, 0, nil
	}
	failures, err := h.loginFailures(ctx, "ip = $2", ip.String(), now.Add(-h.cfg.LoginIPWindow), h.cfg.LoginIPMax)
	if err != nil {
		return false, 0, err
	}
	blocked, retry := evaluateWindowThrottle(now, failures, h.cfg.LoginIPMax, h.cfg.LoginIPWindow)
	return blocked, retry, nil
}

func (h *Handler) checkLoginEmailLockout(ctx context.Context, emailNorm string, now time.Time) (bool, time.Duration, error) {
	if emailNorm == "" || h.cfg.LockoutLookback <= 0 {
		return false, 0, nil
	}
	limit := max(h.cfg.LockoutSevereThreshold, h.cfg.LockoutLongThreshold, h.cfg.LockoutShortThreshold)
	if limit <= 0 {
		return false, 0, nil
	}
	failures, err := h.loginFailures(ctx, "meta->>'identifier' = $2", emailNorm, now.Add(-h.cfg.LockoutLookback), limit)
	if err != nil {
		return false, 0, err
	}
	blocked, retry := evaluateProgressiveLockout(now, failures, h.cfg.lockoutTiers())
	return blocked, retry, nil
}

// loginFailures returns up to limit failed-login timestamps since, newest first.
func (h *Handler) loginFailures(ctx context.Context, where string, arg any, since time.Time, limit int) ([]time.Time, error) {
	if h.pool == nil {
		return nil, nil
	}
	rows, err := h.pool.Query(ctx, `
		SELECT created_at
		FROM `+h.auditTable+`
		WHERE action = $1
		  AND `+where+`
		  AND created_at >= $3
		ORDER BY created_at DESC
		LIMIT $4
	`, actionLoginFailed, arg, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var ts time.Time
		if err := rows.Scan(&ts); err != nil {
			return nil, err
		}
		out = append(out, ts)
	}
	return out, rows.Err()
}

func writeRateLimited(w http.ResponseWriter, retryAfter time.Duration) {
	if retryAfter > 0 {
		secs := int64(retryAfter.Round(time.Second) / time.Second)
		if secs < 1 {
			secs = 1
		}
		w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
	}
	writeError(w, http.StatusTooManyRequests, "rate_limited", "Too many attempts. Try again later.")
}

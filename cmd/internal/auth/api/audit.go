package authapi

import (
	"context"
	"encoding/json"
	"net"
	"strings"
	"time"
)

const (
	actionRegister         = "auth.register"
	actionLoginFailed      = "auth.login.failed"
	actionLoginSuccess     = "auth.login.success"
	actionLoginRateLimited = "auth.login.rate_limited"
	actionSessionRevoked   = "auth.session.revoked"
	actionPasswordReset    = "auth.password.reset"
	actionEmailChanged     = "auth.email.changed"
	actionGoogleLinked     = "auth.google.linked"
	actionGoogleUnlinked   = "auth.google.unlinked"
	actionUpgradeIssued    = "billing.upgrade.issued"
	actionUpgradeClaimed   = "billing.upgrade.claimed"
)

// auditEntry is one audit_log row. Meta never carries secrets.
type auditEntry struct {
	Action    string
	UserID    string
	SessionID string
	IP        net.IP
	UserAgent string
	Meta      map[string]any
}

func (h *Handler) auditLoginFailed(ctx context.Context, userID string, ip net.IP, ua, identifier, reason string) {
	h.insertAudit(ctx, auditEntry{Action: actionLoginFailed, UserID: userID, IP: ip, UserAgent: ua, Meta: map[string]any{
		"identifier": identifier,
		"reason":     reason,
	}})
}

func (h *Handler) auditLoginRateLimited(ctx context.Context, ip net.IP, ua, identifier string, retryAfter time.Duration) {
	h.insertAudit(ctx, auditEntry{Action: actionLoginRateLimited, IP: ip, UserAgent: ua, Meta: map[string]any{
		"identifier":    identifier,
		"retry_after_s": int64(retryAfter.Seconds()),
	}})
}

func (h *Handler) insertAudit(ctx context.Context, e auditEntry) {
	if h == nil || h.pool == nil {
		return
	}

	action := strings.TrimSpace(e.Action)
	if action == "" {
		return
	}

	var ipVal any
	if e.IP != nil {
		ipVal = e.IP.String()
	}

	var metaVal *string
	if len(e.Meta) > 0 {
		if b, err := json.Marshal(e.Meta); err == nil {
			s := string(b)
			metaVal = &s
		}
	}

	_, err := h.pool.Exec(ctx, `
		INSERT INTO `+h.auditTable+` (
			user_id, session_id, action, created_at, ip, user_agent, meta
		) VALUES ($1, $2, $3, now(), $4, $5, $6::jsonb)
	`, trimOrNil(e.UserID), trimOrNil(e.SessionID), action, ipVal, trimOrNil(e.UserAgent), metaVal)
	if err != nil {
		h.log.Error("auth.audit.insert.fail", "err", err, "action", action)
	}
}

func trimOrNil(s string) any {
	v := strings.TrimSpace(s)
	if v == "" {
		return nil
	}
	return v
}

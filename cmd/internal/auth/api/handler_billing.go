package authapi

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/A1dos-Creations/login-api-website/cmd/internal/billing"
	"github.com/A1dos-Creations/login-api-website/cmd/internal/mail"
	"github.com/A1dos-Creations/login-api-website/cmd/internal/upgrade"
)

func (h *Handler) handleCreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	if h.checkout == nil {
		writeError(w, http.StatusServiceUnavailable, "billing_unavailable", "Payments are not configured.")
		return
	}
	var req tokenRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "Invalid request body.")
		return
	}
	c, ok := h.requireAuth(w, r, req.Token)
	if !ok {
		return
	}

	cs, err := h.checkout.CreateCheckoutSession(r.Context(), c.UserID)
	if err != nil {
		h.log.Error("billing.checkout.fail", "err", err, "user_id", c.UserID)
		writeError(w, http.StatusBadGateway, "billing_error", "Could not start checkout.")
		return
	}
	writeJSON(w, http.StatusOK, checkoutResponse{ID: cs.ID, URL: cs.URL})
}

// handleWebhook authenticates the delivery before reading anything from it. The user
// comes from the checkout session metadata set when the session was created.
func (h *Handler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if h.webhooks == nil {
		writeError(w, http.StatusServiceUnavailable, "billing_unavailable", "Payments are not configured.")
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.cfg.MaxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "Invalid request body.")
		return
	}

	ev, err := h.webhooks.Verify(payload, r.Header.Get(billing.SignatureHeader))
	if err != nil {
		h.log.Warn("billing.webhook.rejected", "err", err)
		writeError(w, http.StatusBadRequest, "invalid_signature", "Webhook signature verification failed.")
		return
	}
	if ev.Type != billing.EventCheckoutCompleted {
		writeJSON(w, http.StatusOK, webhookResponse{Received: true})
		return
	}

	cs, err := ev.CheckoutSession()
	if err != nil {
		h.log.Warn("billing.webhook.payload.invalid", "err", err, "event_id", ev.ID)
		writeError(w, http.StatusBadRequest, "invalid_payload", "Invalid checkout session.")
		return
	}
	if cs.PaymentStatus != "" && cs.PaymentStatus != "paid" {
		h.log.Info("billing.webhook.unpaid", "event_id", ev.ID, "payment_status", cs.PaymentStatus)
		writeJSON(w, http.StatusOK, webhookResponse{Received: true})
		return
	}
	userID := cs.UserID()
	if userID == "" {
		h.log.Warn("billing.webhook.no_user", "event_id", ev.ID)
		writeError(w, http.StatusBadRequest, "invalid_payload", "Checkout session has no user.")
		return
	}

	ctx := r.Context()
	key, created, err := h.keys.Issue(ctx, time.Now().UTC(), userID, cs.ID)
	if err != nil {
		if errors.Is(err, upgrade.ErrInvalidInput) {
			h.log.Warn("billing.webhook.unknown_user", "event_id", ev.ID, "user_id", userID)
			writeError(w, http.StatusBadRequest, "invalid_payload", "Unknown user.")
			return
		}
		// Non-2xx makes the provider retry; issuance is idempotent per checkout session.
		h.log.Error("billing.webhook.issue.fail", "err", err, "event_id", ev.ID, "user_id", userID)
		writeInternal(w)
		return
	}
	if !created {
		h.log.Info("billing.webhook.duplicate", "event_id", ev.ID, "checkout_session_id", cs.ID)
		writeJSON(w, http.StatusOK, webhookResponse{Received: true})
		return
	}

	h.insertAudit(ctx, auditEntry{Action: actionUpgradeIssued, UserID: userID, Meta: map[string]any{"checkout_session_id": cs.ID}})
	h.log.Info("billing.upgrade.issued", "user_id", userID, "checkout_session_id", cs.ID)

	if u, err := h.users.GetUserByID(ctx, userID); err == nil {
		h.mail.Enqueue(mail.TemplatePremiumKey, u.Email, mail.Data{Name: u.Name, Email: u.Email, Code: key.Code})
	} else {
		h.log.Error("billing.webhook.user.fail", "err", err, "user_id", userID)
	}
	writeJSON(w, http.StatusOK, webhookResponse{Received: true})
}

func (h *Handler) handleClaimUpgradeCode(w http.ResponseWriter, r *http.Request) {
	var req claimUpgradeRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "Invalid request body.")
		return
	}
	if strings.TrimSpace(req.Code) == "" || (strings.TrimSpace(req.Token) == "" && bearerToken(r) == "") {
		writeError(w, http.StatusBadRequest, "invalid_request", "Missing token or code.")
		return
	}
	c, ok := h.requireAuth(w, r, req.Token)
	if !ok {
		return
	}

	ctx := r.Context()
	if err := h.keys.Claim(ctx, time.Now().UTC(), c.UserID, req.Code); err != nil {
		switch {
		case errors.Is(err, upgrade.ErrAlreadyClaimedOrInvalid), errors.Is(err, upgrade.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, "invalid_code", "Invalid or already claimed code.")
		default:
			h.log.Error("billing.upgrade.claim.fail", "err", err, "user_id", c.UserID)
			writeInternal(w)
		}
		return
	}

	h.insertAudit(ctx, auditEntry{Action: actionUpgradeClaimed, UserID: c.UserID, IP: clientIP(r, h.cfg.TrustProxy), UserAgent: r.UserAgent()})
	writeJSON(w, http.StatusOK, messageResponse{Success: true, Message: "Upgrade code claimed successfully."})
}

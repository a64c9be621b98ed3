package authapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/A1dos-Creations/login-api-website/cmd/identity"
	"github.com/A1dos-Creations/login-api-website/cmd/internal/mail"
	"github.com/A1dos-Creations/login-api-website/cmd/internal/verify"

	"github.com/jackc/pgx/v5"
)

func (h *Handler) codeMinutes() int {
	return int(h.codes.TTL() / time.Minute)
}

// writeCodeError maps verification-code failures. It returns false for errors it
// does not recognize.
func writeCodeError(w http.ResponseWriter, err error) bool {
	switch {
	case verify.IsInvalidOrExpired(err):
		writeError(w, http.StatusBadRequest, "invalid_code", "Invalid or expired verification code.")
	case errors.Is(err, verify.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "rate_limited", "Too many attempts. Try again later.")
	case errors.Is(err, verify.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request.")
	default:
		return false
	}
	return true
}

func (h *Handler) handleSendVerificationCode(w http.ResponseWriter, r *http.Request) {
	var req sendCodeRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "Invalid request body.")
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "Email is required.")
		return
	}

	ctx := r.Context()
	u, err := h.users.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if identity.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "not_found", "User not found.")
			return
		}
		h.log.Error("auth.code.lookup.fail", "err", err)
		writeInternal(w)
		return
	}

	code, _, err := h.codes.Request(ctx, time.Now().UTC(), u.ID, verify.PurposePasswordReset, "")
	if err != nil {
		if writeCodeError(w, err) {
			return
		}
		h.log.Error("auth.code.request.fail", "err", err, "user_id", u.ID)
		writeInternal(w)
		return
	}

	h.mail.Enqueue(mail.TemplatePasswordCode, u.Email, mail.Data{Name: u.Name, Email: u.Email, Code: code, Minutes: h.codeMinutes()})
	writeJSON(w, http.StatusOK, messageResponse{Success: true, Message: "Verification code sent."})
}

func (h *Handler) handleUpdatePassword(w http.ResponseWriter, r *http.Request) {
	var req updatePasswordRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "Invalid request body.")
		return
	}
	if strings.TrimSpace(req.Email) == "" || strings.TrimSpace(req.VerificationCode) == "" || strings.TrimSpace(req.NewPassword) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "All fields are required.")
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()

	u, err := h.users.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if identity.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "not_found", "User not found.")
			return
		}
		h.log.Error("auth.password.lookup.fail", "err", err)
		writeInternal(w)
		return
	}

	// The code is spent only if the password update commits with it.
	_, err = h.codes.ConsumeForUser(ctx, now, u.ID, verify.PurposePasswordReset, req.VerificationCode,
		func(ctx context.Context, tx pgx.Tx, _ verify.Code) error {
			return h.users.UpdatePassword(ctx, tx, u.ID, req.NewPassword, now)
		})
	if err != nil {
		switch {
		case writeCodeError(w, err):
		case identity.IsInvalidInput(err):
			writeError(w, http.StatusBadRequest, "invalid_request", inputMessage(err, "Invalid password."))
		default:
			h.log.Error("auth.password.update.fail", "err", err, "user_id", u.ID)
			writeInternal(w)
		}
		return
	}

	ip := clientIP(r, h.cfg.TrustProxy)
	h.insertAudit(ctx, auditEntry{Action: actionPasswordReset, UserID: u.ID, IP: ip, UserAgent: r.UserAgent()})
	h.log.Info("auth.password.reset", "user_id", u.ID)
	h.mail.Enqueue(mail.TemplatePasswordChanged, u.Email, mail.Data{Name: u.Name, Email: u.Email})

	tok, _, _, err := h.startSession(ctx, r, u, h.sessions.IssuePasswordResetToken, now)
	if err != nil {
		// The password is already changed; the client can log in normally.
		h.log.Error("auth.password.token.fail", "err", err, "user_id", u.ID)
		writeJSON(w, http.StatusOK, passwordUpdatedResponse{Success: true, Message: "Password updated successfully."})
		return
	}
	writeJSON(w, http.StatusOK, passwordUpdatedResponse{Success: true, Message: "Password updated successfully.", Token: tok})
}

func (h *Handler) handleRequestEmailChange(w http.ResponseWriter, r *http.Request) {
	var req requestEmailChangeRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "Invalid request body.")
		return
	}
	newEmail := strings.TrimSpace(req.NewEmail)
	if newEmail == "" || req.Password == "" || !strings.Contains(newEmail, "@") {
		writeError(w, http.StatusBadRequest, "invalid_request", "Password and a valid new email are required.")
		return
	}
	c, ok := h.requireAuth(w, r, req.Token)
	if !ok {
		return
	}

	ctx := r.Context()
	u, err := h.users.GetUserByID(ctx, c.UserID)
	if err != nil {
		if identity.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "not_found", "User not found.")
			return
		}
		h.log.Error("auth.email_change.lookup.fail", "err", err)
		writeInternal(w)
		return
	}

	match, err := h.users.CheckPassword(ctx, u.ID, req.Password)
	if err != nil {
		h.log.Error("auth.email_change.password.fail", "err", err, "user_id", u.ID)
		writeInternal(w)
		return
	}
	if !match {
		writeError(w, http.StatusBadRequest, "invalid_credentials", "Incorrect password.")
		return
	}

	if identity.NormalizeEmail(newEmail) == identity.NormalizeEmail(u.Email) {
		writeError(w, http.StatusBadRequest, "invalid_request", "New email must differ from the current one.")
		return
	}
	if _, err := h.users.GetUserByEmail(ctx, newEmail); err == nil {
		writeError(w, http.StatusConflict, "email_taken", "A user with that email already exists.")
		return
	} else if !identity.IsNotFound(err) {
		h.log.Error("auth.email_change.lookup.fail", "err", err)
		writeInternal(w)
		return
	}

	code, _, err := h.codes.Request(ctx, time.Now().UTC(), u.ID, verify.PurposeEmailChange, newEmail)
	if err != nil {
		if writeCodeError(w, err) {
			return
		}
		h.log.Error("auth.email_change.request.fail", "err", err, "user_id", u.ID)
		writeInternal(w)
		return
	}

	h.mail.Enqueue(mail.TemplateEmailChangeCode, newEmail, mail.Data{Name: u.Name, Email: newEmail, Code: code, Minutes: h.codeMinutes()})
	writeJSON(w, http.StatusOK, messageResponse{Success: true, Message: "Verification code sent to the new email."})
}

func (h *Handler) handleVerifyEmailChange(w http.ResponseWriter, r *http.Request) {
	var req verifyEmailChangeRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "Invalid request body.")
		return
	}
	if strings.TrimSpace(req.NewEmail) == "" || strings.TrimSpace(req.Code) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "New email and code are required.")
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()

	code, err := h.codes.ConsumeForNewEmail(ctx, now, req.NewEmail, req.Code,
		func(ctx context.Context, tx pgx.Tx, c verify.Code) error {
			return h.users.UpdateEmail(ctx, tx, c.UserID, c.NewEmail, now)
		})
	if err != nil {
		switch {
		case writeCodeError(w, err):
		case identity.IsConflict(err):
			writeError(w, http.StatusConflict, "email_taken", "A user with that email already exists.")
		default:
			h.log.Error("auth.email_change.apply.fail", "err", err)
			writeInternal(w)
		}
		return
	}

	h.insertAudit(ctx, auditEntry{Action: actionEmailChanged, UserID: code.UserID, IP: clientIP(r, h.cfg.TrustProxy), UserAgent: r.UserAgent()})
	h.log.Info("auth.email.changed", "user_id", code.UserID)
	writeJSON(w, http.StatusOK, messageResponse{Success: true, Message: "Email updated successfully."})
}

func (h *Handler) handleUpdateNotifications(w http.ResponseWriter, r *http.Request) {
	var req updateNotificationsRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "Invalid request body.")
		return
	}
	if req.EmailNotifications == nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "emailNotifications is required.")
		return
	}
	c, ok := h.requireAuth(w, r, req.Token)
	if !ok {
		return
	}

	u, err := h.users.SetEmailNotifications(r.Context(), c.UserID, *req.EmailNotifications, time.Now().UTC())
	if err != nil {
		if identity.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "not_found", "User not found.")
			return
		}
		h.log.Error("auth.notifications.update.fail", "err", err, "user_id", c.UserID)
		writeInternal(w)
		return
	}

	if u.EmailNotifications {
		h.mail.Enqueue(mail.TemplateNotificationsOn, u.Email, mail.Data{Name: u.Name, Email: u.Email})
	}
	writeJSON(w, http.StatusOK, userEnvelope{Success: true, User: toUserResponse(u)})
}

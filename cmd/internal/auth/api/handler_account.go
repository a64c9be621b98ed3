package authapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/A1dos-Creations/login-api-website/cmd/identity"
	"github.com/A1dos-Creations/login-api-website/cmd/internal/auth/session"
	"github.com/A1dos-Creations/login-api-website/cmd/internal/mail"
)

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "Invalid request body.")
		return
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Email) == "" || strings.TrimSpace(req.Password) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "All fields are required.")
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()

	u, err := h.users.CreateUser(ctx, identity.CreateUserInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Now:      now,
	})
	if err != nil {
		switch {
		case identity.IsConflict(err):
			writeError(w, http.StatusConflict, "email_taken", "A user with that email already exists.")
		case identity.IsInvalidInput(err):
			writeError(w, http.StatusBadRequest, "invalid_request", inputMessage(err, "Invalid registration details."))
		default:
			h.log.Error("auth.register.fail", "err", err)
			writeInternal(w)
		}
		return
	}

	// The user row is committed; a token failure here must not turn a retry into a 409.
	tok, sessionID, _, err := h.startSession(ctx, r, u, h.sessions.IssueLoginToken, now)
	if err != nil {
		h.log.Error("auth.register.token.fail", "err", err, "user_id", u.ID)
		writeJSON(w, http.StatusCreated, authResponse{Success: true, User: toUserResponse(u)})
		return
	}

	h.insertAudit(ctx, auditEntry{Action: actionRegister, UserID: u.ID, SessionID: sessionID, IP: clientIP(r, h.cfg.TrustProxy), UserAgent: r.UserAgent()})
	h.log.Info("auth.register", "user_id", u.ID)
	h.mail.Enqueue(mail.TemplateWelcome, u.Email, mail.Data{Name: u.Name, Email: u.Email})

	writeJSON(w, http.StatusCreated, authResponse{Success: true, User: toUserResponse(u), Token: tok})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "Invalid request body.")
		return
	}
	email := identity.NormalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "Email and password are required.")
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()
	ip := clientIP(r, h.cfg.TrustProxy)
	ua := strings.TrimSpace(r.UserAgent())

	// Throttle before touching credentials.
	if blocked, retryAfter, err := h.checkLoginIPThrottle(ctx, ip, now); err != nil {
		h.log.Error("auth.login.throttle_ip.fail", "err", err)
		writeError(w, http.StatusServiceUnavailable, "server_busy", "Please retry later.")
		return
	} else if blocked {
		h.metrics.Login("throttled")
		h.auditLoginRateLimited(ctx, ip, ua, email, retryAfter)
		writeRateLimited(w, retryAfter)
		return
	}
	if blocked, retryAfter, err := h.checkLoginEmailLockout(ctx, email, now); err != nil {
		h.log.Error("auth.login.lockout.fail", "err", err)
		writeError(w, http.StatusServiceUnavailable, "server_busy", "Please retry later.")
		return
	} else if blocked {
		h.metrics.Login("throttled")
		h.auditLoginRateLimited(ctx, ip, ua, email, retryAfter)
		writeRateLimited(w, retryAfter)
		return
	}

	u, err := h.users.VerifyCredentials(ctx, email, req.Password, now)
	if err != nil {
		if identity.IsInvalidCredentials(err) || identity.IsInvalidInput(err) {
			h.metrics.Login("invalid")
			h.auditLoginFailed(ctx, "", ip, ua, email, "invalid_credentials")
			writeError(w, http.StatusBadRequest, "invalid_credentials", "Email or password is incorrect")
			return
		}
		h.metrics.Login("error")
		h.log.Error("auth.login.fail", "err", err)
		writeInternal(w)
		return
	}

	tok, sessionID, dev, err := h.startSession(ctx, r, u, h.sessions.IssueLoginToken, now)
	if err != nil {
		h.metrics.Login("error")
		h.log.Error("auth.login.token.fail", "err", err, "user_id", u.ID)
		writeInternal(w)
		return
	}

	h.metrics.Login("success")
	h.insertAudit(ctx, auditEntry{Action: actionLoginSuccess, UserID: u.ID, SessionID: sessionID, IP: ip, UserAgent: ua, Meta: map[string]any{"identifier": email}})
	h.log.Info("auth.login", "user_id", u.ID, "session_id", sessionID)

	if u.EmailNotifications {
		h.mail.Enqueue(mail.TemplateLoginNotice, u.Email, mail.Data{
			Name:     u.Name,
			Email:    u.Email,
			Device:   dev.Info,
			IP:       dev.IP,
			Location: dev.Location,
			Time:     now,
		})
	}

	writeJSON(w, http.StatusOK, authResponse{Success: true, User: toUserResponse(u), Token: tok})
}

func (h *Handler) handleVerifyToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "Invalid request body.")
		return
	}
	c, ok := h.requireAuth(w, r, req.Token)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, verifyTokenResponse{Valid: true, User: verifyTokenUser{ID: c.UserID, Email: c.Email}})
}

func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "Invalid request body.")
		return
	}
	c, ok := h.requireAuth(w, r, req.Token)
	if !ok {
		return
	}

	current := strings.TrimSpace(req.Token)
	if current == "" {
		current = bearerToken(r)
	}
	views, err := h.sessions.ListSessions(r.Context(), c.UserID, current)
	if err != nil {
		h.log.Error("auth.sessions.list.fail", "err", err, "user_id", c.UserID)
		writeInternal(w)
		return
	}
	writeJSON(w, http.StatusOK, sessionsResponse{Success: true, Sessions: toSessionResponses(views)})
}

func (h *Handler) handleRevokeSession(w http.ResponseWriter, r *http.Request) {
	var req revokeSessionRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "Invalid request body.")
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "Missing token or session ID.")
		return
	}
	c, ok := h.requireAuth(w, r, req.Token)
	if !ok {
		return
	}

	ctx := r.Context()
	if err := h.sessions.RevokeSession(ctx, req.SessionID, c.UserID); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "Session not found.")
			return
		}
		h.log.Error("auth.sessions.revoke.fail", "err", err, "user_id", c.UserID)
		writeInternal(w)
		return
	}

	h.insertAudit(ctx, auditEntry{Action: actionSessionRevoked, UserID: c.UserID, SessionID: strings.TrimSpace(req.SessionID), IP: clientIP(r, h.cfg.TrustProxy), UserAgent: r.UserAgent()})
	writeJSON(w, http.StatusOK, messageResponse{Success: true, Message: "Session revoked."})
}

package authapi

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/A1dos-Creations/login-api-website/cmd/identity"
	"github.com/A1dos-Creations/login-api-website/cmd/internal/google"
	"github.com/A1dos-Creations/login-api-website/cmd/internal/mail"
)

func (h *Handler) handleGoogleAuth(w http.ResponseWriter, r *http.Request) {
	if h.oauth == nil {
		writeError(w, http.StatusServiceUnavailable, "google_unavailable", "Google integration is not configured.")
		return
	}
	c, ok := h.requireAuth(w, r, r.URL.Query().Get("token"))
	if !ok {
		return
	}

	state, err := h.sessions.IssueState(c.UserID, time.Now().UTC())
	if err != nil {
		h.log.Error("auth.google.state.fail", "err", err)
		writeInternal(w)
		return
	}
	http.Redirect(w, r, h.oauth.AuthCodeURL(state), http.StatusFound)
}

func (h *Handler) handleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	if h.oauth == nil {
		writeError(w, http.StatusServiceUnavailable, "google_unavailable", "Google integration is not configured.")
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()
	q := r.URL.Query()

	userID, err := h.sessions.VerifyState(q.Get("state"), now)
	if err != nil {
		h.log.Warn("auth.google.callback.bad_state")
		h.redirectAccount(w, r, false)
		return
	}
	if q.Get("error") != "" || q.Get("code") == "" {
		h.log.Info("auth.google.callback.denied", "user_id", userID)
		h.redirectAccount(w, r, false)
		return
	}

	grant, err := h.oauth.Exchange(ctx, q.Get("code"))
	if err != nil {
		h.log.Error("auth.google.exchange.fail", "err", err, "user_id", userID)
		h.redirectAccount(w, r, false)
		return
	}

	link := identity.GoogleLink{AccessToken: grant.AccessToken, RefreshToken: grant.RefreshToken}
	if grant.Subject != "" {
		link.GoogleID = &grant.Subject
	}
	if !grant.Expiry.IsZero() {
		exp := grant.Expiry.UTC()
		link.Expiry = &exp
	}
	if err := h.users.SaveGoogleLink(ctx, userID, link, now); err != nil {
		h.log.Error("auth.google.link.save.fail", "err", err, "user_id", userID)
		h.redirectAccount(w, r, false)
		return
	}

	h.insertAudit(ctx, auditEntry{Action: actionGoogleLinked, UserID: userID, IP: clientIP(r, h.cfg.TrustProxy), UserAgent: r.UserAgent()})
	h.log.Info("auth.google.linked", "user_id", userID)

	if u, err := h.users.GetUserByID(ctx, userID); err == nil && u.EmailNotifications {
		h.mail.Enqueue(mail.TemplateGoogleLinked, u.Email, mail.Data{Name: u.Name, Email: u.Email})
	}
	h.redirectAccount(w, r, true)
}

func (h *Handler) redirectAccount(w http.ResponseWriter, r *http.Request, linked bool) {
	u, err := url.Parse(h.cfg.AccountPageURL)
	if err != nil {
		writeInternal(w)
		return
	}
	q := u.Query()
	q.Set("googleLinked", fmt.Sprint(linked))
	u.RawQuery = q.Encode()
	http.Redirect(w, r, u.String(), http.StatusFound)
}

func (h *Handler) handleUnlinkGoogle(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "Invalid request body.")
		return
	}
	c, ok := h.requireAuth(w, r, req.Token)
	if !ok {
		return
	}

	ctx := r.Context()
	if err := h.users.ClearGoogleLink(ctx, c.UserID, time.Now().UTC()); err != nil {
		if identity.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "not_found", "User not found.")
			return
		}
		h.log.Error("auth.google.unlink.fail", "err", err, "user_id", c.UserID)
		writeInternal(w)
		return
	}

	h.insertAudit(ctx, auditEntry{Action: actionGoogleUnlinked, UserID: c.UserID, IP: clientIP(r, h.cfg.TrustProxy), UserAgent: r.UserAgent()})
	writeJSON(w, http.StatusOK, messageResponse{Success: true, Message: "Google account unlinked successfully."})
}

func (h *Handler) handleCheckGoogleLink(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "Invalid request body.")
		return
	}
	c, ok := h.requireAuth(w, r, req.Token)
	if !ok {
		return
	}

	u, err := h.users.GetUserByID(r.Context(), c.UserID)
	if err != nil {
		if identity.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "not_found", "User not found.")
			return
		}
		h.log.Error("auth.google.check.fail", "err", err, "user_id", c.UserID)
		writeInternal(w)
		return
	}
	writeJSON(w, http.StatusOK, googleLinkResponse{Linked: u.GoogleLinked()})
}

// googleLink authenticates the request and loads the caller's Google tokens, writing
// the error response itself when it returns false.
func (h *Handler) googleLink(w http.ResponseWriter, r *http.Request, tok string) (string, identity.GoogleLink, bool) {
	if h.calendar == nil {
		writeError(w, http.StatusServiceUnavailable, "google_unavailable", "Google integration is not configured.")
		return "", identity.GoogleLink{}, false
	}
	c, ok := h.requireAuth(w, r, tok)
	if !ok {
		return "", identity.GoogleLink{}, false
	}
	link, err := h.users.GetGoogleLink(r.Context(), c.UserID)
	if err != nil {
		if identity.IsNotFound(err) {
			writeError(w, http.StatusBadRequest, "google_not_linked", "Google account not linked.")
			return "", identity.GoogleLink{}, false
		}
		h.log.Error("auth.google.link.load.fail", "err", err, "user_id", c.UserID)
		writeInternal(w)
		return "", identity.GoogleLink{}, false
	}
	return c.UserID, link, true
}

func (h *Handler) writeGoogleError(w http.ResponseWriter, op, userID string, err error) {
	switch {
	case errors.Is(err, google.ErrNotLinked):
		writeError(w, http.StatusBadRequest, "google_not_linked", "Google account not linked.")
	case errors.Is(err, google.ErrCalendarNotFound):
		writeError(w, http.StatusBadRequest, "calendar_not_found", "Synced calendar not found.")
	default:
		h.log.Error("auth.google."+op+".fail", "err", err, "user_id", userID)
		writeError(w, http.StatusBadGateway, "google_error", "Google request failed.")
	}
}

func (h *Handler) handleCreateCalendar(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "Invalid request body.")
		return
	}
	userID, link, ok := h.googleLink(w, r, req.Token)
	if !ok {
		return
	}

	id, err := h.calendar.EnsureSyncedCalendar(r.Context(), userID, link)
	if err != nil {
		h.writeGoogleError(w, "calendar", userID, err)
		return
	}
	writeJSON(w, http.StatusOK, calendarResponse{Success: true, CalendarID: id})
}

func (h *Handler) handleAddTaskEvent(w http.ResponseWriter, r *http.Request) {
	var req addTaskEventRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "Invalid request body.")
		return
	}
	if strings.TrimSpace(req.TaskTitle) == "" || strings.TrimSpace(req.TaskDueDate) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "Task title and due date are required.")
		return
	}
	due, err := parseDueDate(req.TaskDueDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid task due date.")
		return
	}
	userID, link, ok := h.googleLink(w, r, req.Token)
	if !ok {
		return
	}

	id, err := h.calendar.AddTaskEvent(r.Context(), userID, link, google.Task{
		Title:       strings.TrimSpace(req.TaskTitle),
		Description: req.TaskDescription,
		Due:         due,
	})
	if err != nil {
		h.writeGoogleError(w, "event.add", userID, err)
		return
	}
	writeJSON(w, http.StatusOK, eventResponse{Success: true, EventID: id})
}

func (h *Handler) handleDeleteTaskEvent(w http.ResponseWriter, r *http.Request) {
	var req deleteTaskEventRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "Invalid request body.")
		return
	}
	if strings.TrimSpace(req.EventID) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "Missing event ID.")
		return
	}
	userID, link, ok := h.googleLink(w, r, req.Token)
	if !ok {
		return
	}

	if err := h.calendar.DeleteTaskEvent(r.Context(), userID, link, strings.TrimSpace(req.EventID)); err != nil {
		h.writeGoogleError(w, "event.delete", userID, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Success: true, Message: "Event deleted successfully."})
}

var dueDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// parseDueDate accepts RFC 3339 or a zone-less date(-time), read as UTC.
func parseDueDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dueDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

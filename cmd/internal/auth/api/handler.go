package authapi

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/A1dos-Creations/login-api-website/cmd/identity"
	"github.com/A1dos-Creations/login-api-website/cmd/internal/auth/session"
	"github.com/A1dos-Creations/login-api-website/cmd/internal/billing"
	"github.com/A1dos-Creations/login-api-website/cmd/internal/google"
	"github.com/A1dos-Creations/login-api-website/cmd/internal/mail"
	"github.com/A1dos-Creations/login-api-website/cmd/internal/metrics"
	"github.com/A1dos-Creations/login-api-website/cmd/internal/upgrade"
	"github.com/A1dos-Creations/login-api-website/cmd/internal/verify"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Locator resolves a coarse, human-readable location for an IP. It never fails.
type Locator interface {
	Locate(ctx context.Context, ip string) string
}

// Mailer queues outbound mail without waiting for delivery.
type Mailer interface {
	Enqueue(template, to string, d mail.Data)
}

// OAuthProvider runs the Google authorization-code flow.
type OAuthProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (google.Grant, error)
}

// Calendar syncs tasks into the user's Google Calendar.
type Calendar interface {
	EnsureSyncedCalendar(ctx context.Context, userID string, link identity.GoogleLink) (string, error)
	AddTaskEvent(ctx context.Context, userID string, link identity.GoogleLink, task google.Task) (string, error)
	DeleteTaskEvent(ctx context.Context, userID string, link identity.GoogleLink, eventID string) error
}

// CheckoutCreator starts a payment.
type CheckoutCreator interface {
	CreateCheckoutSession(ctx context.Context, userID string) (billing.CheckoutSession, error)
}

// WebhookVerifier authenticates payment-provider webhook deliveries.
type WebhookVerifier interface {
	Verify(payload []byte, header string) (billing.Event, error)
}

// Deps are the components the handlers call. Users, Sessions, Codes and Keys are
// required; a nil collaborator disables the endpoints that need it.
type Deps struct {
	// Pool backs the audit log. Nil disables auditing and login throttling.
	Pool   *pgxpool.Pool
	Schema string

	Users    identity.Store
	Sessions *session.Service
	Codes    *verify.Service
	Keys     *upgrade.Service

	Mail     Mailer
	Geo      Locator
	OAuth    OAuthProvider
	Calendar Calendar
	Checkout CheckoutCreator
	Webhooks WebhookVerifier
}

// Handler wires HTTP endpoints to the account, session, code and billing services.
type Handler struct {
	log     *slog.Logger
	metrics *metrics.Metrics
	cfg     Config

	pool       *pgxpool.Pool
	auditTable string

	users    identity.Store
	sessions *session.Service
	codes    *verify.Service
	keys     *upgrade.Service

	mail     Mailer
	geo      Locator
	oauth    OAuthProvider
	calendar Calendar
	checkout CheckoutCreator
	webhooks WebhookVerifier
}

// HandlerOption configures optional handler dependencies.
type HandlerOption func(*Handler)

func WithLogger(log *slog.Logger) HandlerOption {
	return func(h *Handler) {
		if log != nil {
			h.log = log
		}
	}
}

func WithMetrics(m *metrics.Metrics) HandlerOption {
	return func(h *Handler) { h.metrics = m }
}

type noopMailer struct{}

func (noopMailer) Enqueue(string, string, mail.Data) {}

// NewHandler constructs a Handler.
func NewHandler(cfg Config, deps Deps, opts ...HandlerOption) (*Handler, error) {
	if err := cfg.Check(); err != nil {
		return nil, err
	}
	if deps.Users == nil || deps.Sessions == nil || deps.Codes == nil || deps.Keys == nil {
		return nil, errors.New("auth: users, sessions, codes and keys are required")
	}
	schema := strings.TrimSpace(deps.Schema)
	if schema == "" {
		schema = "stl"
	}

	h := &Handler{
		log:        slog.Default(),
		cfg:        cfg,
		pool:       deps.Pool,
		auditTable: pgx.Identifier{schema, "audit_log"}.Sanitize(),
		users:      deps.Users,
		sessions:   deps.Sessions,
		codes:      deps.Codes,
		keys:       deps.Keys,
		mail:       deps.Mail,
		geo:        deps.Geo,
		oauth:      deps.OAuth,
		calendar:   deps.Calendar,
		checkout:   deps.Checkout,
		webhooks:   deps.Webhooks,
	}
	if h.mail == nil {
		h.mail = noopMailer{}
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h, nil
}

// Register wires routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("GET /health", h.handleHealth)

	mux.HandleFunc("POST /register-user", h.handleRegister)
	mux.HandleFunc("POST /login-user", h.handleLogin)
	mux.HandleFunc("POST /verify-token", h.handleVerifyToken)
	mux.HandleFunc("POST /get-user-sessions", h.handleListSessions)
	mux.HandleFunc("POST /revoke-session", h.handleRevokeSession)

	mux.HandleFunc("POST /send-verification-code", h.handleSendVerificationCode)
	mux.HandleFunc("POST /update-password", h.handleUpdatePassword)
	mux.HandleFunc("POST /request-email-change", h.handleRequestEmailChange)
	mux.HandleFunc("POST /verify-email-change", h.handleVerifyEmailChange)
	mux.HandleFunc("POST /update-notifications", h.handleUpdateNotifications)

	mux.HandleFunc("GET /auth/google", h.handleGoogleAuth)
	mux.HandleFunc("GET /auth/google/callback", h.handleGoogleCallback)
	mux.HandleFunc("POST /unlink-google", h.handleUnlinkGoogle)
	mux.HandleFunc("POST /check-google-link", h.handleCheckGoogleLink)
	mux.HandleFunc("POST /create-calendar", h.handleCreateCalendar)
	mux.HandleFunc("POST /add-task-event", h.handleAddTaskEvent)
	mux.HandleFunc("POST /delete-task-event", h.handleDeleteTaskEvent)

	mux.HandleFunc("POST /create-checkout-session", h.handleCreateCheckoutSession)
	mux.HandleFunc("POST /webhook", h.handleWebhook)
	mux.HandleFunc("POST /claim-upgrade-code", h.handleClaimUpgradeCode)
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Timestamp: time.Now().UTC()})
}

// ---- helpers ----

// requireAuth authenticates tok, falling back to an Authorization bearer token, and
// writes the error response itself when it returns false.
func (h *Handler) requireAuth(w http.ResponseWriter, r *http.Request, tok string) (session.Claims, bool) {
	tok = strings.TrimSpace(tok)
	if tok == "" {
		tok = bearerToken(r)
	}
	if tok == "" {
		writeError(w, http.StatusBadRequest, "missing_token", "Missing token.")
		return session.Claims{}, false
	}

	c, err := h.sessions.Authenticate(r.Context(), tok, time.Now().UTC())
	switch {
	case err == nil:
		return c, true
	case errors.Is(err, session.ErrSessionRevoked):
		writeError(w, http.StatusUnauthorized, "session_revoked", "Session revoked")
	case errors.Is(err, session.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, "invalid_token", "Invalid token")
	default:
		h.log.Error("auth.authenticate.fail", "err", err)
		writeInternal(w)
	}
	return session.Claims{}, false
}

func bearerToken(r *http.Request) string {
	v := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(v) > 7 && strings.EqualFold(v[:7], "bearer ") {
		return strings.TrimSpace(v[7:])
	}
	return ""
}

// deviceFor describes the client of r. The location lookup is best-effort.
func (h *Handler) deviceFor(ctx context.Context, r *http.Request) session.Device {
	dev := session.Device{Info: strings.TrimSpace(r.UserAgent())}
	if ip := clientIP(r, h.cfg.TrustProxy); ip != nil {
		dev.IP = ip.String()
		if h.geo != nil {
			dev.Location = h.geo.Locate(ctx, dev.IP)
		}
	}
	return dev
}

type issueFunc func(userID, email string, now time.Time) (string, session.Claims, error)

// startSession issues a token and records its session row before returning, so an
// immediate revoke finds it. Only a failure to issue the token is returned; a row
// that cannot be written is logged and sessionID is left empty. Such a token
// verifies but fails Authenticate as revoked.
func (h *Handler) startSession(ctx context.Context, r *http.Request, u identity.User, issue issueFunc, now time.Time) (tok, sessionID string, dev session.Device, err error) {
	tok, _, err = issue(u.ID, u.Email, now)
	if err != nil {
		return "", "", session.Device{}, err
	}
	dev = h.deviceFor(ctx, r)
	sessionID, rerr := h.sessions.RecordSession(ctx, now, tok, u.ID, dev)
	if rerr != nil {
		h.metrics.Login("session_persist_fail")
		h.log.Error("auth.session.record.fail", "err", rerr, "user_id", u.ID)
		return tok, "", dev, nil
	}
	return tok, sessionID, dev, nil
}

// inputMessage returns the human part of an identity validation error.
func inputMessage(err error, fallback string) string {
	var op identity.OpError
	if errors.As(err, &op) && op.Msg != "" {
		return op.Msg
	}
	return fallback
}

func clientIP(r *http.Request, trustProxy bool) net.IP {
	if trustProxy {
		if ip := parseForwardedIP(r.Header.Get("X-Forwarded-For")); ip != nil {
			return ip
		}
		if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil {
		if ip := net.ParseIP(host); ip != nil {
			return ip
		}
	}
	return nil
}

func parseForwardedIP(raw string) net.IP {
	if raw == "" {
		return nil
	}
	for _, p := range strings.Split(raw, ",") {
		if ip := net.ParseIP(strings.TrimSpace(p)); ip != nil {
			return ip
		}
	}
	return nil
}

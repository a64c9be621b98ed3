package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/A1dos-Creations/login-api-website/cmd/internal/metrics"
	"github.com/A1dos-Creations/login-api-website/cmd/security/token"
)

// Notifier receives revocations for the live channel.
// PushLogout reports whether a connection was registered for key.
type Notifier interface {
	PushLogout(key string) bool
}

// Service implements the session operations: issuing tokens, recording sessions,
// listing them, revoking them, and authenticating requests.
type Service struct {
	cfg      Config
	tokens   TokenIssuer
	store    Store
	hasher   token.Hasher
	notifier Notifier
	log      *slog.Logger
	metrics  *metrics.Metrics
}

// ServiceOption configures optional Service dependencies.
type ServiceOption func(*Service)

// WithNotifier sets the live channel that receives logout pushes.
func WithNotifier(n Notifier) ServiceOption {
	return func(s *Service) { s.notifier = n }
}

// WithLogger sets the service logger.
func WithLogger(log *slog.Logger) ServiceOption {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// NewService constructs a Service.
func NewService(cfg Config, store Store, tokens TokenIssuer, hasher token.Hasher, opts ...ServiceOption) *Service {
	s := &Service{
		cfg:    cfg,
		store:  store,
		tokens: tokens,
		hasher: hasher,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// View is one entry of a session listing.
type View struct {
	ID           string
	DeviceInfo   string
	IPAddress    string
	Location     string
	LoginTime    time.Time
	LastActivity time.Time
	// Current is set on the entry whose token made the listing request.
	Current bool
}

// TokenKey returns the digest that identifies token in storage and in the live registry.
func (s *Service) TokenKey(tok string) string {
	return s.hasher.Hex(tok)
}

// IssueToken issues a session token for userID with an explicit ttl.
func (s *Service) IssueToken(userID, email string, ttl time.Duration, now time.Time) (string, Claims, error) {
	return s.tokens.Issue(PurposeSession, userID, email, ttl, now)
}

// IssueLoginToken issues a session token with the login TTL.
func (s *Service) IssueLoginToken(userID, email string, now time.Time) (string, Claims, error) {
	return s.IssueToken(userID, email, s.cfg.LoginTTL, now)
}

// IssuePasswordResetToken issues a session token with the post-reset TTL.
func (s *Service) IssuePasswordResetToken(userID, email string, now time.Time) (string, Claims, error) {
	return s.IssueToken(userID, email, s.cfg.PasswordResetTTL, now)
}

// IssueState mints a short-lived OAuth state token bound to userID.
func (s *Service) IssueState(userID string, now time.Time) (string, error) {
	tok, _, err := s.tokens.Issue(PurposeOAuthState, userID, "", s.cfg.StateTTL, now)
	return tok, err
}

// VerifyState returns the user bound to an OAuth state token.
func (s *Service) VerifyState(state string, now time.Time) (string, error) {
	c, err := s.tokens.Verify(strings.TrimSpace(state), now)
	if err != nil {
		return "", ErrInvalidToken
	}
	if c.Purpose != PurposeOAuthState {
		return "", ErrInvalidToken
	}
	return c.UserID, nil
}

// Verify checks a session token's signature and expiry only. Callers that must honor
// revocation use Authenticate.
func (s *Service) Verify(tok string, now time.Time) (Claims, error) {
	c, err := s.tokens.Verify(strings.TrimSpace(tok), now)
	if err != nil {
		return Claims{}, ErrInvalidToken
	}
	if c.Purpose != PurposeSession {
		return Claims{}, ErrInvalidToken
	}
	return c, nil
}

// Authenticate verifies tok and requires its session row to exist.
// It returns ErrInvalidToken for a bad signature or expiry and ErrSessionRevoked when
// the token is valid but its row is gone. The row's last_activity is bumped.
func (s *Service) Authenticate(ctx context.Context, tok string, now time.Time) (Claims, error) {
	c, err := s.Verify(tok, now)
	if err != nil {
		return Claims{}, err
	}

	rec, err := s.store.TouchByTokenHash(ctx, now, s.TokenKey(strings.TrimSpace(tok)))
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return Claims{}, ErrSessionRevoked
		}
		return Claims{}, err
	}
	if rec.UserID != c.UserID {
		return Claims{}, ErrInvalidToken
	}
	return c, nil
}

// RecordSession persists one row for a successful login. Callers run it before
// responding so an immediate revoke finds the row.
func (s *Service) RecordSession(ctx context.Context, now time.Time, tok, userID string, dev Device) (string, error) {
	dev.Info = strings.TrimSpace(dev.Info)
	if dev.Info == "" {
		dev.Info = "Unknown device"
	}
	if strings.TrimSpace(dev.IP) == "" {
		dev.IP = "Unknown IP"
	}
	if strings.TrimSpace(dev.Location) == "" {
		dev.Location = UnknownLocation
	}

	id, err := s.store.Create(ctx, now, userID, s.TokenKey(tok), dev)
	if err != nil {
		return "", err
	}
	s.metrics.SessionCreated()
	return id, nil
}

// ListSessions returns the newest session per distinct (device, location) of userID.
// currentToken, when non-empty, marks the matching entry as Current.
func (s *Service) ListSessions(ctx context.Context, userID, currentToken string) ([]View, error) {
	recs, err := s.store.ListLatestPerDevice(ctx, userID)
	if err != nil {
		return nil, err
	}

	var currentKey string
	if currentToken = strings.TrimSpace(currentToken); currentToken != "" {
		currentKey = s.TokenKey(currentToken)
	}

	out := make([]View, 0, len(recs))
	for _, r := range recs {
		out = append(out, View{
			ID:           r.ID,
			DeviceInfo:   r.DeviceInfo,
			IPAddress:    r.IPAddress,
			Location:     r.Location,
			LoginTime:    r.LoginTime,
			LastActivity: r.LastActivity,
			Current:      currentKey != "" && token.EqualHex(r.TokenHash, currentKey),
		})
	}
	return out, nil
}

// RevokeSession deletes the session (sessionID, userID) and then pushes a logout to the
// live connection registered for its token, if any. It returns ErrSessionNotFound when
// no row matches, so one user can never revoke another user's session. The push is
// attempted only after the delete has completed.
func (s *Service) RevokeSession(ctx context.Context, sessionID, userID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" || strings.TrimSpace(userID) == "" {
		return ErrSessionNotFound
	}

	tokenHash, err := s.store.DeleteForUser(ctx, sessionID, userID)
	if err != nil {
		return err
	}
	s.metrics.SessionRevoked()

	if s.notifier != nil {
		delivered := s.notifier.PushLogout(tokenHash)
		s.metrics.LivePush(delivered)
		s.log.Info("session.revoke", "session_id", sessionID, "user_id", userID, "live_pushed", delivered)
	} else {
		s.log.Info("session.revoke", "session_id", sessionID, "user_id", userID)
	}
	return nil
}

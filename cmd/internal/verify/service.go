package verify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/A1dos-Creations/login-api-website/cmd/identity"
	"github.com/A1dos-Creations/login-api-website/cmd/identity/ids"
	"github.com/A1dos-Creations/login-api-website/cmd/internal/metrics"
	"github.com/A1dos-Creations/login-api-website/cmd/security/token"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Code is a stored verification code without its secret.
type Code struct {
	ID        string
	UserID    string
	Purpose   Purpose
	NewEmail  string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// ApplyFunc performs the state change a code authorizes, inside the consuming transaction.
// Returning an error rolls back the change and leaves the codes in place.
type ApplyFunc func(ctx context.Context, tx pgx.Tx, c Code) error

// Service issues and consumes verification codes stored in Postgres.
type Service struct {
	pool    *pgxpool.Pool
	table   string
	cfg     Config
	hasher  token.Hasher
	limiter Limiter
	// attempts throttles consume calls separately from requests.
	attempts Limiter
	log      *slog.Logger
	metrics  *metrics.Metrics
	rand     io.Reader
}

// Option configures a Service.
type Option func(*Service)

// WithSchema sets the schema holding verification_codes (default "stl").
func WithSchema(schema string) Option {
	return func(s *Service) {
		if strings.TrimSpace(schema) != "" {
			s.table = pgx.Identifier{schema, "verification_codes"}.Sanitize()
		}
	}
}

// WithLimiter replaces the default in-memory limiter.
func WithLimiter(l Limiter) Option {
	return func(s *Service) {
		if l != nil {
			s.limiter = l
		}
	}
}

// WithAttemptLimiter replaces the default in-memory consume-attempt limiter.
func WithAttemptLimiter(l Limiter) Option {
	return func(s *Service) {
		if l != nil {
			s.attempts = l
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithRandom sets the entropy source for code generation.
func WithRandom(r io.Reader) Option {
	return func(s *Service) { s.rand = r }
}

// NewService constructs a Service.
func NewService(pool *pgxpool.Pool, hasher token.Hasher, cfg Config, opts ...Option) (*Service, error) {
	if pool == nil {
		return nil, fmt.Errorf("%w: nil pool", ErrConfig)
	}
	if err := cfg.Check(); err != nil {
		return nil, err
	}

	s := &Service{
		pool:   pool,
		table:  pgx.Identifier{"stl", "verification_codes"}.Sanitize(),
		cfg:    cfg,
		hasher: hasher,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.limiter == nil {
		s.limiter = NewMemoryLimiter(cfg.RequestMax, cfg.RequestWindow)
	}
	if s.attempts == nil {
		s.attempts = NewMemoryLimiter(cfg.AttemptMax, cfg.RequestWindow)
	}
	return s, nil
}

// TTL returns the code lifetime.
func (s *Service) TTL() time.Duration { return s.cfg.TTL }

// digest binds the code to its user so equal codes of different users never share a hash.
func (s *Service) digest(userID, code string) string {
	return s.hasher.Hex(userID + ":" + code)
}

// Request creates a new code for userID and returns it in plaintext for delivery.
// For PurposeEmailChange the code is bound to newEmail. Earlier codes stay valid until
// one of them is consumed.
func (s *Service) Request(ctx context.Context, now time.Time, userID string, purpose Purpose, newEmail string) (string, Code, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" || !purpose.Valid() {
		return "", Code{}, ErrInvalidInput
	}
	newEmail = strings.TrimSpace(newEmail)
	if purpose == PurposeEmailChange && (newEmail == "" || !strings.Contains(newEmail, "@")) {
		return "", Code{}, ErrInvalidInput
	}
	if purpose != PurposeEmailChange {
		newEmail = ""
	}

	ok, err := s.limiter.Allow(ctx, "request:"+string(purpose)+":"+userID, now)
	if err != nil {
		// A broken limiter must not lock users out of recovery.
		s.log.Warn("verify.limiter.fail", "err", err)
	} else if !ok {
		return "", Code{}, ErrRateLimited
	}

	plain, err := generateCode(s.rand, s.cfg.Digits)
	if err != nil {
		return "", Code{}, err
	}
	id, err := ids.New(now)
	if err != nil {
		return "", Code{}, err
	}

	c := Code{
		ID:        id,
		UserID:    userID,
		Purpose:   purpose,
		NewEmail:  newEmail,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.TTL),
	}

	var emailArg, normArg any
	if newEmail != "" {
		emailArg, normArg = newEmail, identity.NormalizeEmail(newEmail)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO `+s.table+` (id, user_id, purpose, code_hash, new_email, new_email_norm, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, c.ID, c.UserID, string(c.Purpose), s.digest(userID, plain), emailArg, normArg, c.ExpiresAt, c.CreatedAt)
	if err != nil {
		return "", Code{}, err
	}

	s.metrics.CodeIssued(string(purpose))
	s.log.Info("verify.code.issued", "user_id", userID, "purpose", string(purpose))
	return plain, c, nil
}

// ConsumeForUser consumes a code of purpose for userID and runs apply in the same
// transaction. On success every code of the user is deleted.
func (s *Service) ConsumeForUser(ctx context.Context, now time.Time, userID string, purpose Purpose, code string, apply ApplyFunc) (Code, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" || !purpose.Valid() {
		return Code{}, ErrInvalidInput
	}
	return s.consume(ctx, now, purpose, "user:"+userID, code, apply,
		`user_id = $1 AND purpose = $2 AND expires_at > $3`,
		userID, string(purpose), now)
}

// ConsumeForNewEmail consumes an email-change code bound to newEmail. The user is the
// one who requested the code.
func (s *Service) ConsumeForNewEmail(ctx context.Context, now time.Time, newEmail, code string, apply ApplyFunc) (Code, error) {
	norm := identity.NormalizeEmail(newEmail)
	if norm == "" {
		return Code{}, ErrInvalidInput
	}
	return s.consume(ctx, now, PurposeEmailChange, "email:"+norm, code, apply,
		`new_email_norm = $1 AND purpose = $2 AND expires_at > $3`,
		norm, string(PurposeEmailChange), now)
}

func (s *Service) consume(ctx context.Context, now time.Time, purpose Purpose, limitKey, code string, apply ApplyFunc, where string, args ...any) (c Code, err error) {
	defer func() {
		s.metrics.CodeConsumed(string(purpose), err == nil)
	}()

	code = normalizeCode(code)
	if !wellFormed(code, s.cfg.Digits) {
		return Code{}, ErrInvalidOrExpired
	}

	ok, lerr := s.attempts.Allow(ctx, "consume:"+string(purpose)+":"+limitKey, now)
	if lerr != nil {
		s.log.Warn("verify.limiter.fail", "err", lerr)
	} else if !ok {
		return Code{}, ErrRateLimited
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return Code{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// FOR UPDATE serializes concurrent consumers; the loser re-reads after the
	// winner's delete and finds nothing.
	rows, err := tx.Query(ctx, `
		SELECT id, user_id, purpose, code_hash, COALESCE(new_email, ''), expires_at, created_at
		FROM `+s.table+`
		WHERE `+where+`
		ORDER BY created_at DESC, id DESC
		FOR UPDATE
	`, args...)
	if err != nil {
		return Code{}, err
	}

	var (
		found bool
		match Code
	)
	for rows.Next() {
		var (
			row     Code
			purp    string
			hashHex string
		)
		if err := rows.Scan(&row.ID, &row.UserID, &purp, &hashHex, &row.NewEmail, &row.ExpiresAt, &row.CreatedAt); err != nil {
			rows.Close()
			return Code{}, err
		}
		row.Purpose = Purpose(purp)
		if !found && token.EqualHex(s.digest(row.UserID, code), hashHex) {
			found = true
			match = row
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return Code{}, err
	}
	if !found {
		return Code{}, ErrInvalidOrExpired
	}

	if _, err := tx.Exec(ctx, `DELETE FROM `+s.table+` WHERE user_id = $1`, match.UserID); err != nil {
		return Code{}, err
	}

	if apply != nil {
		if err := apply(ctx, tx, match); err != nil {
			return Code{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Code{}, err
	}

	s.log.Info("verify.code.consumed", "user_id", match.UserID, "purpose", string(purpose))
	return match, nil
}

// IsInvalidOrExpired reports whether err means the code was rejected.
func IsInvalidOrExpired(err error) bool { return errors.Is(err, ErrInvalidOrExpired) }

package upgrade

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/A1dos-Creations/login-api-website/cmd/identity"
	"github.com/A1dos-Creations/login-api-website/cmd/internal/metrics"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PremiumMarker flips the premium flag through the caller's transaction.
type PremiumMarker interface {
	SetPremium(ctx context.Context, q identity.Querier, userID string, now time.Time) error
}

// Service issues and claims upgrade keys stored in Postgres.
type Service struct {
	pool    *pgxpool.Pool
	table   string
	premium PremiumMarker
	log     *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Service.
type Option func(*Service)

// WithSchema sets the schema holding upgrade_keys (default "stl").
func WithSchema(schema string) Option {
	return func(s *Service) {
		if strings.TrimSpace(schema) != "" {
			s.table = pgx.Identifier{schema, "upgrade_keys"}.Sanitize()
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

// NewService constructs a Service.
func NewService(pool *pgxpool.Pool, premium PremiumMarker, opts ...Option) (*Service, error) {
	if pool == nil || premium == nil {
		return nil, fmt.Errorf("upgrade: pool and premium marker are required")
	}
	s := &Service{
		pool:    pool,
		table:   pgx.Identifier{"stl", "upgrade_keys"}.Sanitize(),
		premium: premium,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Issue creates an unclaimed key for a completed checkout and marks the purchaser
// premium, in one transaction. It is idempotent per checkoutSessionID: a repeated
// delivery returns the existing key with created == false.
func (s *Service) Issue(ctx context.Context, now time.Time, purchaserID, checkoutSessionID string) (key Key, created bool, err error) {
	purchaserID = strings.TrimSpace(purchaserID)
	checkoutSessionID = strings.TrimSpace(checkoutSessionID)
	if purchaserID == "" || checkoutSessionID == "" {
		return Key{}, false, ErrInvalidInput
	}

	code, err := generateKey(nil)
	if err != nil {
		return Key{}, false, err
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return Key{}, false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var inserted string
	err = tx.QueryRow(ctx, `
		INSERT INTO `+s.table+` (code, status, purchaser_id, checkout_session_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (checkout_session_id) DO NOTHING
		RETURNING code
	`, code, StatusUnclaimed, purchaserID, checkoutSessionID, now).Scan(&inserted)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		existing, gerr := s.getBy(ctx, tx, "checkout_session_id", checkoutSessionID)
		if gerr != nil {
			return Key{}, false, gerr
		}
		return existing, false, nil
	case err != nil:
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return Key{}, false, ErrInvalidInput
		}
		return Key{}, false, err
	}

	if err := s.premium.SetPremium(ctx, tx, purchaserID, now); err != nil {
		return Key{}, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Key{}, false, err
	}

	s.log.Info("upgrade.key.issued", "purchaser_id", purchaserID, "checkout_session_id", checkoutSessionID)
	return Key{
		Code:              inserted,
		Status:            StatusUnclaimed,
		PurchaserID:       purchaserID,
		CheckoutSessionID: checkoutSessionID,
		CreatedAt:         now,
	}, true, nil
}

// Claim transitions the key to CLAIMED for userID and marks the user premium.
// The key row is locked for the duration of the transaction.
func (s *Service) Claim(ctx context.Context, now time.Time, userID, code string) (err error) {
	defer func() { s.metrics.UpgradeClaim(err == nil) }()

	userID = strings.TrimSpace(userID)
	code = strings.TrimSpace(code)
	if userID == "" || code == "" {
		return ErrInvalidInput
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// A waiter re-evaluates status after the lock holder commits and sees CLAIMED.
	var locked string
	err = tx.QueryRow(ctx, `
		SELECT code FROM `+s.table+`
		WHERE code = $1 AND status = $2
		FOR UPDATE
	`, code, StatusUnclaimed).Scan(&locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrAlreadyClaimedOrInvalid
	}
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE `+s.table+`
		SET status = $2, user_id = $3, claimed_at = $4
		WHERE code = $1
	`, locked, StatusClaimed, userID, now); err != nil {
		return err
	}

	if err := s.premium.SetPremium(ctx, tx, userID, now); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	s.log.Info("upgrade.key.claimed", "user_id", userID)
	return nil
}

// Get returns the key with code.
func (s *Service) Get(ctx context.Context, code string) (Key, error) {
	return s.getBy(ctx, s.pool, "code", code)
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// getBy looks a key up by a fixed column name; column is never user input.
func (s *Service) getBy(ctx context.Context, q rowQuerier, column, value string) (Key, error) {
	var (
		k                             Key
		purchaser, checkout, claimant *string
	)
	err := q.QueryRow(ctx, `
		SELECT code, status, purchaser_id, checkout_session_id, user_id, claimed_at, created_at
		FROM `+s.table+`
		WHERE `+column+` = $1
	`, value).Scan(&k.Code, &k.Status, &purchaser, &checkout, &claimant, &k.ClaimedAt, &k.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Key{}, ErrAlreadyClaimedOrInvalid
	}
	if err != nil {
		return Key{}, err
	}
	if purchaser != nil {
		k.PurchaserID = *purchaser
	}
	if checkout != nil {
		k.CheckoutSessionID = *checkout
	}
	if claimant != nil {
		k.UserID = *claimant
	}
	return k, nil
}

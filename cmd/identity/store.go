package identity

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// User is the canonical account record.
type User struct {
	ID                 string
	Name               string
	Email              string
	Premium            bool
	EmailNotifications bool

	// GoogleID is the linked Google account subject, nil when unlinked.
	GoogleID *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// GoogleLinked reports whether a Google account is linked.
func (u User) GoogleLinked() bool { return u.GoogleID != nil && *u.GoogleID != "" }

// GoogleLink holds the OAuth credentials of a linked Google account.
// Tokens are secrets and must never be logged.
type GoogleLink struct {
	GoogleID     *string
	AccessToken  string
	RefreshToken string
	Expiry       *time.Time
}

// CreateUserInput describes a registration request.
type CreateUserInput struct {
	Name     string
	Email    string
	Password string
	Now      time.Time
}

// Querier is satisfied by *pgxpool.Pool and pgx.Tx, so mutations can join a caller's transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is the credential persistence boundary.
type Store interface {
	CreateUser(ctx context.Context, in CreateUserInput) (User, error)
	GetUserByID(ctx context.Context, userID string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)

	// VerifyCredentials returns the user for a matching email/password pair and
	// ErrInvalidCredentials for an unknown email or a wrong password alike.
	VerifyCredentials(ctx context.Context, email, password string, now time.Time) (User, error)
	CheckPassword(ctx context.Context, userID, password string) (bool, error)

	UpdatePassword(ctx context.Context, q Querier, userID, newPassword string, now time.Time) error
	UpdateEmail(ctx context.Context, q Querier, userID, newEmail string, now time.Time) error
	SetPremium(ctx context.Context, q Querier, userID string, now time.Time) error
	SetEmailNotifications(ctx context.Context, userID string, enabled bool, now time.Time) (User, error)

	SaveGoogleLink(ctx context.Context, userID string, link GoogleLink, now time.Time) error
	GetGoogleLink(ctx context.Context, userID string) (GoogleLink, error)
	ClearGoogleLink(ctx context.Context, userID string, now time.Time) error
}

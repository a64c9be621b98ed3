package session

import (
	"time"

	"github.com/A1dos-Creations/login-api-website/cmd/identity/ids"
)

// Purpose separates token uses so a token minted for one flow is rejected by another.
type Purpose string

const (
	// PurposeSession marks login tokens.
	PurposeSession Purpose = "session"
	// PurposeOAuthState marks short-lived OAuth state tokens.
	PurposeOAuthState Purpose = "oauth_state"
)

// Claims is the identity envelope carried by a token.
type Claims struct {
	UserID    string
	Email     string
	Purpose   Purpose
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenIssuer issues and verifies signed tokens.
//
// Verify fails with ErrInvalidToken when the signature is invalid or the embedded
// expiry has passed at now.
type TokenIssuer interface {
	Issue(purpose Purpose, userID, email string, ttl time.Duration, now time.Time) (string, Claims, error)
	Verify(token string, now time.Time) (Claims, error)
}

// NewIssuer builds the TokenIssuer selected by cfg.Format.
func NewIssuer(cfg Config) (TokenIssuer, error) {
	if err := cfg.Check(); err != nil {
		return nil, err
	}
	switch cfg.Format {
	case FormatPaseto:
		return NewPasetoIssuer(cfg)
	default:
		return NewJWTIssuer(cfg)
	}
}

// newClaims stamps a fresh token id so two logins within the same second never share a token.
func newClaims(purpose Purpose, userID, email string, ttl time.Duration, now time.Time) (Claims, error) {
	if userID == "" || ttl <= 0 {
		return Claims{}, ErrInvalidToken
	}
	jti, err := ids.New(now)
	if err != nil {
		return Claims{}, err
	}
	now = now.UTC().Truncate(time.Second)
	return Claims{
		UserID:    userID,
		Email:     email,
		Purpose:   purpose,
		TokenID:   jti,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}, nil
}

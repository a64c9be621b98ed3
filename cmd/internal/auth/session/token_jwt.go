package session

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type jwtClaims struct {
	Email   string `json:"email,omitempty"`
	Purpose string `json:"pur"`
	jwt.RegisteredClaims
}

// JWTIssuer issues HS256 JWTs.
type JWTIssuer struct {
	issuer    string
	secret    []byte
	clockSkew time.Duration
}

// NewJWTIssuer builds an HS256 issuer from cfg.Secret.
func NewJWTIssuer(cfg Config) (*JWTIssuer, error) {
	if len(cfg.Secret) < MinSecretBytes {
		return nil, ErrConfig
	}
	return &JWTIssuer{
		issuer:    cfg.Issuer,
		secret:    []byte(cfg.Secret),
		clockSkew: cfg.ClockSkew,
	}, nil
}

// Issue signs a token for userID valid for ttl from now.
func (j *JWTIssuer) Issue(purpose Purpose, userID, email string, ttl time.Duration, now time.Time) (string, Claims, error) {
	c, err := newClaims(purpose, userID, email, ttl, now)
	if err != nil {
		return "", Claims{}, err
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwtClaims{
		Email:   c.Email,
		Purpose: string(c.Purpose),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    j.issuer,
			Subject:   c.UserID,
			ID:        c.TokenID,
			IssuedAt:  jwt.NewNumericDate(c.IssuedAt),
			NotBefore: jwt.NewNumericDate(c.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(c.ExpiresAt),
		},
	})

	signed, err := tok.SignedString(j.secret)
	if err != nil {
		return "", Claims{}, err
	}
	return signed, c, nil
}

// Verify checks signature, algorithm, issuer and time claims at now.
func (j *JWTIssuer) Verify(token string, now time.Time) (Claims, error) {
	if token == "" || len(token) > 4096 {
		return Claims{}, ErrInvalidToken
	}

	var parsed jwtClaims
	_, err := jwt.ParseWithClaims(token, &parsed,
		func(*jwt.Token) (any, error) { return j.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(j.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(j.clockSkew),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		return Claims{}, errors.Join(ErrInvalidToken, err)
	}
	// Leeway covers iat only; exp is a hard boundary.
	if parsed.Subject == "" || parsed.ExpiresAt == nil || !now.Before(parsed.ExpiresAt.Time) {
		return Claims{}, ErrInvalidToken
	}

	out := Claims{
		UserID:    parsed.Subject,
		Email:     parsed.Email,
		Purpose:   Purpose(parsed.Purpose),
		TokenID:   parsed.ID,
		ExpiresAt: parsed.ExpiresAt.Time,
	}
	if parsed.IssuedAt != nil {
		out.IssuedAt = parsed.IssuedAt.Time
	}
	return out, nil
}

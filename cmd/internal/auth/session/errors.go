package session

import "errors"

var (
	// ErrInvalidToken is returned when a token fails signature, issuer, purpose or expiry checks.
	ErrInvalidToken = errors.New("invalid token")

	// ErrSessionNotFound is returned when no session row matches (id, user_id).
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionRevoked is returned when a token verifies but its session row is gone.
	ErrSessionRevoked = errors.New("session revoked")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid config")
)

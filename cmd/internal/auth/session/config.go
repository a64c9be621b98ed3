package session

import (
	"fmt"
	"strings"
	"time"
)

// Token formats understood by NewIssuer.
const (
	FormatJWT    = "jwt"
	FormatPaseto = "paseto"
)

// MinSecretBytes is the minimum signing secret length.
const MinSecretBytes = 32

// Config defines runtime configuration for the token issuer and session registry.
type Config struct {
	// Issuer is the "iss" claim of every token.
	Issuer string

	// Format selects the token implementation: "jwt" (HS256) or "paseto" (v4.local).
	Format string

	// Secret is the process-wide signing secret.
	Secret string

	// LoginTTL is the lifetime of tokens issued at login and registration.
	LoginTTL time.Duration

	// PasswordResetTTL is the lifetime of the token returned after a password reset.
	PasswordResetTTL time.Duration

	// StateTTL is the lifetime of OAuth state tokens.
	StateTTL time.Duration

	// ClockSkew is tolerated on iat/nbf during verification. Zero means a token
	// stops verifying at exactly its exp.
	ClockSkew time.Duration
}

// DefaultConfig returns the defaults. Secret has no default.
func DefaultConfig() Config {
	return Config{
		Issuer:           "stl",
		Format:           FormatJWT,
		LoginTTL:         48 * time.Hour,
		PasswordResetTTL: time.Hour,
		StateTTL:         10 * time.Minute,
		ClockSkew:        0,
	}
}

// Check validates the configuration.
func (c Config) Check() error {
	if len(c.Secret) < MinSecretBytes {
		return fmt.Errorf("%w: token secret must be at least %d bytes", ErrConfig, MinSecretBytes)
	}
	if strings.TrimSpace(c.Issuer) == "" {
		return fmt.Errorf("%w: empty issuer", ErrConfig)
	}
	switch c.Format {
	case FormatJWT, FormatPaseto:
	default:
		return fmt.Errorf("%w: unknown token format %q", ErrConfig, c.Format)
	}
	if c.LoginTTL <= 0 || c.PasswordResetTTL <= 0 || c.StateTTL <= 0 {
		return fmt.Errorf("%w: token ttls must be positive", ErrConfig)
	}
	if c.ClockSkew < 0 || c.ClockSkew > 5*time.Minute {
		return fmt.Errorf("%w: clock skew out of range [0..5m]", ErrConfig)
	}
	return nil
}

package verify

import (
	"fmt"
	"time"
)

// Purpose names the operation a code authorizes.
type Purpose string

const (
	PurposePasswordReset Purpose = "password_reset"
	PurposeEmailChange   Purpose = "email_change"
)

// Valid reports whether p is a known purpose.
func (p Purpose) Valid() bool {
	return p == PurposePasswordReset || p == PurposeEmailChange
}

// Config defines code lifetime and request throttling.
type Config struct {
	// TTL is the absolute lifetime of a code from issuance.
	TTL time.Duration
	// Digits is the code length.
	Digits int

	// RequestMax codes may be requested per user and purpose within RequestWindow.
	RequestMax    int
	RequestWindow time.Duration

	// AttemptMax consume attempts are allowed per user and purpose within RequestWindow.
	AttemptMax int
}

// DefaultConfig returns 6-digit codes valid for 15 minutes, at most 5 requests and
// 10 consume attempts per 15 minutes.
func DefaultConfig() Config {
	return Config{
		TTL:           15 * time.Minute,
		Digits:        6,
		RequestMax:    5,
		RequestWindow: 15 * time.Minute,
		AttemptMax:    10,
	}
}

// Check validates the configuration.
func (c Config) Check() error {
	if c.TTL <= 0 {
		return fmt.Errorf("%w: ttl must be positive", ErrConfig)
	}
	if c.Digits < 4 || c.Digits > 10 {
		return fmt.Errorf("%w: digits out of range [4..10]", ErrConfig)
	}
	if c.RequestMax <= 0 || c.RequestWindow <= 0 || c.AttemptMax <= 0 {
		return fmt.Errorf("%w: request limit must be positive", ErrConfig)
	}
	return nil
}

package verify

import "errors"

var (
	// ErrInvalidOrExpired is returned when no unexpired code matches.
	ErrInvalidOrExpired = errors.New("invalid or expired code")

	// ErrRateLimited is returned when a user requests codes too often.
	ErrRateLimited = errors.New("too many code requests")

	// ErrInvalidInput is returned for malformed arguments.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid verify config")
)

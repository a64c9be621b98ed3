package upgrade

import "errors"

var (
	// ErrAlreadyClaimedOrInvalid is returned when no unclaimed key matches the code.
	ErrAlreadyClaimedOrInvalid = errors.New("invalid or already claimed code")

	// ErrInvalidInput is returned for malformed arguments.
	ErrInvalidInput = errors.New("invalid input")
)

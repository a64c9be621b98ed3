package password

import "errors"

// Policy and hash errors. Handlers map the policy errors to a 400 message.
var (
	ErrPasswordBlank    = errors.New("password is blank")
	ErrPasswordTooShort = errors.New("password too short")
	ErrPasswordTooLong  = errors.New("password too long")
	ErrWeakPassword     = errors.New("password is too easy to guess")
	ErrInvalidHash      = errors.New("unrecognized password hash")
)

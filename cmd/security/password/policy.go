package password

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Validate checks password against the policy. Length is counted in runes and
// includes surrounding spaces, since the password is stored exactly as typed.
func (c Config) Validate(password string) error {
	if strings.TrimSpace(password) == "" {
		return ErrPasswordBlank
	}
	switch n := utf8.RuneCountInString(password); {
	case n < c.Policy.MinLength:
		return ErrPasswordTooShort
	case n > c.Policy.MaxLength:
		return ErrPasswordTooLong
	}
	if c.Policy.RejectVeryWeak && isTrivial(password) {
		return ErrWeakPassword
	}
	return nil
}

// commonPasswords are rejected outright when RejectVeryWeak is on.
var commonPasswords = map[string]struct{}{
	"password": {}, "password1": {}, "password123": {},
	"qwerty": {}, "qwerty123": {}, "letmein": {}, "welcome": {},
	"iloveyou": {}, "abc123": {}, "admin": {}, "stl": {}, "a1dos": {},
}

// isTrivial flags a password made of one repeated character, a run of
// consecutive digits or letters ("123456", "abcdef", "987654"), a short PIN, or a
// well-known password.
func isTrivial(pw string) bool {
	s := strings.ToLower(strings.TrimSpace(pw))
	if _, ok := commonPasswords[s]; ok {
		return true
	}

	runes := []rune(s)
	if len(runes) < 2 {
		return true
	}

	same, step := true, true
	delta := runes[1] - runes[0]
	for i := 1; i < len(runes); i++ {
		if runes[i] != runes[0] {
			same = false
		}
		if runes[i]-runes[i-1] != delta || (delta != 1 && delta != -1) {
			step = false
		}
	}
	if same || step {
		return true
	}

	digits := 0
	for _, r := range runes {
		if unicode.IsDigit(r) {
			digits++
		}
	}
	return digits == len(runes) && len(runes) < 8
}

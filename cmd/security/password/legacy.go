package password

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// IsBcrypt reports whether encoded looks like a bcrypt hash.
func IsBcrypt(encoded string) bool {
	return strings.HasPrefix(encoded, "$2a$") ||
		strings.HasPrefix(encoded, "$2b$") ||
		strings.HasPrefix(encoded, "$2y$")
}

func verifyBcrypt(encoded, password string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, ErrInvalidHash
	}
}

// NeedsRehash reports whether encoded should be replaced by a fresh hash under c.
// Legacy bcrypt hashes and Argon2id hashes with weaker parameters qualify.
func (c Config) NeedsRehash(encoded string) bool {
	if IsBcrypt(encoded) {
		return true
	}
	p, err := parsePHC(encoded)
	if err != nil {
		return false
	}
	return p.memoryKiB < c.Params.MemoryKiB ||
		p.iterations < c.Params.Iterations ||
		uint32(len(p.key)) < c.Params.KeyLength // #nosec G115 -- bounded by parsePHC.
}

package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"
)

// MinHMACKeyBytes is the minimum accepted HMAC key length when HMAC is required.
const MinHMACKeyBytes = 32

var (
	// ErrHMACKeyMissing is returned when HMAC digests are required but no key is set.
	ErrHMACKeyMissing = errors.New("token: HMAC key required but not set")
	// ErrHMACKeyTooShort is returned for a key below MinHMACKeyBytes.
	ErrHMACKeyTooShort = errors.New("token: HMAC key shorter than 32 bytes")
)

// Hasher produces stable hex digests of bearer secrets.
// The zero value hashes with plain SHA-256.
type Hasher struct {
	key []byte
}

// NewHasher builds a Hasher from a raw key.
// An empty key selects SHA-256 mode unless require is set, in which case ErrHMACKeyMissing is returned.
// A non-empty key shorter than MinHMACKeyBytes is rejected with ErrHMACKeyTooShort.
func NewHasher(rawKey string, require bool) (Hasher, error) {
	k := strings.TrimSpace(rawKey)
	if k == "" {
		if require {
			return Hasher{}, ErrHMACKeyMissing
		}
		return Hasher{}, nil
	}
	// Measured in bytes, the key is used as raw bytes.
	if len(k) < MinHMACKeyBytes {
		return Hasher{}, ErrHMACKeyTooShort
	}
	return Hasher{key: []byte(k)}, nil
}

// HMACEnabled reports whether the hasher is keyed.
func (h Hasher) HMACEnabled() bool { return len(h.key) > 0 }

// Hex returns the storage digest of s.
func (h Hasher) Hex(s string) string {
	if len(h.key) == 0 {
		return HashSHA256Hex(s)
	}
	return HashHMACSHA256Hex(s, h.key)
}

// Matches reports whether plain hashes to digest, in constant time.
func (h Hasher) Matches(plain, digest string) bool {
	return EqualHex(h.Hex(plain), digest)
}

// HashSHA256Hex returns a SHA-256 hex digest of s.
func HashSHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// HashHMACSHA256Hex returns an HMAC-SHA256 hex digest of s using key.
func HashHMACSHA256Hex(s string, key []byte) string {
	m := hmac.New(sha256.New, key)
	_, _ = m.Write([]byte(s))
	return hex.EncodeToString(m.Sum(nil))
}

// EqualHex compares two 64-char hex digests in constant time.
// Any other length is rejected so the comparison never leaks length.
func EqualHex(a, b string) bool {
	if len(a) != 64 || len(b) != 64 {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

package upgrade

import (
	"crypto/rand"
	"fmt"
	"io"
	"time"
)

// Key statuses.
const (
	StatusUnclaimed = "UNCLAIMED"
	StatusClaimed   = "CLAIMED"
)

// KeyLength is the length of generated keys.
const KeyLength = 20

const keyAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// Key is one upgrade key row.
type Key struct {
	Code              string
	Status            string
	PurchaserID       string
	CheckoutSessionID string
	UserID            string
	ClaimedAt         *time.Time
	CreatedAt         time.Time
}

// generateKey draws KeyLength characters from keyAlphabet without modulo bias.
func generateKey(r io.Reader) (string, error) {
	if r == nil {
		r = rand.Reader
	}

	// Largest multiple of len(keyAlphabet) that fits in a byte.
	const limit = 256 - 256%len(keyAlphabet)

	out := make([]byte, 0, KeyLength)
	buf := make([]byte, KeyLength*2)
	for len(out) < KeyLength {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", fmt.Errorf("upgrade: generate key: %w", err)
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, keyAlphabet[int(b)%len(keyAlphabet)])
			if len(out) == KeyLength {
				break
			}
		}
	}
	return string(out), nil
}

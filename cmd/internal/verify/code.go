package verify

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"strings"
)

// generateCode returns a uniformly random decimal code of the given length,
// zero-padded.
func generateCode(r io.Reader, digits int) (string, error) {
	if r == nil {
		r = rand.Reader
	}
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)
	n, err := rand.Int(r, limit)
	if err != nil {
		return "", fmt.Errorf("verify: generate code: %w", err)
	}
	return fmt.Sprintf("%0*d", digits, n.Int64()), nil
}

// normalizeCode strips whitespace users paste along with the code.
func normalizeCode(s string) string {
	return strings.Join(strings.Fields(s), "")
}

// wellFormed reports whether s is exactly digits decimal characters.
func wellFormed(s string, digits int) bool {
	if len(s) != digits {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

package app

import (
	"errors"
	"fmt"

	"github.com/A1dos-Creations/login-api-website/cmd/security/token"
)

// newTokenHasher builds the digest used for stored session tokens and verification codes.
//
// Fail-fast: with STL_REQUIRE_TOKEN_HMAC set, a missing or short key stops startup
// instead of silently falling back to plain SHA-256.
func newTokenHasher(cfg Config) (token.Hasher, error) {
	h, err := token.NewHasher(cfg.TokenHMACKey, cfg.RequireTokenHMAC)
	switch {
	case errors.Is(err, token.ErrHMACKeyMissing):
		return token.Hasher{}, fmt.Errorf("%w: STL_REQUIRE_TOKEN_HMAC=true but STL_TOKEN_HMAC_KEY is missing", ErrConfig)
	case errors.Is(err, token.ErrHMACKeyTooShort):
		return token.Hasher{}, fmt.Errorf("%w: STL_TOKEN_HMAC_KEY is too short (min %d bytes)", ErrConfig, token.MinHMACKeyBytes)
	case err != nil:
		return token.Hasher{}, err
	}
	if cfg.RequireTokenHMAC && !h.HMACEnabled() {
		return token.Hasher{}, fmt.Errorf("%w: token hasher is not in HMAC mode", ErrConfig)
	}
	return h, nil
}

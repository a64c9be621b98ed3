package session

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(format string) Config {
	cfg := DefaultConfig()
	cfg.Format = format
	cfg.Secret = strings.Repeat("s", MinSecretBytes)
	cfg.ClockSkew = 0
	return cfg
}

func issuers(t *testing.T) map[string]TokenIssuer {
	t.Helper()

	out := make(map[string]TokenIssuer, 2)
	for _, f := range []string{FormatJWT, FormatPaseto} {
		iss, err := NewIssuer(testConfig(f))
		require.NoError(t, err)
		out[f] = iss
	}
	return out
}

func TestIssuer_RoundTrip(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for name, iss := range issuers(t) {
		iss := iss
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			tok, issued, err := iss.Issue(PurposeSession, "user-1", "a@x.com", 48*time.Hour, now)
			require.NoError(t, err)
			require.NotEmpty(t, tok)

			got, err := iss.Verify(tok, now.Add(time.Minute))
			require.NoError(t, err)
			assert.Equal(t, "user-1", got.UserID)
			assert.Equal(t, "a@x.com", got.Email)
			assert.Equal(t, PurposeSession, got.Purpose)
			assert.Equal(t, issued.TokenID, got.TokenID)
			assert.True(t, got.ExpiresAt.Equal(now.Add(48*time.Hour)))
		})
	}
}

func TestIssuer_ExpiryIsMonotonic(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ttl := time.Hour
	for name, iss := range issuers(t) {
		iss := iss
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			tok, _, err := iss.Issue(PurposeSession, "user-1", "", ttl, now)
			require.NoError(t, err)

			_, err = iss.Verify(tok, now.Add(ttl-time.Second))
			require.NoError(t, err, "valid just before expiry")

			_, err = iss.Verify(tok, now.Add(ttl))
			assert.ErrorIs(t, err, ErrInvalidToken, "expired at exactly exp")

			for _, later := range []time.Duration{ttl + time.Second, ttl + time.Hour, 30 * 24 * time.Hour} {
				_, err = iss.Verify(tok, now.Add(later))
				assert.ErrorIs(t, err, ErrInvalidToken, "expected expiry at +%s", later)
			}
		})
	}
}

func TestIssuer_DefaultConfigHasNoExpiryGrace(t *testing.T) {
	t.Parallel()

	require.Zero(t, DefaultConfig().ClockSkew)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for _, f := range []string{FormatJWT, FormatPaseto} {
		cfg := DefaultConfig()
		cfg.Format = f
		cfg.Secret = strings.Repeat("s", MinSecretBytes)
		iss, err := NewIssuer(cfg)
		require.NoError(t, err)

		tok, _, err := iss.Issue(PurposeSession, "user-1", "", time.Minute, now)
		require.NoError(t, err)
		_, err = iss.Verify(tok, now.Add(time.Minute))
		assert.ErrorIs(t, err, ErrInvalidToken, f)
	}
}

func TestIssuer_SkewDoesNotExtendExpiry(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for _, f := range []string{FormatJWT, FormatPaseto} {
		cfg := testConfig(f)
		cfg.ClockSkew = 30 * time.Second
		iss, err := NewIssuer(cfg)
		require.NoError(t, err)

		tok, _, err := iss.Issue(PurposeSession, "user-1", "", time.Minute, now)
		require.NoError(t, err)
		_, err = iss.Verify(tok, now.Add(-10*time.Second))
		require.NoError(t, err, "%s: iat within skew", f)
		_, err = iss.Verify(tok, now.Add(time.Minute+10*time.Second))
		assert.ErrorIs(t, err, ErrInvalidToken, f)
	}
}

func TestIssuer_RejectsTamperedAndForeignTokens(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for name, iss := range issuers(t) {
		iss := iss
		name := name
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			tok, _, err := iss.Issue(PurposeSession, "user-1", "", time.Hour, now)
			require.NoError(t, err)

			// Flip a character in the middle of the token body.
			b := []byte(tok)
			i := len(b) / 2
			if b[i] == 'A' {
				b[i] = 'B'
			} else {
				b[i] = 'A'
			}
			_, err = iss.Verify(string(b), now)
			assert.ErrorIs(t, err, ErrInvalidToken)

			_, err = iss.Verify("", now)
			assert.ErrorIs(t, err, ErrInvalidToken)
			_, err = iss.Verify("not-a-token", now)
			assert.ErrorIs(t, err, ErrInvalidToken)

			other := testConfig(name)
			other.Secret = strings.Repeat("o", MinSecretBytes)
			foreign, err := NewIssuer(other)
			require.NoError(t, err)
			_, err = foreign.Verify(tok, now)
			assert.ErrorIs(t, err, ErrInvalidToken)

			otherIssuer := testConfig(name)
			otherIssuer.Issuer = "someone-else"
			wrongIss, err := NewIssuer(otherIssuer)
			require.NoError(t, err)
			_, err = wrongIss.Verify(tok, now)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestIssuer_SameSecondTokensDiffer(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for name, iss := range issuers(t) {
		iss := iss
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			a, _, err := iss.Issue(PurposeSession, "user-1", "a@x.com", time.Hour, now)
			require.NoError(t, err)
			b, _, err := iss.Issue(PurposeSession, "user-1", "a@x.com", time.Hour, now)
			require.NoError(t, err)
			assert.NotEqual(t, a, b)
		})
	}
}

func TestIssuer_RejectsBadInput(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	for _, iss := range issuers(t) {
		_, _, err := iss.Issue(PurposeSession, "", "", time.Hour, now)
		assert.ErrorIs(t, err, ErrInvalidToken)
		_, _, err = iss.Issue(PurposeSession, "u", "", 0, now)
		assert.ErrorIs(t, err, ErrInvalidToken)
	}
}

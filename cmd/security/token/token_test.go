package token

import (
	"strings"
	"testing"
)

func TestNewHasher_Modes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		key     string
		require bool
		wantErr error
		hmac    bool
	}{
		{name: "empty optional", key: "", require: false, hmac: false},
		{name: "empty required", key: "  ", require: true, wantErr: ErrHMACKeyMissing},
		{name: "too short", key: "short-key", wantErr: ErrHMACKeyTooShort},
		{name: "ok", key: strings.Repeat("k", 32), hmac: true},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			h, err := NewHasher(tc.key, tc.require)
			if err != tc.wantErr {
				t.Fatalf("NewHasher err=%v want=%v", err, tc.wantErr)
			}
			if err != nil {
				return
			}
			if h.HMACEnabled() != tc.hmac {
				t.Fatalf("HMACEnabled()=%v want=%v", h.HMACEnabled(), tc.hmac)
			}
		})
	}
}

func TestHasher_HexIsStableAndKeyed(t *testing.T) {
	t.Parallel()

	plain := Hasher{}
	keyed, err := NewHasher(strings.Repeat("x", 40), true)
	if err != nil {
		t.Fatalf("NewHasher: %v", err)
	}

	a := plain.Hex("session-token")
	if len(a) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(a))
	}
	if a != HashSHA256Hex("session-token") {
		t.Fatalf("zero hasher must use SHA-256")
	}
	if keyed.Hex("session-token") == a {
		t.Fatalf("keyed digest must differ from SHA-256 digest")
	}
	if !keyed.Matches("session-token", keyed.Hex("session-token")) {
		t.Fatalf("expected digest match")
	}
	if keyed.Matches("other", keyed.Hex("session-token")) {
		t.Fatalf("expected digest mismatch")
	}
}

func TestEqualHex_RejectsOddLengths(t *testing.T) {
	t.Parallel()

	if EqualHex("abc", "abc") {
		t.Fatalf("short inputs must not compare equal")
	}
}

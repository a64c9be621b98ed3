package verify

import (
	"bytes"
	"strings"
	"testing"
)

func TestGenerateCode_Shape(t *testing.T) {
	for i := 0; i < 200; i++ {
		c, err := generateCode(nil, 6)
		if err != nil {
			t.Fatalf("generateCode: %v", err)
		}
		if !wellFormed(c, 6) {
			t.Fatalf("malformed code %q", c)
		}
	}
}

func TestGenerateCode_ZeroPadded(t *testing.T) {
	// An all-zero entropy source yields the smallest value.
	c, err := generateCode(bytes.NewReader(make([]byte, 64)), 6)
	if err != nil {
		t.Fatalf("generateCode: %v", err)
	}
	if c != "000000" {
		t.Fatalf("expected zero-padded code, got %q", c)
	}
}

func TestGenerateCode_ShortEntropyFails(t *testing.T) {
	if _, err := generateCode(strings.NewReader(""), 6); err == nil {
		t.Fatalf("expected error from exhausted reader")
	}
}

func TestWellFormedAndNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"123456", true},
		{" 123 456 ", true},
		{"12345", false},
		{"1234567", false},
		{"12a456", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := wellFormed(normalizeCode(tc.in), 6); got != tc.want {
			t.Fatalf("wellFormed(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestConfigCheck(t *testing.T) {
	if err := DefaultConfig().Check(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	c := DefaultConfig()
	c.Digits = 2
	if err := c.Check(); err == nil {
		t.Fatalf("expected error for 2 digits")
	}
	c = DefaultConfig()
	c.TTL = 0
	if err := c.Check(); err == nil {
		t.Fatalf("expected error for zero ttl")
	}
}

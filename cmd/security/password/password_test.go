package password

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func testConfig() Config {
	cfg := DefaultConfig()
	// Keep unit tests fast; production cost is covered by the benchmarks.
	cfg.Params.MemoryKiB = 8 * 1024
	cfg.Params.Iterations = 1
	return cfg
}

func TestHashAndVerify_OK(t *testing.T) {
	cfg := testConfig()

	h, err := cfg.Hash("correct horse battery staple")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	ok, err := cfg.Verify(h, "correct horse battery staple")
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if !ok {
		t.Fatalf("expected match")
	}
}

func TestVerify_WrongPassword(t *testing.T) {
	cfg := testConfig()

	h, err := cfg.Hash("pw1")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	ok, err := cfg.Verify(h, "pw2")
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if ok {
		t.Fatalf("expected mismatch")
	}
}

func TestVerify_LegacyBcrypt(t *testing.T) {
	cfg := testConfig()

	legacy, err := bcrypt.GenerateFromPassword([]byte("old-password"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}

	ok, err := cfg.Verify(string(legacy), "old-password")
	if err != nil || !ok {
		t.Fatalf("expected legacy match, ok=%v err=%v", ok, err)
	}
	ok, err = cfg.Verify(string(legacy), "nope")
	if err != nil || ok {
		t.Fatalf("expected legacy mismatch, ok=%v err=%v", ok, err)
	}
	if !cfg.NeedsRehash(string(legacy)) {
		t.Fatalf("bcrypt hashes must be flagged for rehash")
	}
}

func TestNeedsRehash_Argon2Params(t *testing.T) {
	weak := testConfig()
	h, err := weak.Hash("some password")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if weak.NeedsRehash(h) {
		t.Fatalf("hash made with current params must not need rehash")
	}

	strong := weak
	strong.Params.Iterations = 2
	if !strong.NeedsRehash(h) {
		t.Fatalf("hash with fewer iterations must need rehash")
	}
}

func TestValidate_MinMax(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Policy.MinLength = 12
	cfg.Policy.MaxLength = 16

	if err := cfg.Validate("short"); err != ErrPasswordTooShort {
		t.Fatalf("expected ErrPasswordTooShort, got %v", err)
	}
	if err := cfg.Validate("this password is definitely too long"); err != ErrPasswordTooLong {
		t.Fatalf("expected ErrPasswordTooLong, got %v", err)
	}
	if err := cfg.Validate("goodpassw0rd!"); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
}

func TestVerify_InvalidHash(t *testing.T) {
	cfg := testConfig()

	ok, err := cfg.Verify("not-a-hash", "whatever")
	if err != ErrInvalidHash {
		t.Fatalf("expected ErrInvalidHash, got %v", err)
	}
	if ok {
		t.Fatalf("expected false")
	}
}

func TestValidate_Policy(t *testing.T) {
	t.Parallel()

	strict := DefaultConfig()
	strict.Policy.RejectVeryWeak = true
	strict.Policy.MinLength = 6

	cases := []struct {
		name string
		cfg  Config
		pw   string
		want error
	}{
		{"default accepts one char", DefaultConfig(), "x", nil},
		{"default accepts common word", DefaultConfig(), "password", nil},
		{"blank", DefaultConfig(), "   ", ErrPasswordBlank},
		{"empty", DefaultConfig(), "", ErrPasswordBlank},
		{"spaces count toward length", strict, "  ab9x  ", nil},
		{"common word", strict, "Password123", ErrWeakPassword},
		{"repeated char", strict, "zzzzzzzz", ErrWeakPassword},
		{"ascending digits", strict, "123456789", ErrWeakPassword},
		{"descending letters", strict, "fedcba", ErrWeakPassword},
		{"short pin", strict, "804215", ErrWeakPassword},
		{"long digit string", strict, "80421597", nil},
		{"ordinary", strict, "tidy-lamp-41", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if err := tc.cfg.Validate(tc.pw); err != tc.want {
				t.Fatalf("Validate(%q) = %v, want %v", tc.pw, err, tc.want)
			}
		})
	}
}

func TestVerify_RejectsExpensiveHash(t *testing.T) {
	cheap := testConfig()

	costly := testConfig()
	costly.Params.Iterations = cheap.Params.Iterations * 3
	h, err := costly.Hash("some password")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	if _, err := cheap.Verify(h, "some password"); err != ErrInvalidHash {
		t.Fatalf("expected ErrInvalidHash for a hash above the cost bound, got %v", err)
	}
}

func TestParsePHC_Malformed(t *testing.T) {
	t.Parallel()

	good, err := testConfig().Hash("pw")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if _, err := parsePHC(good); err != nil {
		t.Fatalf("parsePHC(own hash): %v", err)
	}

	for _, enc := range []string{
		"",
		"$argon2i$v=19$m=8192,t=1,p=1$c2FsdHNhbHQ$a2V5a2V5a2V5a2V5a2V5a2V5",
		"$argon2id$v=16$m=8192,t=1,p=1$c2FsdHNhbHQ$a2V5a2V5a2V5a2V5a2V5a2V5",
		"$argon2id$v=19$m=8192,t=0,p=1$c2FsdHNhbHQ$a2V5a2V5a2V5a2V5a2V5a2V5",
		"$argon2id$v=19$m=8192,t=1,p=300$c2FsdHNhbHQ$a2V5a2V5a2V5a2V5a2V5a2V5",
		"$argon2id$v=19$m=8192,t=1$c2FsdHNhbHQ$a2V5a2V5a2V5a2V5a2V5a2V5",
		"$argon2id$v=19$m=8192,t=1,p=1$!!$a2V5a2V5a2V5a2V5a2V5a2V5",
		"$argon2id$v=19$m=8192,t=1,p=1$c2FsdHNhbHQ$a2V5",
	} {
		if _, err := parsePHC(enc); err != ErrInvalidHash {
			t.Fatalf("parsePHC(%q) = %v, want ErrInvalidHash", enc, err)
		}
	}
}

func TestConfigCheck(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{name: "default", mutate: func(*Config) {}, ok: true},
		{name: "low memory", mutate: func(c *Config) { c.Params.MemoryKiB = 1024 }, ok: false},
		{name: "zero iterations", mutate: func(c *Config) { c.Params.Iterations = 0 }, ok: false},
		{name: "min over max", mutate: func(c *Config) { c.Policy.MinLength = 300 }, ok: false},
	}

	for _, tc := range cases {
		cfg := DefaultConfig()
		tc.mutate(&cfg)
		err := cfg.Check()
		if (err == nil) != tc.ok {
			t.Fatalf("%s: Check()=%v ok=%v", tc.name, err, tc.ok)
		}
	}
}

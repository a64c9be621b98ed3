package app

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/A1dos-Creations/login-api-website/cmd/security/password"

	"github.com/spf13/viper"
)

func TestRuntimeBaseURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{name: "explicit localhost", in: "127.0.0.1:8080", want: "http://127.0.0.1:8080"},
		{name: "bind all v4", in: "0.0.0.0:3002", want: "http://127.0.0.1:3002"},
		{name: "bind all v6", in: "[::]:9090", want: "http://127.0.0.1:9090"},
		{name: "port only", in: ":3002", want: "http://127.0.0.1:3002"},
		{name: "ipv6 host", in: "[2001:db8::1]:9090", want: "http://[2001:db8::1]:9090"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := runtimeBaseURL(tc.in)
			if got != tc.want {
				t.Fatalf("runtimeBaseURL(%q)=%q want=%q", tc.in, got, tc.want)
			}
		})
	}
}

func TestWSBaseURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{in: "http://127.0.0.1:8080", want: "ws://127.0.0.1:8080"},
		{in: "https://api.a1dos-creations.com", want: "wss://api.a1dos-creations.com"},
		{in: "127.0.0.1:8080", want: "ws://127.0.0.1:8080"},
	}

	for _, tc := range cases {
		got := wsBaseURL(tc.in)
		if got != tc.want {
			t.Fatalf("wsBaseURL(%q)=%q want=%q", tc.in, got, tc.want)
		}
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig(viper.New(), "")
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.HTTPAddr != "0.0.0.0:3002" || cfg.DBSchema != "stl" || !cfg.AutoMigrate {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.LoginTokenTTL != 48*time.Hour || cfg.ResetTokenTTL != time.Hour || cfg.CodeTTL != 15*time.Minute {
		t.Fatalf("unexpected ttl defaults: login=%v reset=%v code=%v", cfg.LoginTokenTTL, cfg.ResetTokenTTL, cfg.CodeTTL)
	}
	if len(cfg.CORSAllowedOrigins) != len(DefaultCORSOrigins) {
		t.Fatalf("expected default origins, got %v", cfg.CORSAllowedOrigins)
	}
	if cfg.passwordConfig() != password.DefaultConfig() {
		t.Fatalf("password config must default to the package defaults")
	}
	if got := cfg.liveConfig().AllowedOrigins; len(got) != len(DefaultCORSOrigins) {
		t.Fatalf("live origins should fall back to CORS origins, got %v", got)
	}
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	content := "STL_HTTP_ADDR=127.0.0.1:9000\nSTL_CODE_TTL=5m\nSTL_TOKEN_FORMAT=paseto\n"
	if err := os.WriteFile(envFile, []byte(content), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Setenv("STL_HTTP_ADDR", "127.0.0.1:9100")
	t.Setenv("STL_CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("STL_PASSWORD_MIN_LEN", "10")
	t.Setenv("STL_ARGON2_ITERATIONS", "4")

	cfg, err := loadConfig(viper.New(), envFile)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.HTTPAddr != "127.0.0.1:9100" {
		t.Fatalf("env must win over .env, got %q", cfg.HTTPAddr)
	}
	if cfg.CodeTTL != 5*time.Minute || cfg.verifyConfig().TTL != 5*time.Minute {
		t.Fatalf(".env value not applied: %v", cfg.CodeTTL)
	}
	if cfg.sessionConfig().Format != "paseto" {
		t.Fatalf("token format not mapped: %q", cfg.sessionConfig().Format)
	}
	pw := cfg.passwordConfig()
	if pw.Policy.MinLength != 10 || pw.Params.Iterations != 4 {
		t.Fatalf("password overrides not applied: %+v", pw)
	}
	if err := pw.Check(); err != nil {
		t.Fatalf("mapped password config invalid: %v", err)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example" {
		t.Fatalf("origins not split: %v", cfg.CORSAllowedOrigins)
	}
}

func TestLoadConfig_PasswordPolicyMapping(t *testing.T) {
	t.Setenv("STL_PASSWORD_MIN_LEN", "8")
	t.Setenv("STL_PASSWORD_MAX_LEN", "64")
	t.Setenv("STL_PASSWORD_REJECT_VERY_WEAK", "true")
	t.Setenv("STL_ARGON2_MEMORY_KIB", "16384")
	t.Setenv("STL_ARGON2_ITERATIONS", "2")
	t.Setenv("STL_ARGON2_PARALLELISM", "1")

	cfg, err := loadConfig(viper.New(), "")
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	pw := cfg.passwordConfig()
	if pw.Policy.MinLength != 8 || pw.Policy.MaxLength != 64 || !pw.Policy.RejectVeryWeak {
		t.Fatalf("policy not mapped: %+v", pw.Policy)
	}
	if pw.Params.MemoryKiB != 16384 || pw.Params.Iterations != 2 || pw.Params.Parallelism != 1 {
		t.Fatalf("argon2 params not mapped: %+v", pw.Params)
	}
	if err := pw.Check(); err != nil {
		t.Fatalf("mapped password config invalid: %v", err)
	}
	if err := pw.Validate("12345678"); !errors.Is(err, password.ErrWeakPassword) {
		t.Fatalf("expected weak password rejection, got %v", err)
	}
	if err := pw.Validate("short"); !errors.Is(err, password.ErrPasswordTooShort) {
		t.Fatalf("expected too-short rejection, got %v", err)
	}
}

func TestLoadConfig_RejectsBadSchema(t *testing.T) {
	t.Setenv("STL_DB_SCHEMA", "stl; drop table users")
	if _, err := loadConfig(viper.New(), ""); err == nil {
		t.Fatalf("expected invalid schema error")
	}
}

func TestNewTokenHasher(t *testing.T) {
	t.Parallel()

	if _, err := newTokenHasher(Config{RequireTokenHMAC: true}); err == nil {
		t.Fatalf("required HMAC without key must fail")
	}
	if _, err := newTokenHasher(Config{TokenHMACKey: "short"}); err == nil {
		t.Fatalf("short key must fail")
	}
	h, err := newTokenHasher(Config{TokenHMACKey: "0123456789abcdef0123456789abcdef", RequireTokenHMAC: true})
	if err != nil || !h.HMACEnabled() {
		t.Fatalf("expected HMAC hasher, err=%v", err)
	}
	h, err = newTokenHasher(Config{})
	if err != nil || h.HMACEnabled() {
		t.Fatalf("expected plain hasher, err=%v", err)
	}
}

func TestMiddlewareChain_DefaultOrigin(t *testing.T) {
	a := &App{
		cfg: Config{CORSAllowedOrigins: DefaultCORSOrigins},
		log: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := WithRequestID(WithSecurityHeaders(WithCORS(mux, a.cfg, a.log)))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://a1dos-creations.com")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "https://a1dos-creations.com" {
		t.Fatalf("default origin not allowed")
	}
	if rr.Header().Get(RequestIDHeader) == "" {
		t.Fatalf("request id missing")
	}
}

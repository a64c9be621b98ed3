package authapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestParseDueDate(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{in: "2026-03-01T17:00:00Z", want: time.Date(2026, 3, 1, 17, 0, 0, 0, time.UTC), ok: true},
		{in: "2026-03-01T09:00:00-08:00", want: time.Date(2026, 3, 1, 17, 0, 0, 0, time.UTC), ok: true},
		{in: "2026-03-01T17:30", want: time.Date(2026, 3, 1, 17, 30, 0, 0, time.UTC), ok: true},
		{in: " 2026-03-01 ", want: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), ok: true},
		{in: "next tuesday", ok: false},
	}
	for _, tc := range tests {
		got, err := parseDueDate(tc.in)
		if (err == nil) != tc.ok {
			t.Fatalf("parseDueDate(%q) err=%v, want ok=%v", tc.in, err, tc.ok)
		}
		if tc.ok && !got.Equal(tc.want) {
			t.Fatalf("parseDueDate(%q)=%v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestBearerToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", nil)
	if got := bearerToken(r); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
	r.Header.Set("Authorization", "Bearer abc.def")
	if got := bearerToken(r); got != "abc.def" {
		t.Fatalf("got %q", got)
	}
	r.Header.Set("Authorization", "Basic xyz")
	if got := bearerToken(r); got != "" {
		t.Fatalf("basic auth must not be a bearer token, got %q", got)
	}
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.RemoteAddr = "10.0.0.1:5555"
	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")

	if got := clientIP(r, false); got.String() != "10.0.0.1" {
		t.Fatalf("untrusted proxy: got %v", got)
	}
	if got := clientIP(r, true); got.String() != "203.0.113.9" {
		t.Fatalf("trusted proxy: got %v", got)
	}

	r.RemoteAddr = "garbage"
	r.Header.Del("X-Forwarded-For")
	if got := clientIP(r, true); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}

func TestWriteRateLimited(t *testing.T) {
	rec := httptest.NewRecorder()
	writeRateLimited(rec, 1500*time.Millisecond)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status %d", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "2" {
		t.Fatalf("Retry-After=%q", got)
	}

	rec = httptest.NewRecorder()
	writeRateLimited(rec, 100*time.Millisecond)
	if got := rec.Header().Get("Retry-After"); got != "1" {
		t.Fatalf("Retry-After must be at least 1, got %q", got)
	}
}

func TestNewHandler_RequiresCoreServices(t *testing.T) {
	if _, err := NewHandler(DefaultConfig(), Deps{}); err == nil {
		t.Fatalf("expected error without services")
	}
}

package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOAuthConfig(tokenURL string) Config {
	cfg := DefaultConfig()
	cfg.ClientID = "client-id"
	cfg.ClientSecret = "client-secret"
	cfg.RedirectURL = "https://api.example.com/auth/google/callback"
	cfg.TokenURL = tokenURL
	return cfg
}

func fakeIDToken(t *testing.T, sub string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: sub})
	s, err := tok.SignedString([]byte("not-googles-key"))
	require.NoError(t, err)
	return s
}

func TestNewOAuth_RequiresCredentials(t *testing.T) {
	_, err := NewOAuth(DefaultConfig())
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestAuthCodeURL_RequestsOfflineConsent(t *testing.T) {
	o, err := NewOAuth(testOAuthConfig(""))
	require.NoError(t, err)

	u, err := url.Parse(o.AuthCodeURL("state-123"))
	require.NoError(t, err)
	q := u.Query()

	assert.Equal(t, "state-123", q.Get("state"))
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.Equal(t, "consent", q.Get("prompt"))
	assert.Equal(t, "client-id", q.Get("client_id"))
	assert.Contains(t, q.Get("scope"), "https://www.googleapis.com/auth/calendar")
	assert.Contains(t, q.Get("scope"), "openid")
}

func TestExchange_ExtractsSubject(t *testing.T) {
	idToken := fakeIDToken(t, "google-sub-42")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.Form.Get("code") != "auth-code" {
			http.Error(w, "bad code", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "at",
			"refresh_token": "rt",
			"token_type":    "Bearer",
			"expires_in":    3600,
			"id_token":      idToken,
		})
	}))
	defer srv.Close()

	o, err := NewOAuth(testOAuthConfig(srv.URL))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	g, err := o.Exchange(ctx, "auth-code")
	require.NoError(t, err)
	assert.Equal(t, "at", g.AccessToken)
	assert.Equal(t, "rt", g.RefreshToken)
	assert.Equal(t, "google-sub-42", g.Subject)
	assert.True(t, g.Expiry.After(time.Now()))
}

func TestExchange_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer srv.Close()

	o, err := NewOAuth(testOAuthConfig(srv.URL))
	require.NoError(t, err)

	_, err = o.Exchange(context.Background(), "stale")
	require.Error(t, err)

	_, err = o.Exchange(context.Background(), "  ")
	require.Error(t, err)
}

func TestSubjectOf_Garbage(t *testing.T) {
	assert.Equal(t, "", subjectOf("not-a-jwt"))
}

package billing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()

	cfg := DefaultConfig()
	cfg.SecretKey = "sk_test_123"
	cfg.APIBase = srv.URL
	cfg.MaxRetries = 0
	c, err := NewClient(cfg, WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return c
}

func TestClient_CreateCheckoutSession(t *testing.T) {
	var gotForm map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		assert.Equal(t, "Bearer sk_test_123", r.Header.Get("Authorization"))

		assert.NoError(t, r.ParseForm())
		gotForm = map[string]string{}
		for k := range r.PostForm {
			gotForm[k] = r.PostForm.Get(k)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cs_test_1","object":"checkout.session","url":"https://checkout.example/cs_test_1","metadata":{"user_id":"user-1"}}`))
	}))
	defer srv.Close()

	cs, err := newTestClient(t, srv).CreateCheckoutSession(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", cs.ID)
	assert.Equal(t, "https://checkout.example/cs_test_1", cs.URL)
	assert.Equal(t, "user-1", cs.UserID())

	assert.Equal(t, "payment", gotForm["mode"])
	assert.Equal(t, "card", gotForm["payment_method_types[0]"])
	assert.Equal(t, "1", gotForm["line_items[0][quantity]"])
	assert.Equal(t, "200", gotForm["line_items[0][price_data][unit_amount]"])
	assert.Equal(t, "usd", gotForm["line_items[0][price_data][currency]"])
	assert.Equal(t, "Premium (STL+ Product Key)", gotForm["line_items[0][price_data][product_data][name]"])
	assert.Equal(t, "user-1", gotForm["metadata[user_id]"])
}

func TestClient_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"error":{"type":"card_error","message":"declined"}}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).CreateCheckoutSession(context.Background(), "user-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrProvider))
	assert.Contains(t, err.Error(), "declined")
}

func TestClient_RejectsEmptyUser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Errorf("no request expected")
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv).CreateCheckoutSession(context.Background(), "  ")
	require.Error(t, err)
}

func TestNewClient_RequiresSecret(t *testing.T) {
	_, err := NewClient(DefaultConfig())
	assert.ErrorIs(t, err, ErrConfig)
}

func TestConfigCheck_NegativeRetries(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SecretKey = "sk_test_123"
	cfg.MaxRetries = -1
	assert.ErrorIs(t, cfg.Check(), ErrConfig)
}

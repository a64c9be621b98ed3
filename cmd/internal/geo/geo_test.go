package geo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLocate_Success(t *testing.T) {
	var path atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path.Store(r.URL.Path)
		_, _ = w.Write([]byte(`{"status":"success","city":"Oslo","regionName":"Oslo County","country":"Norway"}`))
	}))
	defer srv.Close()

	l := New(Config{BaseURL: srv.URL + "/json", Timeout: time.Second}, srv.Client(), nil)
	got := l.Locate(context.Background(), "8.8.8.8")

	assert.Equal(t, "Oslo, Oslo County, Norway", got)
	assert.Equal(t, "/json/8.8.8.8", path.Load())
}

func TestLocate_Fallbacks(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
		ip      string
	}{
		{
			name: "provider fail status",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"status":"fail","message":"reserved range"}`))
			},
			ip: "8.8.8.8",
		},
		{
			name:    "http error",
			handler: func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusTooManyRequests) },
			ip:      "8.8.8.8",
		},
		{
			name:    "garbage body",
			handler: func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte(`<html>`)) },
			ip:      "8.8.8.8",
		},
		{
			name: "slow provider",
			handler: func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-r.Context().Done():
				case <-time.After(2 * time.Second):
				}
			},
			ip: "8.8.8.8",
		},
		{
			name:    "private address is not looked up",
			handler: func(http.ResponseWriter, *http.Request) { t.Errorf("unexpected lookup") },
			ip:      "10.0.0.1",
		},
		{
			name:    "not an ip",
			handler: func(http.ResponseWriter, *http.Request) { t.Errorf("unexpected lookup") },
			ip:      "Unknown IP",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()

			l := New(Config{BaseURL: srv.URL, Timeout: 100 * time.Millisecond}, nil, nil)
			assert.Equal(t, UnknownLocation, l.Locate(context.Background(), tc.ip))
		})
	}
}

func TestLocate_NilAndDisabled(t *testing.T) {
	var l *Locator
	assert.Equal(t, UnknownLocation, l.Locate(context.Background(), "8.8.8.8"))

	disabled := New(Config{}, nil, nil)
	assert.Equal(t, UnknownLocation, disabled.Locate(context.Background(), "8.8.8.8"))
}

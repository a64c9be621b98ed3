// Package geo resolves client IPs to a coarse "City, Region, Country" label.
//
// Lookups are best effort: every failure yields UnknownLocation and is logged,
// never returned, so a slow or broken provider cannot fail a login.
package geo

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// UnknownLocation is the fallback label.
const UnknownLocation = "Unknown Location"

// Config defines the lookup provider.
type Config struct {
	// BaseURL is the ip-api compatible endpoint root; the IP is appended as a path segment.
	BaseURL string
	Timeout time.Duration
}

// DefaultConfig returns the ip-api.com endpoint with a 2s timeout.
func DefaultConfig() Config {
	return Config{
		BaseURL: "http://ip-api.com/json",
		Timeout: 2 * time.Second,
	}
}

// Locator is an ip-api client.
type Locator struct {
	cfg  Config
	http *http.Client
	log  *slog.Logger
}

// New constructs a Locator. A nil httpClient gets one bounded by cfg.Timeout.
func New(cfg Config, httpClient *http.Client, log *slog.Logger) *Locator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Locator{cfg: cfg, http: httpClient, log: log}
}

type ipAPIResponse struct {
	Status     string `json:"status"`
	Message    string `json:"message"`
	City       string `json:"city"`
	RegionName string `json:"regionName"`
	Country    string `json:"country"`
}

// Locate returns the location label for ip, or UnknownLocation.
func (l *Locator) Locate(ctx context.Context, ip string) string {
	if l == nil || strings.TrimSpace(l.cfg.BaseURL) == "" {
		return UnknownLocation
	}

	addr := net.ParseIP(strings.TrimSpace(ip))
	if addr == nil || addr.IsLoopback() || addr.IsPrivate() || addr.IsUnspecified() {
		return UnknownLocation
	}

	ctx, cancel := context.WithTimeout(ctx, l.cfg.Timeout)
	defer cancel()

	endpoint := strings.TrimRight(l.cfg.BaseURL, "/") + "/" + url.PathEscape(addr.String())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return UnknownLocation
	}

	resp, err := l.http.Do(req)
	if err != nil {
		l.log.Warn("geo.lookup.fail", "err", err)
		return UnknownLocation
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		l.log.Warn("geo.lookup.fail", "status", resp.StatusCode)
		return UnknownLocation
	}

	var body ipAPIResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body); err != nil {
		l.log.Warn("geo.lookup.decode", "err", err)
		return UnknownLocation
	}
	if body.Status != "success" {
		l.log.Info("geo.lookup.miss", "message", body.Message)
		return UnknownLocation
	}

	parts := make([]string, 0, 3)
	for _, p := range []string{body.City, body.RegionName, body.Country} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return UnknownLocation
	}
	return strings.Join(parts, ", ")
}

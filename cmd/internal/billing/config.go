package billing

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ErrConfig is returned for invalid configuration.
var ErrConfig = errors.New("invalid billing config")

// Config defines the provider account and the product on sale.
type Config struct {
	// SecretKey authenticates API calls (sk_...).
	SecretKey string
	// WebhookSecret signs webhook deliveries (whsec_...).
	WebhookSecret string

	// APIBase is the provider API root.
	APIBase string

	SuccessURL string
	CancelURL  string

	ProductName string
	Currency    string
	// UnitAmount is the price in the currency's minor unit.
	UnitAmount int64

	// Tolerance bounds the age of a signed webhook timestamp.
	Tolerance   time.Duration
	HTTPTimeout time.Duration
	// MaxRetries is how often the Stripe client retries a failed request.
	MaxRetries int64
}

// DefaultConfig returns a $2.00 premium product. Secrets have no default.
func DefaultConfig() Config {
	return Config{
		APIBase:     "https://api.stripe.com",
		SuccessURL:  "https://a1dos-creations.com/account/chk/success",
		CancelURL:   "https://a1dos-creations.com/account/chk/cancel",
		ProductName: "Premium (STL+ Product Key)",
		Currency:    "usd",
		UnitAmount:  200,
		Tolerance:   5 * time.Minute,
		HTTPTimeout: 10 * time.Second,
		MaxRetries:  2,
	}
}

// Enabled reports whether checkout can be used.
func (c Config) Enabled() bool { return strings.TrimSpace(c.SecretKey) != "" }

// Check validates the configuration when billing is enabled.
func (c Config) Check() error {
	if !c.Enabled() {
		return nil
	}
	if _, err := url.ParseRequestURI(c.APIBase); err != nil {
		return fmt.Errorf("%w: api base: %v", ErrConfig, err)
	}
	if c.UnitAmount <= 0 || strings.TrimSpace(c.Currency) == "" || strings.TrimSpace(c.ProductName) == "" {
		return fmt.Errorf("%w: product must have a name, currency and positive amount", ErrConfig)
	}
	if c.SuccessURL == "" || c.CancelURL == "" {
		return fmt.Errorf("%w: success and cancel urls are required", ErrConfig)
	}
	if c.Tolerance <= 0 || c.HTTPTimeout <= 0 {
		return fmt.Errorf("%w: durations must be positive", ErrConfig)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("%w: max retries must not be negative", ErrConfig)
	}
	return nil
}

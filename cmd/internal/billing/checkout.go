package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v82"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
)

// ErrProvider wraps failures reported by the payment provider.
var ErrProvider = errors.New("payment provider error")

// CheckoutSession is the subset of a provider checkout session the service uses.
type CheckoutSession struct {
	ID            string
	URL           string
	PaymentStatus string
	Metadata      map[string]string
}

// UserID returns the user the session was created for.
func (s CheckoutSession) UserID() string {
	return strings.TrimSpace(s.Metadata["user_id"])
}

func fromStripeSession(s *stripe.CheckoutSession) CheckoutSession {
	return CheckoutSession{
		ID:            s.ID,
		URL:           s.URL,
		PaymentStatus: string(s.PaymentStatus),
		Metadata:      s.Metadata,
	}
}

// Client creates checkout sessions through the Stripe API.
type Client struct {
	cfg      Config
	sessions checkoutsession.Client
}

// ClientOption configures optional Client dependencies.
type ClientOption func(*clientOptions)

type clientOptions struct {
	http *http.Client
	log  *slog.Logger
}

// WithHTTPClient replaces the HTTP client the Stripe backend uses.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(o *clientOptions) { o.http = c }
}

// WithLogger routes the Stripe client's own logging through log.
func WithLogger(log *slog.Logger) ClientOption {
	return func(o *clientOptions) {
		if log != nil {
			o.log = log
		}
	}
}

// NewClient constructs a Client bound to cfg.APIBase.
func NewClient(cfg Config, opts ...ClientOption) (*Client, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("%w: missing secret key", ErrConfig)
	}
	if err := cfg.Check(); err != nil {
		return nil, err
	}

	o := clientOptions{log: slog.Default()}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.http == nil {
		o.http = &http.Client{Timeout: cfg.HTTPTimeout}
	}

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(strings.TrimRight(cfg.APIBase, "/")),
		HTTPClient:        o.http,
		MaxNetworkRetries: stripe.Int64(cfg.MaxRetries),
		LeveledLogger:     stripeLogger{log: o.log},
	})
	return &Client{
		cfg:      cfg,
		sessions: checkoutsession.Client{B: backend, Key: cfg.SecretKey},
	}, nil
}

// CreateCheckoutSession starts a one-item payment for userID. The user id travels
// in the session metadata and comes back in the completion webhook.
func (c *Client) CreateCheckoutSession(ctx context.Context, userID string) (CheckoutSession, error) {
	if strings.TrimSpace(userID) == "" {
		return CheckoutSession{}, fmt.Errorf("billing: empty user id")
	}

	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(c.cfg.Currency),
				UnitAmount: stripe.Int64(c.cfg.UnitAmount),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(c.cfg.ProductName),
				},
			},
		}},
		SuccessURL: stripe.String(c.cfg.SuccessURL),
		CancelURL:  stripe.String(c.cfg.CancelURL),
	}
	params.AddMetadata("user_id", userID)
	params.Context = ctx

	s, err := c.sessions.New(params)
	if err != nil {
		var serr *stripe.Error
		if errors.As(err, &serr) {
			return CheckoutSession{}, fmt.Errorf("%w: status %d: %s %s", ErrProvider, serr.HTTPStatusCode, serr.Type, serr.Msg)
		}
		return CheckoutSession{}, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	if s == nil || s.ID == "" {
		return CheckoutSession{}, fmt.Errorf("%w: missing session id", ErrProvider)
	}
	return fromStripeSession(s), nil
}

// stripeLogger adapts slog to the Stripe client's leveled logger.
type stripeLogger struct {
	log *slog.Logger
}

func (l stripeLogger) Debugf(format string, v ...any) {
	l.log.Debug("billing.stripe", "detail", fmt.Sprintf(format, v...))
}

func (l stripeLogger) Infof(format string, v ...any) {
	l.log.Debug("billing.stripe", "detail", fmt.Sprintf(format, v...))
}

func (l stripeLogger) Warnf(format string, v ...any) {
	l.log.Warn("billing.stripe", "detail", fmt.Sprintf(format, v...))
}

func (l stripeLogger) Errorf(format string, v ...any) {
	l.log.Error("billing.stripe", "detail", fmt.Sprintf(format, v...))
}

package billing

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// SignatureHeader carries the webhook signature.
const SignatureHeader = "Stripe-Signature"

// EventCheckoutCompleted is the event type that triggers key issuance.
const EventCheckoutCompleted = "checkout.session.completed"

var (
	// ErrInvalidSignature is returned when a payload is not signed by the provider.
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrInvalidPayload is returned when a verified payload cannot be decoded.
	ErrInvalidPayload = errors.New("invalid webhook payload")
)

// Event is a verified webhook event.
type Event struct {
	ID     string
	Type   string
	object json.RawMessage
}

// CheckoutSession decodes the event object as a checkout session.
func (e Event) CheckoutSession() (CheckoutSession, error) {
	if len(e.object) == 0 {
		return CheckoutSession{}, fmt.Errorf("%w: missing object", ErrInvalidPayload)
	}
	var s stripe.CheckoutSession
	if err := json.Unmarshal(e.object, &s); err != nil {
		return CheckoutSession{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if s.ID == "" {
		return CheckoutSession{}, fmt.Errorf("%w: missing session id", ErrInvalidPayload)
	}
	return fromStripeSession(&s), nil
}

// WebhookVerifier authenticates webhook deliveries with the shared signing secret.
type WebhookVerifier struct {
	secret    string
	tolerance time.Duration
}

// NewWebhookVerifier constructs a verifier.
func NewWebhookVerifier(secret string, tolerance time.Duration) (*WebhookVerifier, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, fmt.Errorf("%w: missing webhook secret", ErrConfig)
	}
	if tolerance <= 0 {
		tolerance = 5 * time.Minute
	}
	return &WebhookVerifier{secret: secret, tolerance: tolerance}, nil
}

// Verify checks the signature header over the raw payload and, only then, decodes it.
// Signatures older than the tolerance are rejected.
func (v *WebhookVerifier) Verify(payload []byte, header string) (Event, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, header, v.secret, webhook.ConstructEventOptions{
		Tolerance:                v.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		if isSignatureError(err) {
			return Event{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		}
		return Event{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if ev.Type == "" {
		return Event{}, fmt.Errorf("%w: missing type", ErrInvalidPayload)
	}

	out := Event{ID: ev.ID, Type: string(ev.Type)}
	if ev.Data != nil {
		out.object = ev.Data.Raw
	}
	return out, nil
}

func isSignatureError(err error) bool {
	return errors.Is(err, webhook.ErrNotSigned) ||
		errors.Is(err, webhook.ErrInvalidHeader) ||
		errors.Is(err, webhook.ErrNoValidSignature) ||
		errors.Is(err, webhook.ErrTooOld)
}

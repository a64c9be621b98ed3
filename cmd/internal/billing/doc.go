// Package billing talks to the payment provider (Stripe): it creates hosted
// checkout sessions and authenticates webhook deliveries.
//
// Webhook payloads are trusted only after their signature verifies. The user a
// payment belongs to comes from the checkout session's own metadata, never from
// anything the caller adds to the request.
package billing

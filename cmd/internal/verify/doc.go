// Package verify implements short-lived numeric verification codes for sensitive
// account operations (password reset, email change).
//
// Codes are stored hashed with an absolute expiry. Consuming a code deletes every
// outstanding code of its user in the same transaction as the state change the
// code authorizes, so a code works at most once and stale codes die with it.
// Expiry is checked at consume time; nothing sweeps the table.
package verify

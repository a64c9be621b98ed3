// Package token provides the digest primitives used to store bearer secrets
// (session tokens, verification codes) without keeping them in plaintext.
//
// A Hasher runs in one of two modes:
//   - HMAC-SHA256 keyed by a server secret when a key is configured (production).
//   - plain SHA-256 when no key is configured (development, tests).
//
// Output is always a 64-char lowercase hex string so digests can be compared
// in constant time and indexed in Postgres.
package token

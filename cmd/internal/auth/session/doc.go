// Package session implements the token issuer/verifier and the session registry.
//
// Tokens are signed, time-limited identity assertions (JWT HS256 by default,
// PASETO v4.local when configured) carrying the user id and email. A valid token is
// necessary but not sufficient: an endpoint that honors revocation also requires a
// matching row in the session table, which Service.Authenticate checks.
//
// Session rows store a digest of the token (cmd/security/token), never the token.
// The same digest keys the live revocation channel, so revoking a row can push a
// logout to the connection that presented the token.
//
// All tokens are signed with one process-wide secret loaded at startup; rotating it
// invalidates every outstanding token.
package session

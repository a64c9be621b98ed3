// Package identity is the credential store: users, their password credentials,
// account flags (premium, email notifications) and the linked Google account.
//
// Passwords are hashed with cmd/security/password. Rows live in a configurable
// Postgres schema (default "stl").
package identity

package identity

import "strings"

// NormalizeEmail performs case-insensitive canonicalization.
// The stored email keeps the user's casing; uniqueness is enforced on the normalized form.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeName trims surrounding whitespace and collapses internal runs of spaces.
func NormalizeName(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

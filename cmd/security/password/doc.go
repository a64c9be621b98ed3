// Package password hashes and verifies account passwords.
//
// New hashes are Argon2id in PHC form:
//
//	$argon2id$v=19$m=<mem>,t=<iter>,p=<par>$<salt_b64>$<hash_b64>
//
// Accounts created before the Argon2id migration carry bcrypt hashes ($2a$, $2b$, $2y$).
// Those still verify, and NeedsRehash reports them so callers can upgrade on the next
// successful login.
//
// Hash strings are treated as untrusted input during Verify; parameters far above the
// configured cost are refused.
package password

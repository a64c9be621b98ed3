// Package upgrade issues premium upgrade keys after payment and lets users claim them.
//
// A key moves UNCLAIMED -> CLAIMED exactly once. Claim locks the key row inside a
// transaction, so concurrent claims of one key are mutually exclusive: the first
// committer wins and the rest fail with ErrAlreadyClaimedOrInvalid.
package upgrade

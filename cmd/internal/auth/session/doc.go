// Package session implements vault sessions: short-lived PASETO v4.public
// access tokens paired with rotating, single-use refresh secrets.
//
// Refresh secrets are random hex strings. Only their digest is stored
// (HMAC-SHA256 when VAULT_TOKEN_HMAC_KEY is set; otherwise SHA-256).
//
// Rotation is a compare-and-swap on revoked_at: of two concurrent rotations
// of the same secret exactly one succeeds. Presenting an already rotated
// secret is treated as theft and revokes every session of the account.
//
// Every rejection of a refresh secret satisfies errors.Is(err, ErrSessionNotActive).
package session

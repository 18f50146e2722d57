// Package token provides refresh-secret generation and hashing.
//
// Refresh secrets are random bytes rendered as lowercase hex. Only their
// digest is ever stored:
// - SHA-256(secret) when no HMAC key is configured (development).
// - HMAC-SHA256(secret, key) when VAULT_TOKEN_HMAC_KEY is set.
//
// Digests are always 64 hex chars so lookups and constant-time comparisons
// have a fixed shape.
package token

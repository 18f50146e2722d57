// Package kdf derives fixed-length key material from a password and salt.
//
// Supported algorithms are PBKDF2 (HMAC-SHA-512 and HMAC-SHA-256) and Argon2id.
// Parameters travel with the records that use them (verifier strings, key envelopes),
// so historical records stay verifiable after the defaults are raised.
//
// Derivation is deliberately slow. Callers serving requests should run it through a
// Limiter so a burst of logins cannot monopolize every CPU.
package kdf

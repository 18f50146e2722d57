// Package keywrap seals small secrets (vault keys, TOTP seeds) under a
// 256-bit key with AES-GCM.
//
// Envelopes carry the ciphertext, the 12-byte IV and the 16-byte tag as
// separate fields, the same shape browser clients produce with WebCrypto
// after splitting the tag off the ciphertext. A fresh random IV is drawn
// for every wrap.
//
// Every unwrap failure (wrong key, tampered field, bad lengths) surfaces as
// ErrUnwrap so callers cannot act as a decryption oracle.
package keywrap

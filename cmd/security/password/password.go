package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"vaultauth/cmd/security/kdf"
)

// Record is a decoded verifier record.
type Record struct {
	Algorithm  kdf.Algorithm
	Iterations int
	Salt       []byte
	Hash       []byte
}

// String encodes r as <algorithm>$<iterations>$<salt_b64>$<hash_b64>.
func (r Record) String() string {
	b64 := base64.StdEncoding
	return fmt.Sprintf("%s$%d$%s$%s",
		r.Algorithm,
		r.Iterations,
		b64.EncodeToString(r.Salt),
		b64.EncodeToString(r.Hash),
	)
}

// ParseRecord strictly decodes an encoded verifier record.
func ParseRecord(encoded string) (Record, error) {
	parts := strings.Split(strings.TrimSpace(encoded), "$")
	if len(parts) != 4 {
		return Record{}, ErrInvalidRecord
	}

	alg, err := kdf.ParseAlgorithm(parts[0])
	if err != nil || string(alg) != parts[0] {
		return Record{}, ErrInvalidRecord
	}

	iter, err := strconv.Atoi(parts[1])
	if err != nil || iter <= 0 {
		return Record{}, ErrInvalidRecord
	}

	salt, err := decodeB64(parts[2])
	if err != nil {
		return Record{}, ErrInvalidRecord
	}
	hash, err := decodeB64(parts[3])
	if err != nil {
		return Record{}, ErrInvalidRecord
	}

	rec := Record{Algorithm: alg, Iterations: iter, Salt: salt, Hash: hash}
	if err := rec.params().Validate(len(salt)); err != nil {
		return Record{}, ErrInvalidRecord
	}
	return rec, nil
}

// Clients encode with padding; tolerate unpadded input from other tooling.
func decodeB64(s string) ([]byte, error) {
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.RawStdEncoding.DecodeString(s)
}

func (r Record) params() kdf.Params {
	return kdf.Params{
		Algorithm:  r.Algorithm,
		Iterations: r.Iterations,
		KeyLength:  len(r.Hash),
	}
}

// Create derives a fresh verifier record for password.
func (c Config) Create(password string) (Record, error) {
	if err := c.Validate(password); err != nil {
		return Record{}, err
	}

	salt := make([]byte, c.Params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return Record{}, fmt.Errorf("salt: %w", err)
	}

	hash, err := kdf.Derive(c.kdfParams(), []byte(password), salt)
	if err != nil {
		return Record{}, err
	}

	return Record{
		Algorithm:  c.Params.Algorithm,
		Iterations: c.Params.Iterations,
		Salt:       salt,
		Hash:       hash,
	}, nil
}

// AcceptRecord validates a client-built record before it is persisted.
// It returns the canonical encoding.
func (c Config) AcceptRecord(encoded string) (string, error) {
	rec, err := ParseRecord(encoded)
	if err != nil {
		return "", err
	}
	if rec.Algorithm != kdf.Argon2id && rec.Iterations < c.Params.MinIterations {
		return "", ErrWeakRecord
	}
	if !withinReasonableBounds(rec, c.Params) {
		return "", ErrInvalidRecord
	}
	return rec.String(), nil
}

// Check reports whether password matches the encoded record.
// Any decode or parameter problem reports false; callers cannot tell the cases apart.
func (c Config) Check(password, encoded string) bool {
	if len(password) > c.maxPasswordBytes() {
		return false
	}
	rec, err := ParseRecord(encoded)
	if err != nil {
		return false
	}
	if !withinReasonableBounds(rec, c.Params) {
		return false
	}

	derived, err := kdf.Derive(rec.params(), []byte(password), rec.Salt)
	if err != nil {
		return false
	}
	return hashesEqual(derived, rec.Hash)
}

// DummyCheck spends the same derivation work as Check against the configured
// defaults. Login uses it for unknown accounts so response time does not reveal them.
func (c Config) DummyCheck(password string) {
	salt := make([]byte, c.Params.SaltLength)
	_, _ = kdf.Derive(c.kdfParams(), []byte(password), salt)
}

func hashesEqual(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

func withinReasonableBounds(got Record, limits Params) bool {
	// Older, cheaper records stay verifiable; wildly larger ones are refused.
	if got.Algorithm == limits.Algorithm && got.Iterations > limits.Iterations*2 {
		return false
	}
	if got.Algorithm != limits.Algorithm && got.Algorithm != kdf.Argon2id && got.Iterations > kdf.DefaultParams().Iterations*2 {
		return false
	}
	if len(got.Salt) > 64 {
		return false
	}
	return true
}

func (c Config) maxPasswordBytes() int {
	// Policy counts runes; a rune is at most 4 bytes.
	if c.Policy.MaxLength <= 0 {
		return 4096
	}
	return c.Policy.MaxLength * 4
}

package kdf

import (
	"crypto/sha256"
	"crypto/sha512"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/pbkdf2"
)

// Algorithm identifies a key derivation function.
type Algorithm string

const (
	PBKDF2SHA512 Algorithm = "pbkdf2_sha512"
	PBKDF2SHA256 Algorithm = "pbkdf2_sha256"
	Argon2id     Algorithm = "argon2id"
)

// Bounds applied to every derivation request.
const (
	MinSaltLength = 16
	MinKeyLength  = 16
	MaxKeyLength  = 128

	MaxPBKDF2Iterations = 10_000_000
	MaxArgon2Iterations = 20

	argon2MemoryKiB = 64 * 1024
	argon2Threads   = 4
)

var (
	// ErrUnsupportedAlgorithm is returned for unknown algorithm identifiers.
	ErrUnsupportedAlgorithm = errors.New("kdf: unsupported algorithm")
	// ErrInvalidParams is returned when salt, iteration count or key length is out of bounds.
	ErrInvalidParams = errors.New("kdf: invalid parameters")
)

// Params describes one derivation.
type Params struct {
	Algorithm  Algorithm
	Iterations int
	KeyLength  int
}

// DefaultParams matches what browser clients use with WebCrypto.
func DefaultParams() Params {
	return Params{
		Algorithm:  PBKDF2SHA512,
		Iterations: 600_000,
		KeyLength:  32,
	}
}

// ParseAlgorithm accepts canonical identifiers and the WebCrypto hash names
// ("SHA-512", "SHA-256") that clients send alongside PBKDF2 params.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(PBKDF2SHA512), "sha-512", "sha512":
		return PBKDF2SHA512, nil
	case string(PBKDF2SHA256), "sha-256", "sha256":
		return PBKDF2SHA256, nil
	case string(Argon2id):
		return Argon2id, nil
	default:
		return "", ErrUnsupportedAlgorithm
	}
}

// Validate checks p and salt against the package bounds.
func (p Params) Validate(saltLen int) error {
	if saltLen < MinSaltLength {
		return fmt.Errorf("%w: salt shorter than %d bytes", ErrInvalidParams, MinSaltLength)
	}
	if p.KeyLength < MinKeyLength || p.KeyLength > MaxKeyLength {
		return fmt.Errorf("%w: key length %d", ErrInvalidParams, p.KeyLength)
	}

	maxIter := MaxPBKDF2Iterations
	switch p.Algorithm {
	case PBKDF2SHA512, PBKDF2SHA256:
	case Argon2id:
		maxIter = MaxArgon2Iterations
	default:
		return ErrUnsupportedAlgorithm
	}
	if p.Iterations < 1 || p.Iterations > maxIter {
		return fmt.Errorf("%w: iterations %d", ErrInvalidParams, p.Iterations)
	}
	return nil
}

// Derive returns p.KeyLength bytes derived from password and salt.
func Derive(p Params, password, salt []byte) ([]byte, error) {
	if err := p.Validate(len(salt)); err != nil {
		return nil, err
	}
	return derive(p.Algorithm, password, salt, p.Iterations, p.KeyLength)
}

func derive(alg Algorithm, password, salt []byte, iterations, keyLen int) ([]byte, error) {
	switch alg {
	case PBKDF2SHA512:
		return pbkdf2.Key(password, salt, iterations, keyLen, sha512.New), nil
	case PBKDF2SHA256:
		return pbkdf2.Key(password, salt, iterations, keyLen, sha256.New), nil
	case Argon2id:
		// #nosec G115 -- iterations and keyLen are bounded by Validate.
		return argon2.IDKey(password, salt, uint32(iterations), argon2MemoryKiB, argon2Threads, uint32(keyLen)), nil
	default:
		return nil, ErrUnsupportedAlgorithm
	}
}

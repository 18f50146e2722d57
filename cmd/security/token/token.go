package token

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
)

const (
	// HMACEnvKey is the env var name for the token HMAC secret.
	// #nosec G101 -- not a credential; it's an environment variable name.
	HMACEnvKey = "VAULT_TOKEN_HMAC_KEY"

	// MinHMACKeyBytes is the smallest HMAC key accepted when HMAC is required.
	MinHMACKeyBytes = 32

	MinSecretBytes = 32
	MaxSecretBytes = 128
)

// HashSHA256Hex returns a SHA-256 hex digest of s.
func HashSHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// HashHMACSHA256Hex returns an HMAC-SHA256 hex digest of s using key.
func HashHMACSHA256Hex(s string, key []byte) string {
	m := hmac.New(sha256.New, key)
	_, _ = m.Write([]byte(s))
	return hex.EncodeToString(m.Sum(nil))
}

// Hasher digests refresh secrets for storage. The zero value hashes with plain SHA-256.
type Hasher struct {
	key []byte
}

// NewHasher returns an HMAC hasher. An empty key yields a SHA-256 hasher
// unless minBytes > 0.
func NewHasher(key []byte, minBytes int) (*Hasher, error) {
	if len(key) == 0 {
		if minBytes > 0 {
			return nil, ErrHMACKeyMissing
		}
		return &Hasher{}, nil
	}
	if minBytes > 0 && len(key) < minBytes {
		return nil, ErrHMACKeyTooShort
	}
	k := make([]byte, len(key))
	copy(k, key)
	return &Hasher{key: k}, nil
}

// HasherFromEnv builds a Hasher from VAULT_TOKEN_HMAC_KEY.
// When require is true the key must be present and at least MinHMACKeyBytes long.
func HasherFromEnv(require bool) (*Hasher, error) {
	raw := strings.TrimSpace(os.Getenv(HMACEnvKey))
	minBytes := 0
	if require {
		minBytes = MinHMACKeyBytes
	}
	return NewHasher([]byte(raw), minBytes)
}

// HMAC reports whether the hasher is keyed.
func (h *Hasher) HMAC() bool {
	return h != nil && len(h.key) > 0
}

// Hash returns the 64-char hex digest of secret.
func (h *Hasher) Hash(secret string) string {
	if !h.HMAC() {
		return HashSHA256Hex(secret)
	}
	return HashHMACSHA256Hex(secret, h.key)
}

// NewRefreshSecret returns nBytes of randomness as hex.
func NewRefreshSecret(nBytes int) (string, error) {
	if nBytes < MinSecretBytes || nBytes > MaxSecretBytes {
		return "", fmt.Errorf("%w: %d", ErrSecretLength, nBytes)
	}
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("refresh secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// EqualHex64 compares two digests in constant time.
// Anything that is not exactly 64 chars is never equal.
func EqualHex64(a, b string) bool {
	if len(a) != 64 || len(b) != 64 {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

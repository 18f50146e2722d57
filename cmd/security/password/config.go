package password

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"vaultauth/cmd/security/kdf"
)

// Params controls how new verifier records are created and which stored
// records are accepted.
type Params struct {
	Algorithm  kdf.Algorithm
	Iterations int
	SaltLength int
	KeyLength  int

	// MinIterations is the floor for client-supplied records at registration.
	MinIterations int
}

// Policy controls password validation and anti-DoS boundaries.
type Policy struct {
	MinLength int
	MaxLength int
	// If true, enable an extra, minimal weak-pattern rejection.
	RejectVeryWeak bool
}

// Config is the single configuration surface for this package.
type Config struct {
	Params Params
	Policy Policy
}

// DefaultConfig mirrors the parameters browser clients use (PBKDF2-SHA-512, 600k rounds).
func DefaultConfig() Config {
	def := kdf.DefaultParams()
	return Config{
		Params: Params{
			Algorithm:     def.Algorithm,
			Iterations:    def.Iterations,
			SaltLength:    16,
			KeyLength:     def.KeyLength,
			MinIterations: 100_000,
		},
		Policy: Policy{
			MinLength:      12,
			MaxLength:      1024,
			RejectVeryWeak: false,
		},
	}
}

// FromEnv loads config from environment variables.
//
// Env surface:
// - VAULT_PASSWORD_MIN_LEN
// - VAULT_PASSWORD_MAX_LEN
// - VAULT_PASSWORD_REJECT_VERY_WEAK (true/false)
// - VAULT_KDF_ALGORITHM (pbkdf2_sha512, pbkdf2_sha256, argon2id)
// - VAULT_KDF_ITERATIONS
// - VAULT_KDF_MIN_ITERATIONS
// - VAULT_KDF_SALT_LEN
// - VAULT_KDF_KEY_LEN
func FromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v, ok := os.LookupEnv("VAULT_PASSWORD_MIN_LEN"); ok {
		n, err := atoiInRange(v, 1, 1024)
		if err != nil {
			return Config{}, fmt.Errorf("VAULT_PASSWORD_MIN_LEN: %w", err)
		}
		cfg.Policy.MinLength = n
	}

	if v, ok := os.LookupEnv("VAULT_PASSWORD_MAX_LEN"); ok {
		n, err := atoiInRange(v, 1, 4096)
		if err != nil {
			return Config{}, fmt.Errorf("VAULT_PASSWORD_MAX_LEN: %w", err)
		}
		cfg.Policy.MaxLength = n
	}

	if v, ok := os.LookupEnv("VAULT_PASSWORD_REJECT_VERY_WEAK"); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return Config{}, fmt.Errorf("VAULT_PASSWORD_REJECT_VERY_WEAK: invalid boolean")
		}
		cfg.Policy.RejectVeryWeak = b
	}

	if v, ok := os.LookupEnv("VAULT_KDF_ALGORITHM"); ok {
		alg, err := kdf.ParseAlgorithm(v)
		if err != nil {
			return Config{}, fmt.Errorf("VAULT_KDF_ALGORITHM: %w", err)
		}
		cfg.Params.Algorithm = alg
		if alg == kdf.Argon2id {
			cfg.Params.Iterations = 3
			cfg.Params.MinIterations = 1
		}
	}

	if v, ok := os.LookupEnv("VAULT_KDF_ITERATIONS"); ok {
		n, err := atoiInRange(v, 1, kdf.MaxPBKDF2Iterations)
		if err != nil {
			return Config{}, fmt.Errorf("VAULT_KDF_ITERATIONS: %w", err)
		}
		cfg.Params.Iterations = n
	}

	if v, ok := os.LookupEnv("VAULT_KDF_MIN_ITERATIONS"); ok {
		n, err := atoiInRange(v, 1, kdf.MaxPBKDF2Iterations)
		if err != nil {
			return Config{}, fmt.Errorf("VAULT_KDF_MIN_ITERATIONS: %w", err)
		}
		cfg.Params.MinIterations = n
	}

	if v, ok := os.LookupEnv("VAULT_KDF_SALT_LEN"); ok {
		n, err := atoiInRange(v, kdf.MinSaltLength, 64)
		if err != nil {
			return Config{}, fmt.Errorf("VAULT_KDF_SALT_LEN: %w", err)
		}
		cfg.Params.SaltLength = n
	}

	if v, ok := os.LookupEnv("VAULT_KDF_KEY_LEN"); ok {
		n, err := atoiInRange(v, kdf.MinKeyLength, 64)
		if err != nil {
			return Config{}, fmt.Errorf("VAULT_KDF_KEY_LEN: %w", err)
		}
		cfg.Params.KeyLength = n
	}

	// Final sanity.
	if cfg.Policy.MinLength > cfg.Policy.MaxLength {
		return Config{}, fmt.Errorf(
			"password policy invalid: min_len(%d) > max_len(%d)",
			cfg.Policy.MinLength,
			cfg.Policy.MaxLength,
		)
	}
	if cfg.Params.MinIterations > cfg.Params.Iterations {
		return Config{}, fmt.Errorf(
			"kdf params invalid: min_iterations(%d) > iterations(%d)",
			cfg.Params.MinIterations,
			cfg.Params.Iterations,
		)
	}
	if err := cfg.kdfParams().Validate(cfg.Params.SaltLength); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) kdfParams() kdf.Params {
	return kdf.Params{
		Algorithm:  c.Params.Algorithm,
		Iterations: c.Params.Iterations,
		KeyLength:  c.Params.KeyLength,
	}
}

func atoiInRange(s string, minVal, maxVal int) (int, error) {
	s = strings.TrimSpace(s)
	i64, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("not an integer")
	}

	i := int(i64)
	if i < minVal || i > maxVal {
		return 0, fmt.Errorf("out of range [%d..%d]", minVal, maxVal)
	}
	return i, nil
}

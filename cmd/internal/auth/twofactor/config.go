package twofactor

import (
	"encoding/hex"
	"os"
	"strconv"
	"strings"
	"time"

	"vaultauth/cmd/security/keywrap"
)

// Config configures the coordinator.
type Config struct {
	// Issuer is shown by authenticator apps next to the account name.
	Issuer string

	// TokenSecret signs enroll and challenge tokens (HS256).
	TokenSecret []byte

	// SealKey encrypts the server copy of TOTP seeds (AES-256-GCM).
	SealKey []byte

	EnrollTTL    time.Duration
	ChallengeTTL time.Duration

	// MaxAttempts wrong codes burn a challenge.
	MaxAttempts int

	// Period and Skew follow RFC 6238; Skew is in steps either side of now.
	Period uint
	Skew   uint

	// RequireCodeToDisable demands a current code before 2FA is turned off.
	RequireCodeToDisable bool
}

const minTokenSecretBytes = 32

// DefaultConfig returns defaults without key material.
func DefaultConfig() Config {
	return Config{
		Issuer:               "SecureVault",
		EnrollTTL:            5 * time.Minute,
		ChallengeTTL:         5 * time.Minute,
		MaxAttempts:          5,
		Period:               30,
		Skew:                 1,
		RequireCodeToDisable: true,
	}
}

// Validate checks key sizes and bounds.
func (c Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Issuer) == "":
		return ErrConfig
	case len(c.TokenSecret) < minTokenSecretBytes:
		return ErrConfig
	case len(c.SealKey) != keywrap.KeySize:
		return ErrConfig
	case c.EnrollTTL <= 0 || c.ChallengeTTL <= 0:
		return ErrConfig
	case c.MaxAttempts < 1:
		return ErrConfig
	case c.Period == 0 || c.Skew > 2:
		return ErrConfig
	}
	return nil
}

// LoadConfigFromEnv loads the coordinator configuration.
//
// Required:
//   - VAULT_TWO_FACTOR_TOKEN_SECRET (>= 32 bytes)
//   - VAULT_TWO_FACTOR_KEY (64 hex chars)
//
// Optional:
//   - VAULT_TOTP_ISSUER
//   - VAULT_TWO_FACTOR_TOKEN_TTL (applies to both token kinds)
//   - VAULT_TWO_FACTOR_MAX_ATTEMPTS
//   - VAULT_TWO_FACTOR_REQUIRE_CODE_TO_DISABLE
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := strings.TrimSpace(os.Getenv("VAULT_TOTP_ISSUER")); v != "" {
		cfg.Issuer = v
	}

	cfg.TokenSecret = []byte(strings.TrimSpace(os.Getenv("VAULT_TWO_FACTOR_TOKEN_SECRET")))

	key, err := hex.DecodeString(strings.TrimSpace(os.Getenv("VAULT_TWO_FACTOR_KEY")))
	if err != nil {
		return Config{}, ErrConfig
	}
	cfg.SealKey = key

	if v := os.Getenv("VAULT_TWO_FACTOR_TOKEN_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 || d > 15*time.Minute {
			return Config{}, ErrConfig
		}
		cfg.EnrollTTL, cfg.ChallengeTTL = d, d
	}

	if v := os.Getenv("VAULT_TWO_FACTOR_MAX_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 20 {
			return Config{}, ErrConfig
		}
		cfg.MaxAttempts = n
	}

	if v := os.Getenv("VAULT_TWO_FACTOR_REQUIRE_CODE_TO_DISABLE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, ErrConfig
		}
		cfg.RequireCodeToDisable = b
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

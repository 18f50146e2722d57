package session

import (
	"os"
	"strconv"
	"time"

	"vaultauth/cmd/security/token"
)

// Config defines all runtime configuration for the session subsystem.
//
// It controls access-token TTL, refresh-secret lifetime and size, clock skew
// tolerance, reuse detection and the PASETO v4 signing key.
type Config struct {
	// Issuer is the value set in the "iss" claim of access tokens.
	Issuer string

	// AccessTokenTTL defines the lifetime of PASETO access tokens.
	AccessTokenTTL time.Duration

	// RefreshTTL is the absolute lifetime of a refresh secret. The refresh
	// cookie max-age is derived from it.
	RefreshTTL time.Duration

	// ClockSkew defines the allowed time skew during token validation.
	ClockSkew time.Duration

	// RefreshTokenBytes defines the number of random bytes in a refresh secret.
	RefreshTokenBytes int

	// ReuseDetection revokes every session of an account when an already
	// rotated refresh secret is presented.
	ReuseDetection bool

	// ReuseGrace is how long after a rotation the rotated secret is treated
	// as a lost race (two tabs refreshing at once) rather than theft: the
	// request fails but nothing else is revoked. Zero disables the window.
	ReuseGrace time.Duration

	// PasetoV4SecretKeyHex is the hex-encoded Ed25519 secret key
	// used to sign PASETO v4.public access tokens.
	PasetoV4SecretKeyHex string
}

// DefaultConfig returns a secure default configuration suitable for development.
//
// Production environments should override values via environment variables.
func DefaultConfig() Config {
	return Config{
		Issuer:            "vaultauth",
		AccessTokenTTL:    15 * time.Minute,
		RefreshTTL:        7 * 24 * time.Hour,
		ClockSkew:         30 * time.Second,
		RefreshTokenBytes: 64,
		ReuseDetection:    true,
		ReuseGrace:        5 * time.Second,
	}
}

// LoadConfigFromEnv loads session configuration from environment variables.
//
// Required:
//   - VAULT_PASETO_V4_SECRET_KEY_HEX
//
// Optional (durations must be valid Go duration strings):
//   - VAULT_AUTH_ISSUER
//   - VAULT_AUTH_ACCESS_TTL
//   - VAULT_AUTH_REFRESH_TTL
//   - VAULT_AUTH_CLOCK_SKEW
//   - VAULT_AUTH_REFRESH_TOKEN_BYTES
//   - VAULT_AUTH_REUSE_DETECTION
//   - VAULT_AUTH_REUSE_GRACE
//
// Returns ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv("VAULT_AUTH_ISSUER"); v != "" {
		cfg.Issuer = v
	}

	if v := os.Getenv("VAULT_AUTH_ACCESS_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.AccessTokenTTL = d
	}

	if v := os.Getenv("VAULT_AUTH_REFRESH_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.RefreshTTL = d
	}

	if v := os.Getenv("VAULT_AUTH_CLOCK_SKEW"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return Config{}, ErrConfig
		}
		cfg.ClockSkew = d
	}

	if v := os.Getenv("VAULT_AUTH_REFRESH_TOKEN_BYTES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < token.MinSecretBytes || n > token.MaxSecretBytes {
			return Config{}, ErrConfig
		}
		cfg.RefreshTokenBytes = n
	}

	if v := os.Getenv("VAULT_AUTH_REUSE_DETECTION"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, ErrConfig
		}
		cfg.ReuseDetection = b
	}

	if v := os.Getenv("VAULT_AUTH_REUSE_GRACE"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return Config{}, ErrConfig
		}
		cfg.ReuseGrace = d
	}

	cfg.PasetoV4SecretKeyHex = os.Getenv("VAULT_PASETO_V4_SECRET_KEY_HEX")
	if cfg.PasetoV4SecretKeyHex == "" {
		return Config{}, ErrConfig
	}

	// Invariant: an access token must never outlive the refresh secret behind it.
	if cfg.AccessTokenTTL >= cfg.RefreshTTL {
		return Config{}, ErrConfig
	}

	return cfg, nil
}

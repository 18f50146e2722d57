package app

import (
	"errors"
	"net/http"

	authapi "vaultauth/cmd/internal/auth/api"
	"vaultauth/cmd/security/token"
)

// ValidateSecurityConfig enforces the startup security policy.
//
// Outside production only an explicit VAULT_REQUIRE_TOKEN_HMAC is enforced.
// In production refresh secrets must be hashed with a key, cookies must be
// Secure, and SameSite=None is refused.
func ValidateSecurityConfig(cfg Config, hasher *token.Hasher, cookies authapi.Config) error {
	if (cfg.RequireTokenHMAC || cfg.Production()) && !hasher.HMAC() {
		return errors.New("security policy: VAULT_TOKEN_HMAC_KEY is required (min 32 bytes)")
	}
	if !cfg.Production() {
		return nil
	}
	if !cookies.CookieSecure {
		return errors.New("security policy: VAULT_AUTH_COOKIE_SECURE must be true in production")
	}
	if cookies.CookieSameSite == http.SameSiteNoneMode {
		return errors.New("security policy: SameSite=None refresh cookies are not allowed in production")
	}
	return nil
}

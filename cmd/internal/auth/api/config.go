package authapi

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
)

// ErrConfig is returned for an unusable API configuration.
var ErrConfig = errors.New("invalid auth api config")

// Config controls auth API behavior and security defaults.
type Config struct {
	TrustProxy   bool
	MaxBodyBytes int64

	RefreshCookieName string
	CSRFCookieName    string
	CSRFHeaderName    string
	// CookiePath scopes the refresh cookie to the auth routes.
	CookiePath     string
	CookieDomain   string
	CookieSecure   bool
	CookieSameSite http.SameSite
}

// DefaultConfig returns the production-safe defaults.
func DefaultConfig() Config {
	return Config{
		MaxBodyBytes:      64 << 10,
		RefreshCookieName: "vault_refresh",
		CSRFCookieName:    "vault_csrf",
		CSRFHeaderName:    "X-CSRF-Token",
		CookiePath:        "/api/v1/auth",
		CookieSecure:      true,
		CookieSameSite:    http.SameSiteStrictMode,
	}
}

// LoadConfigFromEnv loads auth config from environment variables with safe defaults.
//
//   - VAULT_AUTH_TRUST_PROXY
//   - VAULT_AUTH_MAX_BODY_BYTES
//   - VAULT_AUTH_REFRESH_COOKIE_NAME, VAULT_AUTH_CSRF_COOKIE_NAME, VAULT_AUTH_CSRF_HEADER_NAME
//   - VAULT_AUTH_COOKIE_DOMAIN, VAULT_AUTH_COOKIE_SECURE, VAULT_AUTH_COOKIE_SAMESITE
func LoadConfigFromEnv() (Config, error) {
	def := DefaultConfig()
	var env envReader

	cfg := Config{
		TrustProxy:        env.boolean("VAULT_AUTH_TRUST_PROXY", false),
		MaxBodyBytes:      env.positive("VAULT_AUTH_MAX_BODY_BYTES", def.MaxBodyBytes),
		RefreshCookieName: env.str("VAULT_AUTH_REFRESH_COOKIE_NAME", def.RefreshCookieName),
		CSRFCookieName:    env.str("VAULT_AUTH_CSRF_COOKIE_NAME", def.CSRFCookieName),
		CSRFHeaderName:    env.str("VAULT_AUTH_CSRF_HEADER_NAME", def.CSRFHeaderName),
		CookiePath:        def.CookiePath,
		CookieDomain:      env.str("VAULT_AUTH_COOKIE_DOMAIN", ""),
		CookieSecure:      env.boolean("VAULT_AUTH_COOKIE_SECURE", def.CookieSecure),
		CookieSameSite:    env.sameSite("VAULT_AUTH_COOKIE_SAMESITE", def.CookieSameSite),
	}
	if err := env.err(); err != nil {
		return Config{}, err
	}

	// Browsers drop SameSite=None cookies without Secure.
	if cfg.CookieSameSite == http.SameSiteNoneMode {
		cfg.CookieSecure = true
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations that would break the cookie transport.
func (c Config) Validate() error {
	switch {
	case c.MaxBodyBytes <= 0:
		return ErrConfig
	case c.RefreshCookieName == "" || c.CSRFCookieName == "" || c.CSRFHeaderName == "":
		return ErrConfig
	case strings.EqualFold(c.RefreshCookieName, c.CSRFCookieName):
		return ErrConfig
	case !strings.HasPrefix(c.CookiePath, "/"):
		return ErrConfig
	}
	return nil
}

// parseSameSite maps strict, lax, none and default (any case) to their modes.
func parseSameSite(v string) (http.SameSite, bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "strict":
		return http.SameSiteStrictMode, true
	case "lax":
		return http.SameSiteLaxMode, true
	case "none":
		return http.SameSiteNoneMode, true
	case "default":
		return http.SameSiteDefaultMode, true
	}
	return 0, false
}

// envReader reads VAULT_AUTH_* variables. Blank variables yield the default;
// malformed ones are collected and surface from err as ErrConfig.
type envReader struct {
	errs []error
}

func (e *envReader) lookup(key string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	return v, v != ""
}

func (e *envReader) fail(key, v, want string) {
	e.errs = append(e.errs, fmt.Errorf("%s=%q: want %s", key, v, want))
}

func (e *envReader) str(key, def string) string {
	if v, ok := e.lookup(key); ok {
		return v
	}
	return def
}

func (e *envReader) boolean(key string, def bool) bool {
	v, ok := e.lookup(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(key, v, "a boolean")
		return def
	}
	return b
}

func (e *envReader) positive(key string, def int64) int64 {
	v, ok := e.lookup(key)
	if !ok {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		e.fail(key, v, "a positive integer")
		return def
	}
	return n
}

func (e *envReader) sameSite(key string, def http.SameSite) http.SameSite {
	v, ok := e.lookup(key)
	if !ok {
		return def
	}
	mode, ok := parseSameSite(v)
	if !ok {
		e.fail(key, v, "strict, lax, none or default")
		return def
	}
	return mode
}

func (e *envReader) err() error {
	if len(e.errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrConfig, errors.Join(e.errs...))
}

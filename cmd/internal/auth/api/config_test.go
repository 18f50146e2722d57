package authapi

import (
	"errors"
	"net/http"
	"strings"
	"testing"
)

func TestLoadConfigFromEnv_Defaults(t *testing.T) {
	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("LoadConfigFromEnv: %v", err)
	}
	if cfg.RefreshCookieName != "vault_refresh" || cfg.CookiePath != "/api/v1/auth" {
		t.Fatalf("unexpected cookie defaults: %+v", cfg)
	}
	if cfg.CookieSameSite != http.SameSiteStrictMode || !cfg.CookieSecure {
		t.Fatalf("refresh cookie must default to SameSite=Strict and Secure")
	}
}

func TestLoadConfigFromEnv_CookieGuardrails(t *testing.T) {
	t.Setenv("VAULT_AUTH_COOKIE_SAMESITE", "none")
	t.Setenv("VAULT_AUTH_COOKIE_SECURE", "false")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("LoadConfigFromEnv: %v", err)
	}
	if cfg.CookieSameSite != http.SameSiteNoneMode {
		t.Fatalf("expected SameSite=None, got %v", cfg.CookieSameSite)
	}
	if !cfg.CookieSecure {
		t.Fatalf("SameSite=None requires Secure=true")
	}
}

func TestLoadConfigFromEnv_CookieNameCollision(t *testing.T) {
	t.Setenv("VAULT_AUTH_REFRESH_COOKIE_NAME", "vault_token")
	t.Setenv("VAULT_AUTH_CSRF_COOKIE_NAME", "VAULT_TOKEN")

	if _, err := LoadConfigFromEnv(); !errors.Is(err, ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
}

func TestParseSameSite(t *testing.T) {
	tests := []struct {
		in   string
		want http.SameSite
		ok   bool
	}{
		{in: "strict", want: http.SameSiteStrictMode, ok: true},
		{in: "Lax", want: http.SameSiteLaxMode, ok: true},
		{in: "none", want: http.SameSiteNoneMode, ok: true},
		{in: "default", want: http.SameSiteDefaultMode, ok: true},
		{in: "unknown"},
	}

	for _, tc := range tests {
		got, ok := parseSameSite(tc.in)
		if ok != tc.ok || (ok && got != tc.want) {
			t.Fatalf("parseSameSite(%q)=%v,%v want %v,%v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestLoadConfigFromEnv_MalformedValues(t *testing.T) {
	cases := map[string]string{
		"VAULT_AUTH_TRUST_PROXY":     "yes",
		"VAULT_AUTH_COOKIE_SECURE":   "maybe",
		"VAULT_AUTH_COOKIE_SAMESITE": "bogus",
		"VAULT_AUTH_MAX_BODY_BYTES":  "-1",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, val)
			_, err := LoadConfigFromEnv()
			if !errors.Is(err, ErrConfig) {
				t.Fatalf("expected ErrConfig for %s=%q, got %v", key, val, err)
			}
			if !strings.Contains(err.Error(), key) {
				t.Fatalf("error does not name %s: %v", key, err)
			}
		})
	}
}

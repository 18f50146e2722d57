package authapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func testCookieHandler() *Handler {
	cfg := DefaultConfig()
	return &Handler{cfg: cfg, now: func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }}
}

func TestSetSessionCookies(t *testing.T) {
	h := testCookieHandler()

	rr := httptest.NewRecorder()
	exp := h.now().Add(30 * time.Minute)
	csrf, err := h.setSessionCookies(rr, "refresh-token-123", exp)
	if err != nil {
		t.Fatalf("setSessionCookies: %v", err)
	}
	if len(csrf) != 64 {
		t.Fatalf("csrf token = %q, want 64 hex chars", csrf)
	}

	cookies := rr.Result().Cookies()
	if len(cookies) != 2 {
		t.Fatalf("expected 2 cookies, got %d", len(cookies))
	}

	byName := map[string]*http.Cookie{}
	for _, c := range cookies {
		byName[c.Name] = c
	}

	refresh := byName["vault_refresh"]
	if refresh == nil {
		t.Fatalf("missing refresh cookie")
	}
	if !refresh.HttpOnly || !refresh.Secure || refresh.SameSite != http.SameSiteStrictMode {
		t.Fatalf("refresh cookie flags: httpOnly=%v secure=%v sameSite=%v", refresh.HttpOnly, refresh.Secure, refresh.SameSite)
	}
	if refresh.Path != "/api/v1/auth" {
		t.Fatalf("refresh cookie path = %q", refresh.Path)
	}
	if refresh.MaxAge != 1800 {
		t.Fatalf("refresh cookie max-age = %d, want 1800", refresh.MaxAge)
	}

	csrfCookie := byName["vault_csrf"]
	if csrfCookie == nil {
		t.Fatalf("missing csrf cookie")
	}
	if csrfCookie.HttpOnly {
		t.Fatalf("csrf cookie must be readable by scripts")
	}
	if csrfCookie.Value != csrf || csrfCookie.Path != "/" {
		t.Fatalf("csrf cookie = %+v", csrfCookie)
	}
}

func TestClearSessionCookies(t *testing.T) {
	h := testCookieHandler()

	rr := httptest.NewRecorder()
	h.clearSessionCookies(rr)

	cookies := rr.Result().Cookies()
	if len(cookies) != 2 {
		t.Fatalf("expected 2 cookies, got %d", len(cookies))
	}
	for _, c := range cookies {
		if c.MaxAge >= 0 || c.Value != "" {
			t.Fatalf("cookie %s not expired: %+v", c.Name, c)
		}
	}
}

func TestCSRFDoubleSubmitValidation(t *testing.T) {
	h := testCookieHandler()
	good := strings.Repeat("ab", 32)
	other := strings.Repeat("cd", 32)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: "vault_csrf", Value: good})
	req.Header.Set("X-CSRF-Token", good)
	if !h.csrfDoubleSubmitValid(req) {
		t.Fatalf("expected csrf validation success")
	}

	bad := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", nil)
	bad.AddCookie(&http.Cookie{Name: "vault_csrf", Value: good})
	bad.Header.Set("X-CSRF-Token", other)
	if h.csrfDoubleSubmitValid(bad) {
		t.Fatalf("expected csrf validation failure on mismatch")
	}

	missing := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", nil)
	missing.Header.Set("X-CSRF-Token", good)
	if h.csrfDoubleSubmitValid(missing) {
		t.Fatalf("expected csrf validation failure without cookie")
	}
}

func TestRefreshTokenFromCookie(t *testing.T) {
	h := testCookieHandler()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", nil)
	if _, ok := h.refreshTokenFromCookie(req); ok {
		t.Fatalf("expected no refresh token")
	}

	req.AddCookie(&http.Cookie{Name: "vault_refresh", Value: "  secret  "})
	got, ok := h.refreshTokenFromCookie(req)
	if !ok || got != "secret" {
		t.Fatalf("refreshTokenFromCookie = %q, %v", got, ok)
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "198.51.100.4:5555"
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")

	if got := clientIP(req, false); got == nil || got.String() != "198.51.100.4" {
		t.Fatalf("untrusted proxy ip = %v", got)
	}
	if got := clientIP(req, true); got == nil || got.String() != "203.0.113.9" {
		t.Fatalf("trusted proxy ip = %v", got)
	}
}

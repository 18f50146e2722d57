package authapi

import (
	"net/http"
	"strings"
	"time"

	"vaultauth/cmd/security/token"
)

const csrfTokenBytes = 32

// cookie builds a session cookie carrying the configured domain and flags.
// maxAge < 0 expires it.
func (h *Handler) cookie(name, value, path string, httpOnly bool, exp time.Time, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Domain:   h.cfg.CookieDomain,
		Expires:  exp,
		MaxAge:   maxAge,
		HttpOnly: httpOnly,
		Secure:   h.cfg.CookieSecure,
		SameSite: h.cfg.CookieSameSite,
	}
}

// setSessionCookies writes the refresh cookie (HttpOnly, scoped to the auth
// routes) and the CSRF cookie the web client echoes in X-CSRF-Token.
// The CSRF value is also returned for the response body.
func (h *Handler) setSessionCookies(w http.ResponseWriter, refreshSecret string, refreshExp time.Time) (string, error) {
	csrf, err := token.NewRefreshSecret(csrfTokenBytes)
	if err != nil {
		return "", err
	}

	maxAge := int(refreshExp.Sub(h.now()).Seconds())
	if maxAge <= 0 {
		maxAge = int(h.sessions.Config().RefreshTTL.Seconds())
	}

	http.SetCookie(w, h.cookie(h.cfg.RefreshCookieName, refreshSecret, h.cfg.CookiePath, true, refreshExp, maxAge))
	http.SetCookie(w, h.cookie(h.cfg.CSRFCookieName, csrf, "/", false, refreshExp, maxAge))
	return csrf, nil
}

func (h *Handler) clearSessionCookies(w http.ResponseWriter) {
	epoch := time.Unix(0, 0).UTC()
	http.SetCookie(w, h.cookie(h.cfg.RefreshCookieName, "", h.cfg.CookiePath, true, epoch, -1))
	http.SetCookie(w, h.cookie(h.cfg.CSRFCookieName, "", "/", false, epoch, -1))
}

func (h *Handler) refreshTokenFromCookie(r *http.Request) (string, bool) {
	c, err := r.Cookie(h.cfg.RefreshCookieName)
	if err != nil {
		return "", false
	}
	v := strings.TrimSpace(c.Value)
	return v, v != ""
}

// csrfDoubleSubmitValid reports whether the CSRF header echoes the CSRF cookie.
func (h *Handler) csrfDoubleSubmitValid(r *http.Request) bool {
	c, err := r.Cookie(h.cfg.CSRFCookieName)
	if err != nil {
		return false
	}
	return token.EqualHex64(strings.TrimSpace(c.Value), strings.TrimSpace(r.Header.Get(h.cfg.CSRFHeaderName)))
}

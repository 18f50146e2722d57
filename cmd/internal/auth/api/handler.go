package authapi

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"vaultauth/cmd/identity"
	"vaultauth/cmd/internal/audit"
	"vaultauth/cmd/internal/auth/session"
	"vaultauth/cmd/internal/auth/twofactor"
	"vaultauth/cmd/internal/metrics"
	"vaultauth/cmd/security/kdf"
	"vaultauth/cmd/security/password"
)

// Deps are the services the handler drives.
type Deps struct {
	Accounts  identity.Store
	Sessions  *session.Service
	TwoFactor *twofactor.Coordinator
	Passwords password.Config

	// KDF bounds concurrent password derivations. Nil runs them inline.
	KDF *kdf.Limiter

	Audit    *audit.Recorder
	AuditLog audit.Lister
	Metrics  *metrics.Metrics
}

// Handler wires HTTP auth endpoints to the identity, session and two-factor services.
type Handler struct {
	log *slog.Logger
	cfg Config

	accounts  identity.Store
	sessions  *session.Service
	twoFactor *twofactor.Coordinator
	passwords password.Config
	kdf       *kdf.Limiter

	audit    *audit.Recorder
	auditLog audit.Lister
	metrics  *metrics.Metrics

	now func() time.Time
}

// HandlerOption configures optional auth handler behavior.
type HandlerOption func(*Handler)

// WithClock overrides the time source.
func WithClock(now func() time.Time) HandlerOption {
	return func(h *Handler) {
		if h == nil || now == nil {
			return
		}
		h.now = now
	}
}

// NewHandler constructs an auth Handler.
func NewHandler(log *slog.Logger, cfg Config, deps Deps, opts ...HandlerOption) (*Handler, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Accounts == nil || deps.Sessions == nil || deps.TwoFactor == nil {
		return nil, errors.New("auth: accounts, sessions and two-factor services are required")
	}

	h := &Handler{
		log:       log,
		cfg:       cfg,
		accounts:  deps.Accounts,
		sessions:  deps.Sessions,
		twoFactor: deps.TwoFactor,
		passwords: deps.Passwords,
		kdf:       deps.KDF,
		audit:     deps.Audit,
		auditLog:  deps.AuditLog,
		metrics:   deps.Metrics,
		now:       func() time.Time { return time.Now().UTC() },
	}
	if h.audit == nil {
		h.audit = audit.NewRecorder(nil, log)
	}

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(h)
	}
	return h, nil
}

// Register wires auth routes onto r. The caller decides the prefix (normally /api/v1).
func (h *Handler) Register(r *mux.Router) {
	if h == nil || r == nil {
		return
	}

	r.HandleFunc("/auth/register", h.handleRegister).Methods(http.MethodPost)
	r.HandleFunc("/auth/login", h.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/auth/refresh", h.handleRefresh).Methods(http.MethodPost)
	r.HandleFunc("/auth/logout", h.handleLogout).Methods(http.MethodPost)
	r.HandleFunc("/auth/2fa/verify", h.handleTwoFactorVerify).Methods(http.MethodPost)

	authed := r.NewRoute().Subrouter()
	authed.Use(h.requireAuth)
	authed.HandleFunc("/auth/me", h.handleMe).Methods(http.MethodGet)
	authed.HandleFunc("/auth/sessions", h.handleListSessions).Methods(http.MethodGet)
	authed.HandleFunc("/auth/sessions/revoke-all", h.handleRevokeAll).Methods(http.MethodPost)
	authed.HandleFunc("/auth/sessions/{id}", h.handleRevokeSession).Methods(http.MethodDelete)
	authed.HandleFunc("/auth/2fa/generate", h.handleTwoFactorGenerate).Methods(http.MethodPost)
	authed.HandleFunc("/auth/2fa/enable", h.handleTwoFactorEnable).Methods(http.MethodPost)
	authed.HandleFunc("/auth/2fa/disable", h.handleTwoFactorDisable).Methods(http.MethodPost)
	authed.HandleFunc("/audit/logs", h.handleAuditLogs).Methods(http.MethodGet)
}

// ---- auth context ----

type claimsKey struct{}

func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			return
		}
		claims, err := h.sessions.ValidateAccessToken(r.Context(), token, h.now())
		if err != nil {
			if !errors.Is(err, session.ErrInvalidToken) && !errors.Is(err, session.ErrSessionNotActive) {
				h.log.Error("auth.access.validate.fail", "err", err)
				writeError(w, http.StatusInternalServerError, "server_error", "internal error")
				return
			}
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
	})
}

func claimsFrom(r *http.Request) session.AccessClaims {
	c, _ := r.Context().Value(claimsKey{}).(session.AccessClaims)
	return c
}

func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return ""
	}
	parts := strings.SplitN(raw, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// ---- request context ----

func (h *Handler) device(r *http.Request) session.DeviceContext {
	ua := strings.TrimSpace(r.UserAgent())
	if len(ua) > 512 {
		ua = ua[:512]
	}
	ip := ""
	if parsed := clientIP(r, h.cfg.TrustProxy); parsed != nil {
		ip = parsed.String()
	}
	return session.DeviceContext{UserAgent: ua, IP: ip}
}

func clientIP(r *http.Request, trustProxy bool) net.IP {
	if trustProxy {
		if ip := parseForwardedIP(r.Header.Get("X-Forwarded-For")); ip != nil {
			return ip
		}
		if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil {
		if ip := net.ParseIP(host); ip != nil {
			return ip
		}
	}
	return nil
}

func parseForwardedIP(raw string) net.IP {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	for _, p := range parts {
		if ip := net.ParseIP(strings.TrimSpace(p)); ip != nil {
			return ip
		}
	}
	return nil
}

package authapi

import (
	"context"
	"errors"
	"net/http"

	"vaultauth/cmd/identity"
	"vaultauth/cmd/internal/audit"
	"vaultauth/cmd/internal/auth/session"
	"vaultauth/cmd/internal/auth/twofactor"
	"vaultauth/cmd/security/keywrap"
)

// writeServiceError maps service errors onto the stable API codes.
// Anything unrecognized is logged under event and reported as an opaque 500.
func (h *Handler) writeServiceError(w http.ResponseWriter, event string, err error) {
	switch {
	case errors.Is(err, session.ErrSessionNotActive):
		writeError(w, http.StatusUnauthorized, "session_not_active", "session not active")
	case errors.Is(err, session.ErrSessionNotOwned):
		writeError(w, http.StatusNotFound, "not_found", "session not found")
	case errors.Is(err, session.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid token")

	case errors.Is(err, twofactor.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, "invalid_two_factor_token", "invalid or expired two-factor token")
	case errors.Is(err, twofactor.ErrInvalidCode):
		writeError(w, http.StatusUnauthorized, "invalid_code", "invalid two-factor code")
	case errors.Is(err, twofactor.ErrChallengeExhausted):
		writeError(w, http.StatusUnauthorized, "challenge_exhausted", "too many invalid codes, log in again")
	case errors.Is(err, twofactor.ErrAlreadyEnabled):
		writeError(w, http.StatusConflict, "conflict", "two-factor authentication is already enabled")
	case errors.Is(err, twofactor.ErrNotEnabled):
		writeError(w, http.StatusBadRequest, "two_factor_not_enabled", "two-factor authentication is not enabled")

	case identity.IsConflict(err):
		writeError(w, http.StatusConflict, "conflict", "an account with this email already exists")
	case identity.IsNotFound(err):
		writeError(w, http.StatusNotFound, "not_found", "not found")
	case identity.IsInvalidInput(err):
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid input")

	case errors.Is(err, keywrap.ErrEnvelope), errors.Is(err, keywrap.ErrUnwrap):
		h.log.Warn(event, "err", err)
		writeError(w, http.StatusBadRequest, "crypto_failure", "unable to process encrypted data")

	case errors.Is(err, audit.ErrInvalidPage):
		writeValidation(w, fieldErrors{"limit": "page must be >= 1 and limit within 1..100"})

	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		h.log.Warn(event, "err", err)
		writeError(w, http.StatusServiceUnavailable, "server_busy", "please retry later")

	default:
		h.log.Error(event, "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
	}
}

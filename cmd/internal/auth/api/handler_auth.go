package authapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"vaultauth/cmd/identity"
	"vaultauth/cmd/internal/audit"
	"vaultauth/cmd/internal/auth/session"
)

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	fields := fieldErrors{}
	checkEmail(fields, "email", req.Email)
	verifier := checkVerifier(fields, "verifier", h.passwords, req.Verifier)
	salt := checkSalt(fields, "saltForKEK", req.SaltForKEK)
	wrapped := checkEnvelope(fields, "wrappedVK", req.WrappedVK)
	if !fields.empty() {
		writeValidation(w, fields)
		return
	}

	ctx := r.Context()
	dev := h.device(r)

	acc, err := h.accounts.CreateAccount(ctx, identity.CreateAccountInput{
		Email:    strings.TrimSpace(req.Email),
		Verifier: verifier,
		Keys:     identity.KeyEnvelope{SaltForKEK: salt, WrappedVK: wrapped},
		Now:      h.now(),
	})
	if err != nil {
		h.record(ctx, dev, "", "", audit.ActionRegister, false, map[string]string{"emailDomain": emailDomain(req.Email)})
		h.writeServiceError(w, "auth.register.fail", err)
		return
	}

	h.record(ctx, dev, acc.ID, "", audit.ActionRegister, true, map[string]string{"emailDomain": emailDomain(acc.Email)})
	writeJSON(w, http.StatusCreated, acc.Profile())
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	fields := fieldErrors{}
	checkEmail(fields, "email", req.Email)
	checkPassword(fields, "password", req.Password)
	if !fields.empty() {
		writeValidation(w, fields)
		return
	}

	ctx := r.Context()
	dev := h.device(r)

	acc, err := h.accounts.GetAccountByEmail(ctx, req.Email)
	if err != nil {
		if !identity.IsNotFound(err) {
			h.writeServiceError(w, "auth.login.lookup.fail", err)
			return
		}
		// Unknown accounts spend the same derivation work as known ones.
		_ = h.kdf.Do(ctx, func() { h.passwords.DummyCheck(req.Password) })
		h.recordLoginFailure(ctx, dev, "", req.Email, "invalid_credentials")
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid email or password")
		return
	}

	var ok bool
	if err := h.kdf.Do(ctx, func() { ok = h.passwords.Check(req.Password, acc.Verifier) }); err != nil {
		h.writeServiceError(w, "auth.login.kdf.fail", err)
		return
	}
	if !ok {
		h.recordLoginFailure(ctx, dev, acc.ID, req.Email, "invalid_credentials")
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid email or password")
		return
	}

	if acc.TwoFactor.Enabled {
		ch, err := h.twoFactor.IssueChallenge(ctx, acc.ID)
		if err != nil {
			h.writeServiceError(w, "auth.login.challenge.fail", err)
			return
		}
		h.record(ctx, dev, acc.ID, "", audit.ActionLoginChallenge, true, map[string]string{"emailDomain": emailDomain(acc.Email)})
		writeJSON(w, http.StatusOK, challengeResponse{
			TwoFactorRequired: true,
			ChallengeToken:    ch.Token,
			ExpiresAt:         ch.ExpiresAt,
		})
		return
	}

	issued, err := h.sessions.IssueSession(ctx, h.now(), acc.ID, dev)
	if err != nil {
		h.writeServiceError(w, "auth.login.issue_session.fail", err)
		return
	}

	csrf, err := h.setSessionCookies(w, issued.RefreshToken, issued.RefreshExp)
	if err != nil {
		h.writeServiceError(w, "auth.login.web_cookie.fail", err)
		return
	}

	h.record(ctx, dev, acc.ID, issued.SessionID, audit.ActionLoginSuccess, true, map[string]string{"method": "password"})
	writeJSON(w, http.StatusOK, toLoginResponse(acc, issued, csrf))
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	refreshToken, ok := h.refreshTokenFromCookie(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "session_not_active", "refresh token not found")
		return
	}
	if !h.csrfDoubleSubmitValid(r) {
		writeError(w, http.StatusForbidden, "csrf_invalid", "missing or invalid csrf token")
		return
	}

	ctx := r.Context()
	dev := h.device(r)

	issued, userID, err := h.sessions.RotateRefresh(ctx, h.now(), refreshToken, dev)
	if err != nil {
		details := map[string]string{"reason": "session_not_active"}
		switch {
		case errors.Is(err, session.ErrRefreshReuseDetected):
			details = map[string]string{"reason": "reuse_detected", "reuseDetected": "true"}
		case errors.Is(err, session.ErrRefreshRaced):
			details = map[string]string{"reason": "concurrent_refresh"}
		}
		// The winner of a concurrent refresh already set fresh cookies.
		if errors.Is(err, session.ErrSessionNotActive) && !errors.Is(err, session.ErrRefreshRaced) {
			h.clearSessionCookies(w)
		}
		h.record(ctx, dev, userID, "", audit.ActionTokenRefresh, false, details)
		h.writeServiceError(w, "auth.refresh.fail", err)
		return
	}

	csrf, err := h.setSessionCookies(w, issued.RefreshToken, issued.RefreshExp)
	if err != nil {
		h.writeServiceError(w, "auth.refresh.web_cookie.fail", err)
		return
	}

	h.record(ctx, dev, userID, issued.SessionID, audit.ActionTokenRefresh, true, nil)
	writeJSON(w, http.StatusOK, refreshResponse{
		SessionID:       issued.SessionID,
		AccessToken:     issued.AccessToken,
		AccessExpiresAt: issued.AccessExp,
		CSRFToken:       csrf,
	})
}

// handleLogout revokes the session behind the refresh cookie. It is idempotent:
// a missing, unknown or already revoked secret still answers 204.
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	refreshToken, ok := h.refreshTokenFromCookie(r)
	if ok && !h.csrfDoubleSubmitValid(r) {
		writeError(w, http.StatusForbidden, "csrf_invalid", "missing or invalid csrf token")
		return
	}

	ctx := r.Context()
	dev := h.device(r)

	if ok {
		// The revoke must land even if the client hangs up mid-request.
		row, revoked, err := h.sessions.RevokeByRefresh(context.WithoutCancel(ctx), h.now(), refreshToken)
		if err != nil {
			h.writeServiceError(w, "auth.logout.fail", err)
			return
		}
		if revoked {
			h.record(ctx, dev, row.UserID, row.ID, audit.ActionLogout, true, nil)
		}
	}

	h.clearSessionCookies(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)

	acc, err := h.accounts.GetAccountByID(r.Context(), claims.UserID)
	if err != nil {
		if identity.IsNotFound(err) {
			writeError(w, http.StatusUnauthorized, "unauthorized", "account not found")
			return
		}
		h.writeServiceError(w, "auth.me.fail", err)
		return
	}

	writeJSON(w, http.StatusOK, meResponse{User: acc.Profile()})
}

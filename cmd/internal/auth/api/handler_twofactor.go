package authapi

import (
	"errors"
	"net/http"

	"vaultauth/cmd/internal/audit"
	"vaultauth/cmd/internal/auth/twofactor"
)

func (h *Handler) handleTwoFactorGenerate(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)

	en, err := h.twoFactor.BeginEnroll(r.Context(), claims.UserID)
	if err != nil {
		h.writeServiceError(w, "auth.2fa.generate.fail", err)
		return
	}

	writeJSON(w, http.StatusOK, twoFactorGenerateResponse{
		Secret:      en.Secret,
		OTPAuthURL:  en.OTPAuthURL,
		EnrollToken: en.EnrollToken,
		ExpiresAt:   en.ExpiresAt,
	})
}

func (h *Handler) handleTwoFactorEnable(w http.ResponseWriter, r *http.Request) {
	var req twoFactorEnableRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	fields := fieldErrors{}
	checkToken(fields, "enrollToken", req.EnrollToken)
	checkCode(fields, "code", req.Code)
	clientSecret := checkEnvelope(fields, "encryptedSecret", req.EncryptedSecret)
	if !fields.empty() {
		writeValidation(w, fields)
		return
	}

	claims := claimsFrom(r)
	ctx := r.Context()
	dev := h.device(r)

	if err := h.twoFactor.CompleteEnroll(ctx, claims.UserID, req.EnrollToken, req.Code, clientSecret); err != nil {
		h.record(ctx, dev, claims.UserID, claims.SessionID, audit.Action2FAEnable, false, map[string]string{"reason": twoFactorReason(err)})
		h.writeServiceError(w, "auth.2fa.enable.fail", err)
		return
	}

	h.record(ctx, dev, claims.UserID, claims.SessionID, audit.Action2FAEnable, true, nil)
	writeJSON(w, http.StatusOK, messageResponse{Message: "two-factor authentication enabled"})
}

// handleTwoFactorVerify completes a login that was answered with a challenge.
func (h *Handler) handleTwoFactorVerify(w http.ResponseWriter, r *http.Request) {
	var req twoFactorVerifyRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	fields := fieldErrors{}
	checkToken(fields, "challengeToken", req.ChallengeToken)
	checkCode(fields, "code", req.Code)
	if !fields.empty() {
		writeValidation(w, fields)
		return
	}

	ctx := r.Context()
	dev := h.device(r)

	acc, issued, err := h.twoFactor.CompleteChallenge(ctx, req.ChallengeToken, req.Code, dev)
	if err != nil {
		h.record(ctx, dev, acc.ID, "", audit.Action2FAVerify, false, map[string]string{"reason": twoFactorReason(err)})
		h.writeServiceError(w, "auth.2fa.verify.fail", err)
		return
	}

	csrf, err := h.setSessionCookies(w, issued.RefreshToken, issued.RefreshExp)
	if err != nil {
		h.writeServiceError(w, "auth.2fa.verify.web_cookie.fail", err)
		return
	}

	h.record(ctx, dev, acc.ID, issued.SessionID, audit.Action2FAVerify, true, nil)
	h.record(ctx, dev, acc.ID, issued.SessionID, audit.ActionLoginSuccess, true, map[string]string{"method": "totp"})
	writeJSON(w, http.StatusOK, toLoginResponse(acc, issued, csrf))
}

func (h *Handler) handleTwoFactorDisable(w http.ResponseWriter, r *http.Request) {
	var req twoFactorDisableRequest
	if err := decodeOptionalJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}
	if req.Code != "" {
		fields := fieldErrors{}
		checkCode(fields, "code", req.Code)
		if !fields.empty() {
			writeValidation(w, fields)
			return
		}
	}

	claims := claimsFrom(r)
	ctx := r.Context()
	dev := h.device(r)

	if err := h.twoFactor.Disable(ctx, claims.UserID, req.Code); err != nil {
		h.record(ctx, dev, claims.UserID, claims.SessionID, audit.Action2FADisable, false, map[string]string{"reason": twoFactorReason(err)})
		h.writeServiceError(w, "auth.2fa.disable.fail", err)
		return
	}

	h.record(ctx, dev, claims.UserID, claims.SessionID, audit.Action2FADisable, true, nil)
	writeJSON(w, http.StatusOK, messageResponse{Message: "two-factor authentication disabled"})
}

func twoFactorReason(err error) string {
	switch {
	case errors.Is(err, twofactor.ErrInvalidToken):
		return "invalid_token"
	case errors.Is(err, twofactor.ErrInvalidCode):
		return "invalid_code"
	case errors.Is(err, twofactor.ErrChallengeExhausted):
		return "challenge_exhausted"
	case errors.Is(err, twofactor.ErrAlreadyEnabled):
		return "already_enabled"
	case errors.Is(err, twofactor.ErrNotEnabled):
		return "not_enabled"
	default:
		return "error"
	}
}

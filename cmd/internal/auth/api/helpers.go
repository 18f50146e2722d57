package authapi

import (
	"encoding/base64"

	"vaultauth/cmd/identity"
	"vaultauth/cmd/internal/auth/session"
)

func toLoginResponse(acc identity.Account, issued session.Issued, csrf string) loginResponse {
	return loginResponse{
		User:            acc.Profile(),
		SessionID:       issued.SessionID,
		AccessToken:     issued.AccessToken,
		AccessExpiresAt: issued.AccessExp,
		CSRFToken:       csrf,
		SaltForKEK:      base64.StdEncoding.EncodeToString(acc.Keys.SaltForKEK),
		WrappedVK:       acc.Keys.WrappedVK,
	}
}

func toSessionResponse(in session.Info) sessionResponse {
	return sessionResponse{
		ID:         in.ID,
		CreatedAt:  in.CreatedAt,
		LastUsedAt: in.LastUsedAt,
		ExpiresAt:  in.ExpiresAt,
		UserAgent:  in.UserAgent,
		IP:         in.IP,
		IsCurrent:  in.IsCurrent,
	}
}

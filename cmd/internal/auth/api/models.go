package authapi

import (
	"time"

	"vaultauth/cmd/identity"
	"vaultauth/cmd/security/keywrap"
)

// envelopeInput is a wrapped key as sent by clients, each part standard base64.
type envelopeInput struct {
	Ciphertext string `json:"ciphertext"`
	IV         string `json:"iv"`
	Tag        string `json:"tag"`
}

type registerRequest struct {
	Email      string        `json:"email"`
	Verifier   string        `json:"verifier"`
	SaltForKEK string        `json:"saltForKEK"`
	WrappedVK  envelopeInput `json:"wrappedVK"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type revokeAllRequest struct {
	// ExceptCurrent defaults to true when omitted.
	ExceptCurrent *bool `json:"exceptCurrent"`
}

type twoFactorEnableRequest struct {
	EnrollToken     string        `json:"enrollToken"`
	Code            string        `json:"code"`
	EncryptedSecret envelopeInput `json:"encryptedSecret"`
}

type twoFactorVerifyRequest struct {
	ChallengeToken string `json:"challengeToken"`
	Code           string `json:"code"`
}

type twoFactorDisableRequest struct {
	Code string `json:"code"`
}

// loginResponse carries everything a client needs to unlock its vault:
// the access token plus the KEK salt and the wrapped vault key.
type loginResponse struct {
	User            identity.PublicProfile `json:"user"`
	SessionID       string                 `json:"sessionId"`
	AccessToken     string                 `json:"accessToken"`
	AccessExpiresAt time.Time              `json:"accessExpiresAt"`
	CSRFToken       string                 `json:"csrfToken"`
	SaltForKEK      string                 `json:"saltForKEK"`
	WrappedVK       keywrap.Envelope       `json:"wrappedVK"`
}

type challengeResponse struct {
	TwoFactorRequired bool      `json:"twoFactorRequired"`
	ChallengeToken    string    `json:"challengeToken"`
	ExpiresAt         time.Time `json:"expiresAt"`
}

type refreshResponse struct {
	SessionID       string    `json:"sessionId"`
	AccessToken     string    `json:"accessToken"`
	AccessExpiresAt time.Time `json:"accessExpiresAt"`
	CSRFToken       string    `json:"csrfToken"`
}

type sessionResponse struct {
	ID         string     `json:"id"`
	CreatedAt  time.Time  `json:"createdAt"`
	LastUsedAt *time.Time `json:"lastUsedAt,omitempty"`
	ExpiresAt  time.Time  `json:"expiresAt"`
	UserAgent  string     `json:"userAgent,omitempty"`
	IP         string     `json:"ip,omitempty"`
	IsCurrent  bool       `json:"isCurrent"`
}

type sessionsResponse struct {
	Sessions []sessionResponse `json:"sessions"`
}

type revokeAllResponse struct {
	Revoked int64 `json:"revoked"`
}

type twoFactorGenerateResponse struct {
	Secret      string    `json:"secret"`
	OTPAuthURL  string    `json:"otpAuthUrl"`
	EnrollToken string    `json:"enrollToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type meResponse struct {
	User identity.PublicProfile `json:"user"`
}

package twofactor

import (
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"vaultauth/cmd/security/keywrap"
)

const (
	PurposeEnroll    = "2fa-enroll"
	PurposeChallenge = "2fa-verification"
)

type tokenClaims struct {
	Purpose string `json:"purpose"`
	// Sealed is the enroll seed wrapped under the seal key (enroll tokens only).
	Sealed string `json:"sec,omitempty"`
	jwt.RegisteredClaims
}

type tokenCodec struct {
	issuer string
	secret []byte
}

func (c tokenCodec) sign(now time.Time, subject, purpose string, ttl time.Duration, sealed string) (string, time.Time, error) {
	exp := now.Add(ttl)
	claims := tokenClaims{
		Purpose: purpose,
		Sealed:  sealed,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   subject,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// parse verifies signature, algorithm, issuer, expiry and purpose.
// Every failure collapses to ErrInvalidToken.
func (c tokenCodec) parse(now time.Time, raw, purpose string) (*tokenClaims, error) {
	if raw == "" || len(raw) > 4096 {
		return nil, ErrInvalidToken
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)

	claims := &tokenClaims{}
	tok, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	})
	if err != nil || !tok.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Purpose != purpose || claims.Subject == "" || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func sealForToken(key []byte, accountID string, secret []byte) (string, error) {
	env, err := keywrap.WrapAAD(key, secret, enrollAAD(accountID))
	if err != nil {
		return "", err
	}
	b, err := json.Marshal(env)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func openFromToken(key []byte, accountID, sealed string) ([]byte, error) {
	b, err := base64.RawURLEncoding.DecodeString(sealed)
	if err != nil {
		return nil, ErrInvalidToken
	}
	var env keywrap.Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, ErrInvalidToken
	}
	secret, err := keywrap.UnwrapAAD(key, env, enrollAAD(accountID))
	if err != nil {
		return nil, ErrInvalidToken
	}
	return secret, nil
}

func enrollAAD(accountID string) []byte { return []byte("2fa-enroll:" + accountID) }

func sealAAD(accountID string) []byte { return []byte("2fa-seed:" + accountID) }

package authapi

import (
	"encoding/base64"
	"errors"
	"strings"

	"vaultauth/cmd/identity"
	"vaultauth/cmd/security/keywrap"
	"vaultauth/cmd/security/password"
)

// fieldErrors maps a JSON field path to a human-readable problem.
type fieldErrors map[string]string

func (f fieldErrors) add(field, msg string) {
	if _, ok := f[field]; !ok {
		f[field] = msg
	}
}

func (f fieldErrors) empty() bool { return len(f) == 0 }

const (
	minKEKSaltBytes  = 16
	maxKEKSaltBytes  = 64
	maxPasswordBytes = 4096
	maxTokenLength   = 4096
)

func checkEmail(f fieldErrors, field, email string) {
	switch {
	case strings.TrimSpace(email) == "":
		f.add(field, "is required")
	case !identity.ValidEmail(email):
		f.add(field, "must be a valid email address")
	}
}

func checkPassword(f fieldErrors, field, pw string) {
	switch {
	case pw == "":
		f.add(field, "is required")
	case len(pw) > maxPasswordBytes:
		f.add(field, "is too long")
	}
}

func checkVerifier(f fieldErrors, field string, cfg password.Config, encoded string) string {
	if strings.TrimSpace(encoded) == "" {
		f.add(field, "is required")
		return ""
	}
	canonical, err := cfg.AcceptRecord(encoded)
	switch {
	case errors.Is(err, password.ErrWeakRecord):
		f.add(field, "iteration count is below the minimum")
	case err != nil:
		f.add(field, "must be algorithm$iterations$salt$hash")
	}
	return canonical
}

func checkSalt(f fieldErrors, field, raw string) []byte {
	if raw == "" {
		f.add(field, "is required")
		return nil
	}
	b, err := decodeStdB64(raw)
	if err != nil {
		f.add(field, "must be base64")
		return nil
	}
	if len(b) < minKEKSaltBytes || len(b) > maxKEKSaltBytes {
		f.add(field, "must decode to 16..64 bytes")
		return nil
	}
	return b
}

func checkEnvelope(f fieldErrors, field string, in envelopeInput) keywrap.Envelope {
	var env keywrap.Envelope
	var err error

	if env.Ciphertext, err = decodeStdB64(in.Ciphertext); err != nil || len(env.Ciphertext) == 0 {
		f.add(field+".ciphertext", "must be non-empty base64")
	}
	if env.IV, err = decodeStdB64(in.IV); err != nil || len(env.IV) != keywrap.IVSize {
		f.add(field+".iv", "must be 12 bytes of base64")
	}
	if env.Tag, err = decodeStdB64(in.Tag); err != nil || len(env.Tag) != keywrap.TagSize {
		f.add(field+".tag", "must be 16 bytes of base64")
	}
	return env
}

func checkCode(f fieldErrors, field, code string) {
	if len(code) != 6 || strings.Trim(code, "0123456789") != "" {
		f.add(field, "must be 6 digits")
	}
}

func checkToken(f fieldErrors, field, tok string) {
	switch {
	case strings.TrimSpace(tok) == "":
		f.add(field, "is required")
	case len(tok) > maxTokenLength:
		f.add(field, "is too long")
	}
}

func decodeStdB64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.RawStdEncoding.DecodeString(s)
}

func emailDomain(email string) string {
	at := strings.LastIndexByte(email, '@')
	if at < 0 || at == len(email)-1 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(email[at+1:]))
}

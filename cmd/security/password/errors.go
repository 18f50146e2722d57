package password

import "errors"

// Public, stable errors for callers.
var (
	ErrPasswordTooShort = errors.New("password too short")
	ErrPasswordTooLong  = errors.New("password too long")
	ErrWeakPassword     = errors.New("weak password")
	ErrInvalidRecord    = errors.New("invalid verifier record")
	ErrWeakRecord       = errors.New("verifier record parameters below policy")
)

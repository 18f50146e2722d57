package twofactor

import "errors"

var (
	// ErrInvalidToken covers malformed, expired, foreign, wrong-purpose and already used enroll/challenge tokens.
	ErrInvalidToken = errors.New("invalid or expired two-factor token")

	// ErrInvalidCode is returned for a wrong, malformed or replayed TOTP code.
	ErrInvalidCode = errors.New("invalid two-factor code")

	// ErrChallengeExhausted is returned once a challenge has seen too many wrong codes.
	ErrChallengeExhausted = errors.New("two-factor challenge exhausted")

	// ErrAlreadyEnabled is returned when enrolling an account that already has 2FA.
	ErrAlreadyEnabled = errors.New("two-factor already enabled")

	// ErrNotEnabled is returned when an operation needs 2FA but the account has none.
	ErrNotEnabled = errors.New("two-factor not enabled")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid two-factor config")
)

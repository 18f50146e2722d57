package session

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotActive is the umbrella for every refresh rejection.
	ErrSessionNotActive = errors.New("session not active")

	// ErrSessionNotFound is returned when a refresh secret does not match any session.
	ErrSessionNotFound = fmt.Errorf("%w: not found", ErrSessionNotActive)

	// ErrSessionExpired is returned when the session is expired.
	ErrSessionExpired = fmt.Errorf("%w: expired", ErrSessionNotActive)

	// ErrSessionRevoked is returned when the session has been revoked.
	ErrSessionRevoked = fmt.Errorf("%w: revoked", ErrSessionNotActive)

	// ErrRefreshRaced is returned when a secret rotated within ReuseGrace is
	// presented again. The caller lost a concurrent refresh; no sessions are revoked.
	ErrRefreshRaced = fmt.Errorf("%w: refresh raced a concurrent rotation", ErrSessionNotActive)

	// ErrRefreshReuseDetected is returned when a rotated (replaced) refresh secret is presented again.
	ErrRefreshReuseDetected = fmt.Errorf("%w: refresh token reuse detected", ErrSessionNotActive)

	// ErrSessionNotOwned is returned when a session id is unknown or belongs to another account.
	// The two cases are deliberately indistinguishable.
	ErrSessionNotOwned = errors.New("session not found")

	// ErrInvalidToken is returned when an access token fails verification or validation.
	ErrInvalidToken = errors.New("invalid token")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid config")
)

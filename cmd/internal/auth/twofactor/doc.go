// Package twofactor coordinates TOTP enrollment and the second login step.
//
// Enrollment is two requests: BeginEnroll hands the client a fresh seed and a
// short-lived enroll token that carries the same seed sealed under the
// server key; CompleteEnroll proves possession with a current code and
// stores two copies of the seed. The client copy is wrapped under the
// client's vault key and is opaque here. The server copy is sealed with
// AES-256-GCM under VAULT_TWO_FACTOR_KEY, bound to the account id, and is
// the one used to check codes at login.
//
// Login for an account with 2FA enabled never yields tokens directly: the
// password step returns a challenge token, and only CompleteChallenge with a
// valid code issues a session. Challenge tokens are single use, accepted
// codes cannot be replayed within their window, and a challenge is burned
// after MaxAttempts wrong codes.
package twofactor

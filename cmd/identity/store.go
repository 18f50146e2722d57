package identity

import (
	"context"
	"strings"
	"time"

	"vaultauth/cmd/security/keywrap"
)

// Account is a vault owner.
type Account struct {
	ID        string
	Email     string
	EmailNorm string

	// Verifier is the encoded verifier record (<alg>$<iter>$<salt>$<hash>).
	Verifier string

	Keys      KeyEnvelope
	TwoFactor TwoFactor

	CreatedAt time.Time
	UpdatedAt time.Time
}

// KeyEnvelope holds what a client needs to recover its vault key:
// the salt for deriving the KEK and the vault key wrapped under that KEK.
type KeyEnvelope struct {
	SaltForKEK []byte
	WrappedVK  keywrap.Envelope
}

// TwoFactor is the TOTP state of an account.
// When Enabled is true both secret copies are present.
type TwoFactor struct {
	Enabled bool

	// ClientSecret is the TOTP seed wrapped by the client under its vault key.
	ClientSecret *keywrap.Envelope
	// ServerSecret is the TOTP seed sealed under the server's 2FA key, bound to the account id.
	ServerSecret *keywrap.Envelope

	EnabledAt *time.Time
}

// PublicProfile is the part of an account safe to return to its owner.
type PublicProfile struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	TwoFactorEnabled bool      `json:"twoFactorEnabled"`
	CreatedAt        time.Time `json:"createdAt"`
}

// Profile returns the public view of a.
func (a Account) Profile() PublicProfile {
	return PublicProfile{
		ID:               a.ID,
		Email:            a.Email,
		TwoFactorEnabled: a.TwoFactor.Enabled,
		CreatedAt:        a.CreatedAt,
	}
}

// CreateAccountInput describes a registration.
type CreateAccountInput struct {
	Email    string
	Verifier string
	Keys     KeyEnvelope
	Now      time.Time
}

// Store is the account persistence boundary.
type Store interface {
	// CreateAccount inserts a new account.
	// Returns a conflict with Field "email" when the normalized email is taken.
	CreateAccount(ctx context.Context, in CreateAccountInput) (Account, error)

	GetAccountByEmail(ctx context.Context, email string) (Account, error)
	GetAccountByID(ctx context.Context, id string) (Account, error)

	// EnableTwoFactor stores both secret copies if 2FA is currently disabled.
	// Returns ErrConflict if it is already enabled.
	EnableTwoFactor(ctx context.Context, id string, client, server keywrap.Envelope, now time.Time) error

	// DisableTwoFactor clears the secrets if 2FA is currently enabled.
	// Returns ErrNotActive if it is not enabled.
	DisableTwoFactor(ctx context.Context, id string, now time.Time) error
}

// validateCreate is shared by every Store implementation.
func validateCreate(op string, in CreateAccountInput) (CreateAccountInput, error) {
	in.Email = strings.TrimSpace(in.Email)
	if !ValidEmail(in.Email) {
		return in, opError(op, ErrInvalidInput, "invalid email")
	}
	if in.Verifier == "" {
		return in, opError(op, ErrInvalidInput, "verifier is required")
	}
	if len(in.Keys.SaltForKEK) == 0 {
		return in, opError(op, ErrInvalidInput, "kek salt is required")
	}
	if err := in.Keys.WrappedVK.Validate(); err != nil {
		return in, opError(op, ErrInvalidInput, "wrapped vault key is malformed")
	}
	if in.Now.IsZero() {
		in.Now = time.Now().UTC()
	}
	return in, nil
}

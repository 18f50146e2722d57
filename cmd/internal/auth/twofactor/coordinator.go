package twofactor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"vaultauth/cmd/identity"
	"vaultauth/cmd/internal/auth/session"
	"vaultauth/cmd/security/keywrap"
)

// Accounts is the subset of identity.Store the coordinator needs.
type Accounts interface {
	GetAccountByID(ctx context.Context, id string) (identity.Account, error)
	EnableTwoFactor(ctx context.Context, id string, client, server keywrap.Envelope, now time.Time) error
	DisableTwoFactor(ctx context.Context, id string, now time.Time) error
}

// Sessions issues the session that completes a two-factor login.
type Sessions interface {
	IssueSession(ctx context.Context, now time.Time, userID string, dev session.DeviceContext) (session.Issued, error)
}

// Coordinator runs TOTP enrollment, login challenges and disable.
type Coordinator struct {
	cfg      Config
	tokens   tokenCodec
	accounts Accounts
	sessions Sessions
	guard    ReplayGuard
	now      func() time.Time
}

// Option customizes a Coordinator.
type Option func(*Coordinator)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCoordinator validates cfg and wires the collaborators.
// A nil guard falls back to an in-process MemoryGuard.
func NewCoordinator(cfg Config, accounts Accounts, sessions Sessions, guard ReplayGuard, opts ...Option) (*Coordinator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if accounts == nil || sessions == nil {
		return nil, fmt.Errorf("%w: accounts and sessions are required", ErrConfig)
	}
	if guard == nil {
		guard = NewMemoryGuard()
	}

	c := &Coordinator{
		cfg:      cfg,
		tokens:   tokenCodec{issuer: cfg.Issuer, secret: cfg.TokenSecret},
		accounts: accounts,
		sessions: sessions,
		guard:    guard,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Enrollment is handed to the client to set up its authenticator.
type Enrollment struct {
	Secret      string
	OTPAuthURL  string
	EnrollToken string
	ExpiresAt   time.Time
}

// Challenge is returned by a password login on a 2FA account instead of session tokens.
type Challenge struct {
	Token     string
	ExpiresAt time.Time
}

// BeginEnroll generates a fresh TOTP secret. Nothing is persisted; the secret
// travels sealed inside the enroll token until CompleteEnroll.
func (c *Coordinator) BeginEnroll(ctx context.Context, accountID string) (Enrollment, error) {
	acc, err := c.accounts.GetAccountByID(ctx, accountID)
	if err != nil {
		return Enrollment{}, err
	}
	if acc.TwoFactor.Enabled {
		return Enrollment{}, ErrAlreadyEnabled
	}

	key, err := c.generateKey(acc.Email)
	if err != nil {
		return Enrollment{}, fmt.Errorf("generate totp secret: %w", err)
	}

	sealed, err := sealForToken(c.cfg.SealKey, acc.ID, []byte(key.Secret()))
	if err != nil {
		return Enrollment{}, fmt.Errorf("seal enroll secret: %w", err)
	}

	tok, exp, err := c.tokens.sign(c.now(), acc.ID, PurposeEnroll, c.cfg.EnrollTTL, sealed)
	if err != nil {
		return Enrollment{}, fmt.Errorf("sign enroll token: %w", err)
	}

	return Enrollment{
		Secret:      key.Secret(),
		OTPAuthURL:  key.URL(),
		EnrollToken: tok,
		ExpiresAt:   exp,
	}, nil
}

// CompleteEnroll checks proof of possession and turns 2FA on.
//
// clientSecret is the TOTP secret wrapped by the client under its vault key; it
// is stored as-is. The server keeps its own sealed copy for login verification.
func (c *Coordinator) CompleteEnroll(ctx context.Context, accountID, enrollToken, code string, clientSecret keywrap.Envelope) error {
	now := c.now()

	claims, err := c.tokens.parse(now, enrollToken, PurposeEnroll)
	if err != nil {
		return err
	}
	if claims.Subject != accountID || claims.Sealed == "" {
		return ErrInvalidToken
	}
	if err := clientSecret.Validate(); err != nil {
		return fmt.Errorf("%w: %v", identity.ErrInvalidInput, err)
	}

	attemptsKey := "enroll-fail:" + claims.ID
	if n, err := c.guard.Count(ctx, attemptsKey); err != nil {
		return err
	} else if n >= int64(c.cfg.MaxAttempts) {
		return ErrChallengeExhausted
	}

	secret, err := openFromToken(c.cfg.SealKey, accountID, claims.Sealed)
	if err != nil {
		return err
	}
	defer zero(secret)

	if _, ok := c.matchStep(string(secret), code, now); !ok {
		if _, err := c.guard.Incr(ctx, attemptsKey, c.cfg.EnrollTTL); err != nil {
			return err
		}
		return ErrInvalidCode
	}

	ok, err := c.guard.Claim(ctx, "enroll:"+claims.ID, c.cfg.EnrollTTL)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidToken
	}

	server, err := keywrap.WrapAAD(c.cfg.SealKey, secret, sealAAD(accountID))
	if err != nil {
		return fmt.Errorf("seal totp secret: %w", err)
	}

	if err := c.accounts.EnableTwoFactor(ctx, accountID, clientSecret, server, now); err != nil {
		if identity.IsConflict(err) {
			return ErrAlreadyEnabled
		}
		return err
	}
	return nil
}

// IssueChallenge returns a short-lived token that CompleteChallenge exchanges for a session.
func (c *Coordinator) IssueChallenge(_ context.Context, accountID string) (Challenge, error) {
	if accountID == "" {
		return Challenge{}, ErrInvalidToken
	}
	tok, exp, err := c.tokens.sign(c.now(), accountID, PurposeChallenge, c.cfg.ChallengeTTL, "")
	if err != nil {
		return Challenge{}, fmt.Errorf("sign challenge token: %w", err)
	}
	return Challenge{Token: tok, ExpiresAt: exp}, nil
}

// CompleteChallenge verifies code against the server-sealed secret and, only
// on success, issues a session. A challenge completes at most once and is
// burned after MaxAttempts wrong codes. Each TOTP step is accepted once per account.
func (c *Coordinator) CompleteChallenge(ctx context.Context, challengeToken, code string, dev session.DeviceContext) (identity.Account, session.Issued, error) {
	now := c.now()

	claims, err := c.tokens.parse(now, challengeToken, PurposeChallenge)
	if err != nil {
		return identity.Account{}, session.Issued{}, err
	}

	attemptsKey := "challenge-fail:" + claims.ID
	n, err := c.guard.Count(ctx, attemptsKey)
	if err != nil {
		return identity.Account{}, session.Issued{}, err
	}
	if n >= int64(c.cfg.MaxAttempts) {
		return identity.Account{}, session.Issued{}, ErrChallengeExhausted
	}

	acc, err := c.accounts.GetAccountByID(ctx, claims.Subject)
	if err != nil {
		if identity.IsNotFound(err) {
			return identity.Account{}, session.Issued{}, ErrInvalidToken
		}
		return identity.Account{}, session.Issued{}, err
	}
	if !acc.TwoFactor.Enabled || acc.TwoFactor.ServerSecret == nil {
		return identity.Account{}, session.Issued{}, ErrNotEnabled
	}

	step, ok, err := c.verifyStored(acc, code, now)
	if err != nil {
		return identity.Account{}, session.Issued{}, err
	}
	if !ok {
		n, err := c.guard.Incr(ctx, attemptsKey, c.cfg.ChallengeTTL)
		if err != nil {
			return identity.Account{}, session.Issued{}, err
		}
		if n >= int64(c.cfg.MaxAttempts) {
			return identity.Account{}, session.Issued{}, ErrChallengeExhausted
		}
		return identity.Account{}, session.Issued{}, ErrInvalidCode
	}

	claimed, err := c.guard.Claim(ctx, "challenge:"+claims.ID, c.cfg.ChallengeTTL)
	if err != nil {
		return identity.Account{}, session.Issued{}, err
	}
	if !claimed {
		return identity.Account{}, session.Issued{}, ErrInvalidToken
	}

	if err := c.claimStep(ctx, acc.ID, step); err != nil {
		return identity.Account{}, session.Issued{}, err
	}

	issued, err := c.sessions.IssueSession(ctx, now, acc.ID, dev)
	if err != nil {
		return identity.Account{}, session.Issued{}, err
	}
	return acc, issued, nil
}

// Disable turns 2FA off for an authenticated caller.
func (c *Coordinator) Disable(ctx context.Context, accountID, code string) error {
	now := c.now()

	acc, err := c.accounts.GetAccountByID(ctx, accountID)
	if err != nil {
		return err
	}
	if !acc.TwoFactor.Enabled {
		return ErrNotEnabled
	}

	if c.cfg.RequireCodeToDisable {
		step, ok, err := c.verifyStored(acc, code, now)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidCode
		}
		if err := c.claimStep(ctx, acc.ID, step); err != nil {
			return err
		}
	}

	if err := c.accounts.DisableTwoFactor(ctx, accountID, now); err != nil {
		if identity.IsNotActive(err) {
			return ErrNotEnabled
		}
		return err
	}
	return nil
}

// verifyStored opens the server-sealed secret, checks code and wipes the plaintext.
func (c *Coordinator) verifyStored(acc identity.Account, code string, now time.Time) (uint64, bool, error) {
	if acc.TwoFactor.ServerSecret == nil {
		return 0, false, ErrNotEnabled
	}
	secret, err := keywrap.UnwrapAAD(c.cfg.SealKey, *acc.TwoFactor.ServerSecret, sealAAD(acc.ID))
	if err != nil {
		return 0, false, fmt.Errorf("open totp secret: %w", err)
	}
	defer zero(secret)

	step, ok := c.matchStep(string(secret), code, now)
	return step, ok, nil
}

func (c *Coordinator) claimStep(ctx context.Context, accountID string, step uint64) error {
	window := time.Duration(2*c.cfg.Skew+1) * time.Duration(c.cfg.Period) * time.Second
	ok, err := c.guard.Claim(ctx, "step:"+accountID+":"+strconv.FormatUint(step, 10), window)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidCode
	}
	return nil
}

// IsUserError reports whether err is a client mistake rather than a backend failure.
func IsUserError(err error) bool {
	return errors.Is(err, ErrInvalidToken) ||
		errors.Is(err, ErrInvalidCode) ||
		errors.Is(err, ErrChallengeExhausted) ||
		errors.Is(err, ErrAlreadyEnabled) ||
		errors.Is(err, ErrNotEnabled)
}

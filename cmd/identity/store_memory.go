package identity

import (
	"context"
	"sync"
	"time"

	"vaultauth/cmd/identity/ids"
	"vaultauth/cmd/security/keywrap"
)

// MemoryStore is an in-process Store for tests and single-node development.
type MemoryStore struct {
	mu      sync.RWMutex
	byID    map[string]Account
	byEmail map[string]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[string]Account),
		byEmail: make(map[string]string),
	}
}

func (s *MemoryStore) CreateAccount(ctx context.Context, in CreateAccountInput) (Account, error) {
	const op = "identity.CreateAccount"

	if err := ctx.Err(); err != nil {
		return Account{}, err
	}
	in, err := validateCreate(op, in)
	if err != nil {
		return Account{}, err
	}

	id, err := ids.New(in.Now)
	if err != nil {
		return Account{}, err
	}

	acc := Account{
		ID:        id,
		Email:     in.Email,
		EmailNorm: NormalizeEmail(in.Email),
		Verifier:  in.Verifier,
		Keys:      cloneKeys(in.Keys),
		CreatedAt: in.Now,
		UpdatedAt: in.Now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byEmail[acc.EmailNorm]; taken {
		return Account{}, conflictOn(op, "email")
	}
	s.byID[acc.ID] = acc
	s.byEmail[acc.EmailNorm] = acc.ID

	return cloneAccount(acc), nil
}

func (s *MemoryStore) GetAccountByEmail(ctx context.Context, email string) (Account, error) {
	const op = "identity.GetAccountByEmail"

	if err := ctx.Err(); err != nil {
		return Account{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[NormalizeEmail(email)]
	if !ok {
		return Account{}, accountNotFound(op)
	}
	return cloneAccount(s.byID[id]), nil
}

func (s *MemoryStore) GetAccountByID(ctx context.Context, id string) (Account, error) {
	const op = "identity.GetAccountByID"

	if err := ctx.Err(); err != nil {
		return Account{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, ok := s.byID[id]
	if !ok {
		return Account{}, accountNotFound(op)
	}
	return cloneAccount(acc), nil
}

func (s *MemoryStore) EnableTwoFactor(ctx context.Context, id string, client, server keywrap.Envelope, now time.Time) error {
	const op = "identity.EnableTwoFactor"

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.byID[id]
	if !ok {
		return accountNotFound(op)
	}
	if acc.TwoFactor.Enabled {
		return opError(op, ErrConflict, "two-factor already enabled")
	}

	c, sv := cloneEnvelope(client), cloneEnvelope(server)
	at := now
	acc.TwoFactor = TwoFactor{Enabled: true, ClientSecret: &c, ServerSecret: &sv, EnabledAt: &at}
	acc.UpdatedAt = now
	s.byID[id] = acc
	return nil
}

func (s *MemoryStore) DisableTwoFactor(ctx context.Context, id string, now time.Time) error {
	const op = "identity.DisableTwoFactor"

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.byID[id]
	if !ok {
		return accountNotFound(op)
	}
	if !acc.TwoFactor.Enabled {
		return opError(op, ErrNotActive, "two-factor not enabled")
	}

	acc.TwoFactor = TwoFactor{}
	acc.UpdatedAt = now
	s.byID[id] = acc
	return nil
}

func cloneAccount(a Account) Account {
	out := a
	out.Keys = cloneKeys(a.Keys)
	if a.TwoFactor.ClientSecret != nil {
		c := cloneEnvelope(*a.TwoFactor.ClientSecret)
		out.TwoFactor.ClientSecret = &c
	}
	if a.TwoFactor.ServerSecret != nil {
		sv := cloneEnvelope(*a.TwoFactor.ServerSecret)
		out.TwoFactor.ServerSecret = &sv
	}
	if a.TwoFactor.EnabledAt != nil {
		t := *a.TwoFactor.EnabledAt
		out.TwoFactor.EnabledAt = &t
	}
	return out
}

func cloneKeys(k KeyEnvelope) KeyEnvelope {
	return KeyEnvelope{
		SaltForKEK: append([]byte(nil), k.SaltForKEK...),
		WrappedVK:  cloneEnvelope(k.WrappedVK),
	}
}

func cloneEnvelope(e keywrap.Envelope) keywrap.Envelope {
	return keywrap.Envelope{
		Ciphertext: append([]byte(nil), e.Ciphertext...),
		IV:         append([]byte(nil), e.IV...),
		Tag:        append([]byte(nil), e.Tag...),
	}
}

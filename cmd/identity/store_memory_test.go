package identity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestMemoryStore_CreateAndGet(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	in := createInput(t, "  Alice@Example.com ")
	acc, err := s.CreateAccount(ctx, in)
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	if acc.Email != "Alice@Example.com" || acc.EmailNorm != "alice@example.com" {
		t.Fatalf("unexpected email fields: %q %q", acc.Email, acc.EmailNorm)
	}
	if len(acc.ID) != 26 {
		t.Fatalf("expected ULID id, got %q", acc.ID)
	}

	byEmail, err := s.GetAccountByEmail(ctx, "ALICE@example.COM")
	if err != nil {
		t.Fatalf("GetAccountByEmail: %v", err)
	}
	if byEmail.ID != acc.ID || byEmail.Verifier != testVerifier {
		t.Fatalf("lookup mismatch: %+v", byEmail)
	}

	byID, err := s.GetAccountByID(ctx, acc.ID)
	if err != nil {
		t.Fatalf("GetAccountByID: %v", err)
	}
	if string(byID.Keys.WrappedVK.Ciphertext) != string(in.Keys.WrappedVK.Ciphertext) {
		t.Fatalf("wrapped key not preserved")
	}
}

func TestMemoryStore_DuplicateEmail_CaseInsensitive(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if _, err := s.CreateAccount(ctx, createInput(t, "user@example.com")); err != nil {
		t.Fatalf("create 1: %v", err)
	}
	_, err := s.CreateAccount(ctx, createInput(t, "USER@example.com"))
	if !IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if ConflictField(err) != "email" {
		t.Fatalf("expected email conflict field, got %q", ConflictField(err))
	}
}

func TestMemoryStore_ConcurrentRegistrationsOneWins(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	const n = 16
	inputs := make([]CreateAccountInput, n)
	for i := range inputs {
		inputs[i] = createInput(t, "race@example.com")
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok        int
		conflicts int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(in CreateAccountInput) {
			defer wg.Done()
			_, err := s.CreateAccount(ctx, in)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case IsConflict(err):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(inputs[i])
	}
	wg.Wait()

	if ok != 1 || conflicts != n-1 {
		t.Fatalf("expected 1 winner and %d conflicts, got %d/%d", n-1, ok, conflicts)
	}
}

func TestMemoryStore_CreateRejectsInvalidInput(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	cases := map[string]func(*CreateAccountInput){
		"bad email":      func(in *CreateAccountInput) { in.Email = "not-an-email" },
		"no verifier":    func(in *CreateAccountInput) { in.Verifier = "" },
		"no salt":        func(in *CreateAccountInput) { in.Keys.SaltForKEK = nil },
		"bad wrapped vk": func(in *CreateAccountInput) { in.Keys.WrappedVK.IV = nil },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := createInput(t, "valid@example.com")
			mutate(&in)
			_, err := s.CreateAccount(ctx, in)
			if !IsInvalidInput(err) {
				t.Fatalf("expected invalid input, got %v", err)
			}
		})
	}
}

func TestMemoryStore_GetUnknown(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if _, err := s.GetAccountByEmail(ctx, "nobody@example.com"); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := s.GetAccountByID(ctx, "01ARZ3NDEKTSV4RRFFQ69G5FAV"); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMemoryStore_TwoFactorTransitions(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	acc, err := s.CreateAccount(ctx, createInput(t, "tfa@example.com"))
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	if err := s.DisableTwoFactor(ctx, acc.ID, now); !IsNotActive(err) {
		t.Fatalf("expected not active on disable of disabled, got %v", err)
	}

	client, server := testEnvelope(t), testEnvelope(t)
	if err := s.EnableTwoFactor(ctx, acc.ID, client, server, now); err != nil {
		t.Fatalf("EnableTwoFactor: %v", err)
	}
	if err := s.EnableTwoFactor(ctx, acc.ID, client, server, now); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict on double enable, got %v", err)
	}

	got, err := s.GetAccountByID(ctx, acc.ID)
	if err != nil {
		t.Fatalf("GetAccountByID: %v", err)
	}
	if !got.TwoFactor.Enabled || got.TwoFactor.ClientSecret == nil || got.TwoFactor.ServerSecret == nil || got.TwoFactor.EnabledAt == nil {
		t.Fatalf("two-factor block incomplete: %+v", got.TwoFactor)
	}
	if !got.Profile().TwoFactorEnabled {
		t.Fatalf("profile must report two-factor enabled")
	}

	if err := s.DisableTwoFactor(ctx, acc.ID, now); err != nil {
		t.Fatalf("DisableTwoFactor: %v", err)
	}
	got, _ = s.GetAccountByID(ctx, acc.ID)
	if got.TwoFactor.Enabled || got.TwoFactor.ServerSecret != nil {
		t.Fatalf("two-factor secrets must be cleared: %+v", got.TwoFactor)
	}

	if err := s.EnableTwoFactor(ctx, "01ARZ3NDEKTSV4RRFFQ69G5FAV", client, server, now); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	acc, err := s.CreateAccount(ctx, createInput(t, "copy@example.com"))
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	acc.Keys.WrappedVK.Ciphertext[0] ^= 0xff

	again, _ := s.GetAccountByID(ctx, acc.ID)
	if again.Keys.WrappedVK.Ciphertext[0] == acc.Keys.WrappedVK.Ciphertext[0] {
		t.Fatalf("store must not share byte slices with callers")
	}
}

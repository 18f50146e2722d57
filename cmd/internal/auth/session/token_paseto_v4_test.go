package session

import (
	"strings"
	"testing"
	"time"
)

func mustTokens(t *testing.T) (Config, AccessTokenManager) {
	t.Helper()

	cfg := DefaultConfig()
	cfg.PasetoV4SecretKeyHex = GenerateSecretKeyHex()

	mgr, err := NewPasetoV4PublicManager(cfg)
	if err != nil {
		t.Fatalf("NewPasetoV4PublicManager: %v", err)
	}
	return cfg, mgr
}

func TestPasetoV4_IssueAndVerify(t *testing.T) {
	_, mgr := mustTokens(t)

	now := time.Now().UTC()
	tok, exp, err := mgr.Issue("01HZZZZZZZZZZZZZZZZZZZZZZZ", "01HYYYYYYYYYYYYYYYYYYYYYYY", now)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if !strings.HasPrefix(tok, "v4.public.") {
		t.Fatalf("expected v4.public token, got %q", tok[:12])
	}
	if !exp.Equal(now.Add(15 * time.Minute)) {
		t.Fatalf("expected 15m access ttl, got %v", exp.Sub(now))
	}

	claims, err := mgr.Verify(tok, now.Add(1*time.Second))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.UserID != "01HZZZZZZZZZZZZZZZZZZZZZZZ" || claims.SessionID != "01HYYYYYYYYYYYYYYYYYYYYYYY" {
		t.Fatalf("claims mismatch: %+v", claims)
	}
}

func TestPasetoV4_RejectsExpired(t *testing.T) {
	_, mgr := mustTokens(t)

	now := time.Now().UTC()
	tok, _, err := mgr.Issue("u", "s", now)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := mgr.Verify(tok, now.Add(16*time.Minute)); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestPasetoV4_RejectsForeignKeyAndTampering(t *testing.T) {
	_, mgr := mustTokens(t)
	_, other := mustTokens(t)

	now := time.Now().UTC()
	tok, _, err := other.Issue("u", "s", now)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := mgr.Verify(tok, now); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken for foreign key, got %v", err)
	}

	own, _, _ := mgr.Issue("u", "s", now)
	b := []byte(own)
	i := len(b) - 10
	if b[i] == 'A' {
		b[i] = 'B'
	} else {
		b[i] = 'A'
	}
	tampered := string(b)
	if _, err := mgr.Verify(tampered, now); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken for tampered token, got %v", err)
	}
}

func TestPasetoV4_RejectsWrongIssuer(t *testing.T) {
	cfg, mgr := mustTokens(t)

	cfg.Issuer = "someone-else"
	impostor, err := NewPasetoV4PublicManager(cfg)
	if err != nil {
		t.Fatalf("NewPasetoV4PublicManager: %v", err)
	}

	now := time.Now().UTC()
	tok, _, _ := impostor.Issue("u", "s", now)
	if _, err := mgr.Verify(tok, now); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken for wrong issuer, got %v", err)
	}
}

func TestNewPasetoV4PublicManager_BadKey(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PasetoV4SecretKeyHex = "not-hex"
	if _, err := NewPasetoV4PublicManager(cfg); err != ErrConfig {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
}

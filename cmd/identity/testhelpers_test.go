package identity

import (
	"bytes"
	"testing"
	"time"

	"vaultauth/cmd/security/keywrap"
)

func testKeys(t *testing.T) KeyEnvelope {
	t.Helper()

	kek, err := keywrap.NewKey()
	if err != nil {
		t.Fatalf("kek: %v", err)
	}
	env, err := keywrap.Wrap(kek, bytes.Repeat([]byte{0x11}, 32))
	if err != nil {
		t.Fatalf("wrap: %v", err)
	}
	return KeyEnvelope{SaltForKEK: bytes.Repeat([]byte{0x22}, 16), WrappedVK: env}
}

func testEnvelope(t *testing.T) keywrap.Envelope {
	t.Helper()

	key, err := keywrap.NewKey()
	if err != nil {
		t.Fatalf("key: %v", err)
	}
	env, err := keywrap.Wrap(key, []byte("JBSWY3DPEHPK3PXP"))
	if err != nil {
		t.Fatalf("wrap: %v", err)
	}
	return env
}

const testVerifier = "pbkdf2_sha512$600000$c2FsdHNhbHRzYWx0c2FsdA==$aGFzaGhhc2hoYXNoaGFzaGhhc2hoYXNoaGFzaGhhc2g="

func createInput(t *testing.T, email string) CreateAccountInput {
	t.Helper()
	return CreateAccountInput{
		Email:    email,
		Verifier: testVerifier,
		Keys:     testKeys(t),
		Now:      time.Now().UTC(),
	}
}

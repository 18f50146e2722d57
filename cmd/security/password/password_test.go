package password

import (
	"bytes"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"vaultauth/cmd/security/kdf"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Params.Iterations = 1000
	cfg.Params.MinIterations = 1000
	return cfg
}

func TestCreateAndCheck_OK(t *testing.T) {
	cfg := testConfig()

	rec, err := cfg.Create("this is a strong password 123!")
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	if !cfg.Check("this is a strong password 123!", rec.String()) {
		t.Fatalf("expected match")
	}
}

func TestCheck_WrongPassword(t *testing.T) {
	cfg := testConfig()

	rec, err := cfg.Create("this is a strong password 123!")
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	if cfg.Check("wrong password", rec.String()) {
		t.Fatalf("expected mismatch")
	}
}

func TestCheck_ClientBuiltRecord(t *testing.T) {
	cfg := testConfig()
	salt := bytes.Repeat([]byte{0x5a}, 16)

	hash, err := kdf.Derive(kdf.Params{Algorithm: kdf.PBKDF2SHA512, Iterations: 1000, KeyLength: 32}, []byte("correct horse battery"), salt)
	if err != nil {
		t.Fatalf("Derive error: %v", err)
	}

	encoded := "pbkdf2_sha512$1000$" +
		base64.StdEncoding.EncodeToString(salt) + "$" +
		base64.StdEncoding.EncodeToString(hash)

	if !cfg.Check("correct horse battery", encoded) {
		t.Fatalf("expected match for client-built record")
	}
	if cfg.Check("correct horse battery!", encoded) {
		t.Fatalf("expected mismatch")
	}
}

func TestRecord_EncodeParse(t *testing.T) {
	cfg := testConfig()

	rec, err := cfg.Create("another fine password")
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	encoded := rec.String()
	if got := strings.Count(encoded, "$"); got != 3 {
		t.Fatalf("expected 4 fields, got %d separators in %q", got, encoded)
	}

	back, err := ParseRecord(encoded)
	if err != nil {
		t.Fatalf("ParseRecord error: %v", err)
	}
	if back.Algorithm != rec.Algorithm || back.Iterations != rec.Iterations {
		t.Fatalf("params mismatch: %+v vs %+v", back, rec)
	}
	if !bytes.Equal(back.Salt, rec.Salt) || !bytes.Equal(back.Hash, rec.Hash) {
		t.Fatalf("bytes mismatch")
	}
}

func TestCheck_MalformedRecords(t *testing.T) {
	cfg := testConfig()
	salt := base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{1}, 16))
	hash := base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{2}, 32))

	cases := map[string]string{
		"empty":           "",
		"garbage":         "not-a-hash",
		"three fields":    "pbkdf2_sha512$1000$" + salt,
		"five fields":     "pbkdf2_sha512$1000$" + salt + "$" + hash + "$x",
		"unknown alg":     "md5$1000$" + salt + "$" + hash,
		"alias alg":       "SHA-512$1000$" + salt + "$" + hash,
		"zero iterations": "pbkdf2_sha512$0$" + salt + "$" + hash,
		"negative iter":   "pbkdf2_sha512$-5$" + salt + "$" + hash,
		"non-numeric":     "pbkdf2_sha512$abc$" + salt + "$" + hash,
		"huge iterations": "pbkdf2_sha512$999999999$" + salt + "$" + hash,
		"above 2x config": "pbkdf2_sha512$2001$" + salt + "$" + hash,
		"short salt":      "pbkdf2_sha512$1000$" + base64.StdEncoding.EncodeToString([]byte("short")) + "$" + hash,
		"bad salt b64":    "pbkdf2_sha512$1000$!!!$" + hash,
		"bad hash b64":    "pbkdf2_sha512$1000$" + salt + "$!!!",
		"empty hash":      "pbkdf2_sha512$1000$" + salt + "$",
	}

	for name, encoded := range cases {
		t.Run(name, func(t *testing.T) {
			if cfg.Check("whatever password", encoded) {
				t.Fatalf("expected false for %q", encoded)
			}
		})
	}
}

func TestAcceptRecord(t *testing.T) {
	cfg := testConfig()

	rec, err := cfg.Create("a perfectly good password")
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	canon, err := cfg.AcceptRecord(rec.String())
	if err != nil {
		t.Fatalf("AcceptRecord error: %v", err)
	}
	if canon != rec.String() {
		t.Fatalf("expected canonical encoding")
	}

	weak := rec
	weak.Iterations = 10
	if _, err := cfg.AcceptRecord(weak.String()); !errors.Is(err, ErrWeakRecord) {
		t.Fatalf("expected ErrWeakRecord, got %v", err)
	}

	if _, err := cfg.AcceptRecord("nope"); !errors.Is(err, ErrInvalidRecord) {
		t.Fatalf("expected ErrInvalidRecord, got %v", err)
	}
}

func TestValidate_MinMax(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Policy.MinLength = 12
	cfg.Policy.MaxLength = 16

	if err := cfg.Validate("short"); err != ErrPasswordTooShort {
		t.Fatalf("expected ErrPasswordTooShort, got %v", err)
	}

	if err := cfg.Validate("this password is definitely too long"); err != ErrPasswordTooLong {
		t.Fatalf("expected ErrPasswordTooLong, got %v", err)
	}

	if err := cfg.Validate("goodpassw0rd!"); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
}

func TestPolicy_RejectVeryWeak(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Policy.RejectVeryWeak = true
	cfg.Policy.MinLength = 8

	if err := cfg.Validate("password"); err != ErrWeakPassword {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
	if err := cfg.Validate("11111111"); err != ErrWeakPassword {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
	if err := cfg.Validate("a-very-ok-pass"); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
}

func TestDummyCheck_DoesNotPanic(t *testing.T) {
	cfg := testConfig()
	cfg.DummyCheck("anything at all")
}

// Equal-length inputs that differ at the first byte must not compare
// measurably faster than inputs that differ at the last byte.
func TestHashesEqual_TimingIndependentOfMismatchPosition(t *testing.T) {
	if testing.Short() {
		t.Skip("timing test")
	}

	const size = 1 << 16
	a := bytes.Repeat([]byte{0xaa}, size)
	early := bytes.Clone(a)
	early[0] ^= 0xff
	late := bytes.Clone(a)
	late[size-1] ^= 0xff

	measure := func(b []byte) time.Duration {
		samples := make([]time.Duration, 0, 201)
		for i := 0; i < cap(samples); i++ {
			start := time.Now()
			for j := 0; j < 20; j++ {
				if hashesEqual(a, b) {
					t.Fatal("unexpected equality")
				}
			}
			samples = append(samples, time.Since(start))
		}
		sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
		return samples[len(samples)/2]
	}

	// warm up
	_ = subtle.ConstantTimeCompare(a, late)

	e := measure(early)
	l := measure(late)
	ratio := float64(e) / float64(l)
	if ratio < 0.5 || ratio > 2.0 {
		t.Fatalf("comparison time depends on mismatch position: early=%v late=%v", e, l)
	}
}

package password

import (
	"os"
	"testing"

	"vaultauth/cmd/security/kdf"
)

func TestFromEnv_Defaults(t *testing.T) {
	// Ensure env is clean for this test.
	clearEnv := []string{
		"VAULT_PASSWORD_MIN_LEN",
		"VAULT_PASSWORD_MAX_LEN",
		"VAULT_PASSWORD_REJECT_VERY_WEAK",
		"VAULT_KDF_ALGORITHM",
		"VAULT_KDF_ITERATIONS",
		"VAULT_KDF_MIN_ITERATIONS",
		"VAULT_KDF_SALT_LEN",
		"VAULT_KDF_KEY_LEN",
	}
	for _, k := range clearEnv {
		_ = os.Unsetenv(k)
	}

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv error: %v", err)
	}

	def := DefaultConfig()
	if cfg.Policy.MinLength != def.Policy.MinLength {
		t.Fatalf("min length mismatch")
	}
	if cfg.Params.Algorithm != kdf.PBKDF2SHA512 || cfg.Params.Iterations != 600_000 {
		t.Fatalf("kdf defaults mismatch: %+v", cfg.Params)
	}
}

func TestFromEnv_Override(t *testing.T) {
	t.Setenv("VAULT_PASSWORD_MIN_LEN", "10")
	t.Setenv("VAULT_PASSWORD_MAX_LEN", "200")
	t.Setenv("VAULT_PASSWORD_REJECT_VERY_WEAK", "true")
	t.Setenv("VAULT_KDF_ALGORITHM", "pbkdf2_sha256")
	t.Setenv("VAULT_KDF_ITERATIONS", "310000")
	t.Setenv("VAULT_KDF_MIN_ITERATIONS", "200000")
	t.Setenv("VAULT_KDF_SALT_LEN", "24")
	t.Setenv("VAULT_KDF_KEY_LEN", "32")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv error: %v", err)
	}

	if cfg.Policy.MinLength != 10 || cfg.Policy.MaxLength != 200 || !cfg.Policy.RejectVeryWeak {
		t.Fatalf("policy override failed: %+v", cfg.Policy)
	}
	if cfg.Params.Algorithm != kdf.PBKDF2SHA256 || cfg.Params.Iterations != 310000 || cfg.Params.MinIterations != 200000 {
		t.Fatalf("kdf override failed: %+v", cfg.Params)
	}
	if cfg.Params.SaltLength != 24 || cfg.Params.KeyLength != 32 {
		t.Fatalf("len override failed: %+v", cfg.Params)
	}
}

func TestFromEnv_Argon2idDefaults(t *testing.T) {
	t.Setenv("VAULT_KDF_ALGORITHM", "argon2id")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv error: %v", err)
	}
	if cfg.Params.Algorithm != kdf.Argon2id || cfg.Params.Iterations != 3 {
		t.Fatalf("argon2id defaults not applied: %+v", cfg.Params)
	}
}

func TestFromEnv_InvalidMinMax(t *testing.T) {
	t.Setenv("VAULT_PASSWORD_MIN_LEN", "20")
	t.Setenv("VAULT_PASSWORD_MAX_LEN", "10")

	_, err := FromEnv()
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestFromEnv_MinIterationsAboveIterations(t *testing.T) {
	t.Setenv("VAULT_KDF_ITERATIONS", "100000")
	t.Setenv("VAULT_KDF_MIN_ITERATIONS", "200000")

	if _, err := FromEnv(); err == nil {
		t.Fatalf("expected error")
	}
}

func TestFromEnv_UnknownAlgorithm(t *testing.T) {
	t.Setenv("VAULT_KDF_ALGORITHM", "scrypt")

	if _, err := FromEnv(); err == nil {
		t.Fatalf("expected error")
	}
}

package signing

import (
	"strings"
	"testing"
)

func TestSignDeterministic(t *testing.T) {
	payload := []byte(`{"survey_id":"s1","score":9}`)

	first := Sign(payload, "whk_secret")
	second := Sign(payload, "whk_secret")

	if first != second {
		t.Errorf("expected deterministic signature, got %q and %q", first, second)
	}
	if len(first) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(first))
	}
	if first != strings.ToLower(first) {
		t.Errorf("expected lowercase hex, got %q", first)
	}
}

func TestSignSensitivity(t *testing.T) {
	payload := []byte(`{"survey_id":"s1","score":9}`)
	base := Sign(payload, "whk_secret")

	mutated := []byte(`{"survey_id":"s1","score":8}`)
	if Sign(mutated, "whk_secret") == base {
		t.Error("changing one payload byte should change the signature")
	}
	if Sign(payload, "whk_secret2") == base {
		t.Error("changing the secret should change the signature")
	}
}

func TestVerify(t *testing.T) {
	payload := []byte(`{"subject_id":"sub_42"}`)
	sig := Sign(payload, "whk_secret")

	if !Verify(payload, "whk_secret", sig) {
		t.Error("expected valid signature to verify")
	}
	if Verify(payload, "whk_other", sig) {
		t.Error("expected wrong secret to fail verification")
	}
	if Verify([]byte(`{}`), "whk_secret", sig) {
		t.Error("expected wrong payload to fail verification")
	}
}

func TestGenerateSecret(t *testing.T) {
	seen := make(map[string]bool)
	for range 10 {
		secret, err := GenerateSecret()
		if err != nil {
			t.Fatalf("GenerateSecret: %v", err)
		}
		if !strings.HasPrefix(secret, SecretPrefix) {
			t.Errorf("expected %q prefix, got %q", SecretPrefix, secret)
		}
		// 32 random bytes in unpadded base64url is 43 chars.
		if len(secret) != len(SecretPrefix)+43 {
			t.Errorf("unexpected secret length %d for %q", len(secret), secret)
		}
		if seen[secret] {
			t.Errorf("duplicate secret generated: %q", secret)
		}
		seen[secret] = true
	}
}

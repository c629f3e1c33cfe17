// Package signing provides HMAC payload signing and secret generation for
// outbound webhook deliveries.
package signing

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// SecretPrefix tags generated secrets so they are recognizable in tenant
// settings and support tooling.
const SecretPrefix = "whk_"

const secretByteLen = 32

// GenerateSecret returns a new URL-safe webhook signing secret. Used when a
// tenant enables webhooks without supplying their own secret.
func GenerateSecret() (string, error) {
	buf := make([]byte, secretByteLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate webhook secret: %w", err)
	}
	return SecretPrefix + base64.RawURLEncoding.EncodeToString(buf), nil
}

// Sign computes the HMAC-SHA256 of payload keyed by secret and returns it as
// lowercase hex. The signature must be computed over the exact bytes that
// become the HTTP body, never a re-serialization.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature matches the HMAC-SHA256 of payload under
// secret. Comparison is constant-time.
func Verify(payload []byte, secret, signature string) bool {
	expected := Sign(payload, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}

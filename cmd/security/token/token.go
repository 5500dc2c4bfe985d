package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"os"
	"strings"
)

const (
	// HMACEnvKey is the env var name for the token HMAC secret.
	// #nosec G101 -- not a credential; it's an environment variable name.
	HMACEnvKey = "TASKMGR_TOKEN_HMAC_KEY"
)

// Hasher digests high-entropy token secrets for storage.
// The zero value is valid and uses plain SHA-256.
type Hasher struct {
	key []byte
}

// NewHasher returns a Hasher. A non-empty key switches to HMAC-SHA256.
func NewHasher(key []byte) Hasher {
	if len(key) == 0 {
		return Hasher{}
	}
	k := make([]byte, len(key))
	copy(k, key)
	return Hasher{key: k}
}

// HasherFromEnv builds a Hasher from TASKMGR_TOKEN_HMAC_KEY.
// A missing key yields the SHA-256 hasher; it does not enforce a minimum length.
func HasherFromEnv() Hasher {
	raw := strings.TrimSpace(os.Getenv(HMACEnvKey))
	if raw == "" {
		return Hasher{}
	}
	return NewHasher([]byte(raw))
}

// Keyed reports whether the hasher runs in HMAC mode.
func (h Hasher) Keyed() bool { return len(h.key) > 0 }

// DigestToken returns the stored form of a token secret.
// It is deterministic for a given key and never reversible.
func (h Hasher) DigestToken(secret string) string {
	if len(h.key) == 0 {
		sum := sha256.Sum256([]byte(secret))
		return EncodeURLSafe(sum[:])
	}
	m := hmac.New(sha256.New, h.key)
	_, _ = m.Write([]byte(secret))
	return EncodeURLSafe(m.Sum(nil))
}

// EncodeURLSafe encodes raw bytes as base64url without padding.
func EncodeURLSafe(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// HMACKeyFromEnv returns the configured HMAC key bytes (trimmed), enforcing a minimum byte length.
// If the env var is missing/blank -> ErrHMACKeyMissing.
// If too short -> ErrHMACKeyTooShort.
func HMACKeyFromEnv(minBytes int) ([]byte, error) {
	raw := strings.TrimSpace(os.Getenv(HMACEnvKey))
	if raw == "" {
		return nil, ErrHMACKeyMissing
	}
	b := []byte(raw)
	if minBytes > 0 && len(b) < minBytes {
		return nil, ErrHMACKeyTooShort
	}
	return b, nil
}

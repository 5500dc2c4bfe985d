package session

import (
	"crypto/rand"
	"fmt"
	"io"

	"taskmgr/cmd/security/token"
)

// MinTokenBytes is the smallest accepted raw secret size (256 bits).
const MinTokenBytes = 32

// NewTokenPair returns a fresh raw refresh secret and its stored digest.
//
// The raw secret is nBytes from crypto/rand, base64url encoded without padding.
// The digest is h.DigestToken(raw).
func NewTokenPair(h token.Hasher, nBytes int) (raw string, digest string, err error) {
	return newTokenPair(rand.Reader, h, nBytes)
}

func newTokenPair(r io.Reader, h token.Hasher, nBytes int) (string, string, error) {
	if nBytes < MinTokenBytes {
		return "", "", &ValidationError{Field: "token_bytes", Reason: fmt.Sprintf("must be at least %d", MinTokenBytes)}
	}

	b := make([]byte, nBytes)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", "", fmt.Errorf("session: random source: %w", err)
	}

	raw := token.EncodeURLSafe(b)
	return raw, h.DigestToken(raw), nil
}

package token

import (
	"crypto/rand"
	"errors"
	"strings"
	"testing"
)

func TestDigestToken_SHA256Vector(t *testing.T) {
	t.Parallel()

	got := Hasher{}.DigestToken("abc")
	want := "ungWv48Bz-pBQUDeXa4iI7ADYaOWF3qctBD_YfIAFa0"
	if got != want {
		t.Fatalf("DigestToken(abc)=%q want=%q", got, want)
	}
}

func TestDigestToken_HMACVector(t *testing.T) {
	t.Parallel()

	h := NewHasher([]byte("0123456789abcdef0123456789abcdef"))
	if !h.Keyed() {
		t.Fatalf("expected keyed hasher")
	}
	got := h.DigestToken("abc")
	want := "pgyFmmgnxepXakjY02hnL7_kZnxqknQoKEoMs4WcwdY"
	if got != want {
		t.Fatalf("DigestToken(abc)=%q want=%q", got, want)
	}
	if got == (Hasher{}).DigestToken("abc") {
		t.Fatalf("keyed digest must differ from plain digest")
	}
}

func TestDigestToken_DeterministicAndDistinct(t *testing.T) {
	t.Parallel()

	h := Hasher{}
	seen := make(map[string]struct{}, 256)
	for i := 0; i < 256; i++ {
		b := make([]byte, 32)
		if _, err := rand.Read(b); err != nil {
			t.Fatalf("rand: %v", err)
		}
		secret := EncodeURLSafe(b)

		d1 := h.DigestToken(secret)
		d2 := h.DigestToken(secret)
		if d1 != d2 {
			t.Fatalf("digest not deterministic: %q vs %q", d1, d2)
		}
		if len(d1) != 43 {
			t.Fatalf("unexpected digest length %d", len(d1))
		}
		if _, dup := seen[d1]; dup {
			t.Fatalf("digest collision for distinct random inputs")
		}
		seen[d1] = struct{}{}
	}
}

func TestEncodeURLSafe_NoPaddingOrStdAlphabet(t *testing.T) {
	t.Parallel()

	got := EncodeURLSafe([]byte{0xfb, 0xff, 0xfe})
	if got != "-__-" {
		t.Fatalf("EncodeURLSafe=%q want=%q", got, "-__-")
	}
	if s := EncodeURLSafe([]byte{1}); strings.ContainsAny(s, "=+/") {
		t.Fatalf("unexpected characters in %q", s)
	}
}

func TestHMACKeyFromEnv(t *testing.T) {
	t.Setenv(HMACEnvKey, "")
	if _, err := HMACKeyFromEnv(32); !errors.Is(err, ErrHMACKeyMissing) {
		t.Fatalf("expected ErrHMACKeyMissing, got %v", err)
	}

	t.Setenv(HMACEnvKey, "short")
	if _, err := HMACKeyFromEnv(32); !errors.Is(err, ErrHMACKeyTooShort) {
		t.Fatalf("expected ErrHMACKeyTooShort, got %v", err)
	}

	t.Setenv(HMACEnvKey, "  "+strings.Repeat("k", 32)+"  ")
	key, err := HMACKeyFromEnv(32)
	if err != nil {
		t.Fatalf("HMACKeyFromEnv: %v", err)
	}
	if len(key) != 32 {
		t.Fatalf("expected trimmed 32-byte key, got %d", len(key))
	}
	if !HasherFromEnv().Keyed() {
		t.Fatalf("expected keyed hasher from env")
	}
}

package access

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func mustIssuer(t *testing.T, mutate func(*Config)) *Issuer {
	t.Helper()

	cfg := DefaultConfig()
	cfg.Key = testKey
	if mutate != nil {
		mutate(&cfg)
	}
	iss, err := NewIssuer(cfg)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	return iss
}

func TestMintAndVerify(t *testing.T) {
	t.Parallel()

	iss := mustIssuer(t, nil)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	tok, exp, err := iss.Mint(2, "Emily.Johnson", "Project Manager", now)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if !exp.Equal(now.Add(60 * time.Minute)) {
		t.Fatalf("unexpected exp %v", exp)
	}
	if iss.ExpiresIn() != "60m" {
		t.Fatalf("unexpected ExpiresIn %q", iss.ExpiresIn())
	}

	claims, err := iss.Verify(tok, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.UserID != 2 || claims.Username != "Emily.Johnson" || claims.Role != "Project Manager" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.TokenID == "" || !claims.ExpiresAt.Equal(exp) {
		t.Fatalf("unexpected registered claims: %+v", claims)
	}
}

func TestMint_ClaimNames(t *testing.T) {
	t.Parallel()

	iss := mustIssuer(t, nil)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	tok, _, err := iss.Mint(2, "Emily.Johnson", "Project Manager", now)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok, claims); err != nil {
		t.Fatalf("ParseUnverified: %v", err)
	}
	if claims["unique_name"] != "Emily.Johnson" || claims["role"] != "Project Manager" || claims["sub"] != "2" {
		t.Fatalf("unexpected claim set: %v", claims)
	}
	if _, ok := claims["name"]; ok {
		t.Fatalf("unexpected \"name\" claim: %v", claims)
	}
}

func TestVerify_Expired(t *testing.T) {
	t.Parallel()

	iss := mustIssuer(t, nil)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	tok, _, err := iss.Mint(2, "Emily.Johnson", "Project Manager", now)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if _, err := iss.Verify(tok, now.Add(61*time.Minute)); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}

	lenient := mustIssuer(t, func(c *Config) { c.Leeway = 2 * time.Minute })
	if _, err := lenient.Verify(tok, now.Add(61*time.Minute)); err != nil {
		t.Fatalf("expected leeway to accept, got %v", err)
	}
}

func TestVerify_Rejects(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	iss := mustIssuer(t, nil)

	good, _, err := iss.Mint(2, "Emily.Johnson", "Project Manager", now)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	otherAud := mustIssuer(t, func(c *Config) { c.Audience = "someone-else" })
	otherIss := mustIssuer(t, func(c *Config) { c.Issuer = "someone-else" })
	otherKey := mustIssuer(t, func(c *Config) { c.Key = []byte("ffffffffffffffffffffffffffffffff") })

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{
		Issuer:    "taskmgr",
		Subject:   "2",
		Audience:  jwt.ClaimStrings{"taskmgr-clients"},
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}).SignedString(testKey)
	if err != nil {
		t.Fatalf("sign hs512: %v", err)
	}

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:   "taskmgr",
		Subject:  "2",
		Audience: jwt.ClaimStrings{"taskmgr-clients"},
	}).SignedString(testKey)
	if err != nil {
		t.Fatalf("sign no-exp: %v", err)
	}

	badSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    "taskmgr",
		Subject:   "emily",
		Audience:  jwt.ClaimStrings{"taskmgr-clients"},
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}).SignedString(testKey)
	if err != nil {
		t.Fatalf("sign bad subject: %v", err)
	}

	parts := strings.Split(good, ".")
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("A", len(parts[2]))

	cases := []struct {
		name string
		iss  *Issuer
		tok  string
	}{
		{"wrong audience", otherAud, good},
		{"wrong issuer", otherIss, good},
		{"wrong key", otherKey, good},
		{"hs512", iss, hs512},
		{"missing exp", iss, noExp},
		{"non-numeric subject", iss, badSubject},
		{"tampered signature", iss, tampered},
		{"empty", iss, ""},
		{"garbage", iss, "not.a.jwt"},
	}
	for _, tc := range cases {
		if _, err := tc.iss.Verify(tc.tok, now.Add(time.Minute)); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("%s: expected ErrInvalidToken, got %v", tc.name, err)
		}
	}
}

func TestNewIssuer_Validation(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Key = []byte("short")
	if _, err := NewIssuer(cfg); !errors.Is(err, ErrConfig) {
		t.Fatalf("expected ErrConfig for short key, got %v", err)
	}

	cfg.Key = testKey
	cfg.Audience = ""
	if _, err := NewIssuer(cfg); !errors.Is(err, ErrConfig) {
		t.Fatalf("expected ErrConfig for empty audience, got %v", err)
	}

	iss := mustIssuer(t, nil)
	if _, _, err := iss.Mint(0, "x", "y", time.Now()); err == nil {
		t.Fatalf("expected error for zero user id")
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("TASKMGR_JWT_KEY", string(testKey))
	t.Setenv("TASKMGR_JWT_ISSUER", "iss-x")
	t.Setenv("TASKMGR_JWT_AUDIENCE", "aud-x")
	t.Setenv("TASKMGR_JWT_ACCESS_TTL", "15m")
	t.Setenv("TASKMGR_JWT_LEEWAY", "30s")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("LoadConfigFromEnv: %v", err)
	}
	if cfg.Issuer != "iss-x" || cfg.Audience != "aud-x" || cfg.TTL != 15*time.Minute || cfg.Leeway != 30*time.Second {
		t.Fatalf("unexpected config: %+v", cfg)
	}

	t.Setenv("TASKMGR_JWT_KEY", "too-short")
	if _, err := LoadConfigFromEnv(); !errors.Is(err, ErrConfig) {
		t.Fatalf("expected ErrConfig for short key, got %v", err)
	}

	t.Setenv("TASKMGR_JWT_KEY", string(testKey))
	t.Setenv("TASKMGR_JWT_ACCESS_TTL", "-1m")
	if _, err := LoadConfigFromEnv(); !errors.Is(err, ErrConfig) {
		t.Fatalf("expected ErrConfig for bad ttl, got %v", err)
	}
}

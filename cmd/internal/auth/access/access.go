// Package access mints and verifies taskmgr's short-lived access tokens.
//
// Tokens are HS256 JWTs carrying the account id (sub), display name and role.
// They are stateless: a minted token stays valid until it expires, whatever
// happens to the refresh session it was issued alongside.
package access

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// MinKeyBytes is the smallest accepted HMAC signing key.
const MinKeyBytes = 32

var (
	// ErrConfig is returned for invalid issuer configuration.
	ErrConfig = errors.New("invalid access token config")
	// ErrInvalidToken is returned when a token fails signature, issuer, audience or shape checks.
	ErrInvalidToken = errors.New("invalid access token")
	// ErrTokenExpired is returned when a well-formed token is past its expiry.
	ErrTokenExpired = errors.New("access token expired")
)

// Config controls token minting and verification.
type Config struct {
	Key      []byte
	Issuer   string
	Audience string
	TTL      time.Duration
	Leeway   time.Duration
}

// DefaultConfig returns the reference policy without a key.
func DefaultConfig() Config {
	return Config{
		Issuer:   "taskmgr",
		Audience: "taskmgr-clients",
		TTL:      60 * time.Minute,
	}
}

// LoadConfigFromEnv loads issuer configuration.
//
// Required:
//   - TASKMGR_JWT_KEY (at least 32 bytes)
//
// Optional:
//   - TASKMGR_JWT_ISSUER, TASKMGR_JWT_AUDIENCE
//   - TASKMGR_JWT_ACCESS_TTL, TASKMGR_JWT_LEEWAY
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	cfg.Key = []byte(os.Getenv("TASKMGR_JWT_KEY"))
	if v := strings.TrimSpace(os.Getenv("TASKMGR_JWT_ISSUER")); v != "" {
		cfg.Issuer = v
	}
	if v := strings.TrimSpace(os.Getenv("TASKMGR_JWT_AUDIENCE")); v != "" {
		cfg.Audience = v
	}
	if v := strings.TrimSpace(os.Getenv("TASKMGR_JWT_ACCESS_TTL")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("%w: TASKMGR_JWT_ACCESS_TTL", ErrConfig)
		}
		cfg.TTL = d
	}
	if v := strings.TrimSpace(os.Getenv("TASKMGR_JWT_LEEWAY")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return Config{}, fmt.Errorf("%w: TASKMGR_JWT_LEEWAY", ErrConfig)
		}
		cfg.Leeway = d
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch {
	case len(c.Key) < MinKeyBytes:
		return fmt.Errorf("%w: signing key must be at least %d bytes", ErrConfig, MinKeyBytes)
	case c.Issuer == "":
		return fmt.Errorf("%w: issuer required", ErrConfig)
	case c.Audience == "":
		return fmt.Errorf("%w: audience required", ErrConfig)
	case c.TTL <= 0:
		return fmt.Errorf("%w: ttl must be positive", ErrConfig)
	}
	return nil
}

// Claims is the verified identity carried by an access token.
type Claims struct {
	UserID    int64
	Username  string
	Role      string
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type tokenClaims struct {
	UniqueName string `json:"unique_name"`
	Role       string `json:"role"`
	jwt.RegisteredClaims
}

// Issuer mints and verifies access tokens with a symmetric key.
type Issuer struct {
	cfg Config
}

// NewIssuer validates cfg and returns an Issuer.
func NewIssuer(cfg Config) (*Issuer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	key := make([]byte, len(cfg.Key))
	copy(key, cfg.Key)
	cfg.Key = key
	return &Issuer{cfg: cfg}, nil
}

// TTL returns the access token lifetime.
func (i *Issuer) TTL() time.Duration { return i.cfg.TTL }

// ExpiresIn renders the lifetime the way clients expect it ("60m").
func (i *Issuer) ExpiresIn() string {
	return strconv.FormatInt(int64(i.cfg.TTL/time.Minute), 10) + "m"
}

// Mint signs a token for the given identity valid from now for the configured TTL.
func (i *Issuer) Mint(userID int64, username, role string, now time.Time) (string, time.Time, error) {
	if userID <= 0 {
		return "", time.Time{}, fmt.Errorf("access: user id must be positive")
	}

	now = now.UTC().Truncate(time.Second)
	exp := now.Add(i.cfg.TTL)

	claims := tokenClaims{
		UniqueName: username,
		Role:       role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.cfg.Issuer,
			Subject:   strconv.FormatInt(userID, 10),
			Audience:  jwt.ClaimStrings{i.cfg.Audience},
			ExpiresAt: jwt.NewNumericDate(exp),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.cfg.Key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("access: sign: %w", err)
	}
	return signed, exp, nil
}

// Verify checks signature, algorithm, issuer, audience and expiry at now.
func (i *Issuer) Verify(tokenString string, now time.Time) (Claims, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" || len(tokenString) > 8192 {
		return Claims{}, ErrInvalidToken
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.cfg.Issuer),
		jwt.WithAudience(i.cfg.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(i.cfg.Leeway),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)

	var tc tokenClaims
	_, err := parser.ParseWithClaims(tokenString, &tc, func(*jwt.Token) (any, error) {
		return i.cfg.Key, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrTokenExpired
		}
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	uid, err := strconv.ParseInt(tc.Subject, 10, 64)
	if err != nil || uid <= 0 {
		return Claims{}, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}

	out := Claims{
		UserID:   uid,
		Username: tc.UniqueName,
		Role:     tc.Role,
		TokenID:  tc.ID,
	}
	if tc.IssuedAt != nil {
		out.IssuedAt = tc.IssuedAt.Time
	}
	if tc.ExpiresAt != nil {
		out.ExpiresAt = tc.ExpiresAt.Time
	}
	return out, nil
}

package session

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config defines runtime configuration for the session subsystem.
type Config struct {
	// RefreshTTL is the lifetime of a refresh session (7 days by default).
	RefreshTTL time.Duration

	// RefreshTokenBytes is the number of random bytes behind each raw secret.
	RefreshTokenBytes int

	// EnforceExpiry makes FindActive reject sessions whose expiry has passed.
	// Off by default: lookups match on (user id, digest, active) only.
	EnforceExpiry bool

	// StoreTimeout bounds every store call. Zero disables the per-call deadline.
	StoreTimeout time.Duration
}

// DefaultConfig returns the reference session policy.
func DefaultConfig() Config {
	return Config{
		RefreshTTL:        7 * 24 * time.Hour,
		RefreshTokenBytes: 32,
		EnforceExpiry:     false,
		StoreTimeout:      5 * time.Second,
	}
}

// LoadConfigFromEnv loads session configuration from environment variables.
//
// Optional (durations must be valid Go duration strings):
//   - TASKMGR_AUTH_REFRESH_TTL
//   - TASKMGR_AUTH_REFRESH_TOKEN_BYTES (32..64)
//   - TASKMGR_AUTH_ENFORCE_REFRESH_EXPIRY
//   - TASKMGR_AUTH_STORE_TIMEOUT
//
// Returns ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := strings.TrimSpace(os.Getenv("TASKMGR_AUTH_REFRESH_TTL")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.RefreshTTL = d
	}

	if v := strings.TrimSpace(os.Getenv("TASKMGR_AUTH_REFRESH_TOKEN_BYTES")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 32 || n > 64 {
			return Config{}, ErrConfig
		}
		cfg.RefreshTokenBytes = n
	}

	if v := strings.TrimSpace(os.Getenv("TASKMGR_AUTH_ENFORCE_REFRESH_EXPIRY")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, ErrConfig
		}
		cfg.EnforceExpiry = b
	}

	if v := strings.TrimSpace(os.Getenv("TASKMGR_AUTH_STORE_TIMEOUT")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return Config{}, ErrConfig
		}
		cfg.StoreTimeout = d
	}

	return cfg, nil
}

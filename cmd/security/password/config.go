package password

import (
	"fmt"
	"math"
	"os"
	"runtime"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Scheme names a credential digest algorithm.
type Scheme string

const (
	// SchemeMD5 is the legacy unsalted digest.
	SchemeMD5 Scheme = "md5"
	// SchemeBcrypt hashes with bcrypt.
	SchemeBcrypt Scheme = "bcrypt"
	// SchemeArgon2id hashes with Argon2id.
	SchemeArgon2id Scheme = "argon2id"
)

// Argon2idParams controls Argon2id hashing cost.
// MemoryKiB is in KiB as required by argon2.IDKey.
type Argon2idParams struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Config is the single configuration surface for this package.
type Config struct {
	// Scheme is used when hashing new credentials.
	Scheme Scheme
	// RehashOnLogin upgrades stored digests that do not match Scheme after a successful login.
	RehashOnLogin bool

	BcryptCost int
	Argon2     Argon2idParams

	// MaxLength bounds input size in bytes (anti-DoS for slow schemes).
	MaxLength int
}

// DefaultConfig keeps the legacy md5 scheme and a strong baseline for the slow schemes.
func DefaultConfig() Config {
	threads := runtime.NumCPU()
	if threads <= 0 {
		threads = 1
	}
	if threads > 4 {
		threads = 4
	}

	return Config{
		Scheme:     SchemeMD5,
		BcryptCost: 12,
		Argon2: Argon2idParams{
			MemoryKiB:   64 * 1024,
			Iterations:  3,
			Parallelism: uint8(threads), // #nosec G115 -- clamped to [1..4] above; safe conversion.
			SaltLength:  16,
			KeyLength:   32,
		},
		MaxLength: 256,
	}
}

// FromEnv loads config from environment variables.
//
// Env surface:
// - TASKMGR_PASSWORD_SCHEME (md5|bcrypt|argon2id)
// - TASKMGR_PASSWORD_REHASH_ON_LOGIN (true/false)
// - TASKMGR_PASSWORD_MAX_LEN
// - TASKMGR_BCRYPT_COST
// - TASKMGR_ARGON2_MEMORY_KIB
// - TASKMGR_ARGON2_ITERATIONS
// - TASKMGR_ARGON2_PARALLELISM
func FromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v, ok := os.LookupEnv("TASKMGR_PASSWORD_SCHEME"); ok && strings.TrimSpace(v) != "" {
		s, err := ParseScheme(v)
		if err != nil {
			return Config{}, fmt.Errorf("TASKMGR_PASSWORD_SCHEME: %w", err)
		}
		cfg.Scheme = s
	}

	if v, ok := os.LookupEnv("TASKMGR_PASSWORD_REHASH_ON_LOGIN"); ok {
		b, err := parseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("TASKMGR_PASSWORD_REHASH_ON_LOGIN: %w", err)
		}
		cfg.RehashOnLogin = b
	}

	if v, ok := os.LookupEnv("TASKMGR_PASSWORD_MAX_LEN"); ok {
		n, err := atoiPositiveInt(v, 8, 4096)
		if err != nil {
			return Config{}, fmt.Errorf("TASKMGR_PASSWORD_MAX_LEN: %w", err)
		}
		cfg.MaxLength = n
	}

	if v, ok := os.LookupEnv("TASKMGR_BCRYPT_COST"); ok {
		n, err := atoiPositiveInt(v, bcrypt.MinCost, bcrypt.MaxCost)
		if err != nil {
			return Config{}, fmt.Errorf("TASKMGR_BCRYPT_COST: %w", err)
		}
		cfg.BcryptCost = n
	}

	if v, ok := os.LookupEnv("TASKMGR_ARGON2_MEMORY_KIB"); ok {
		u, err := atou32(v, 8*1024, 1024*1024) // 8 MiB .. 1 GiB
		if err != nil {
			return Config{}, fmt.Errorf("TASKMGR_ARGON2_MEMORY_KIB: %w", err)
		}
		cfg.Argon2.MemoryKiB = u
	}

	if v, ok := os.LookupEnv("TASKMGR_ARGON2_ITERATIONS"); ok {
		u, err := atou32(v, 1, 20)
		if err != nil {
			return Config{}, fmt.Errorf("TASKMGR_ARGON2_ITERATIONS: %w", err)
		}
		cfg.Argon2.Iterations = u
	}

	if v, ok := os.LookupEnv("TASKMGR_ARGON2_PARALLELISM"); ok {
		u, err := atou32(v, 1, 64)
		if err != nil {
			return Config{}, fmt.Errorf("TASKMGR_ARGON2_PARALLELISM: %w", err)
		}
		if u > math.MaxUint8 {
			return Config{}, fmt.Errorf("TASKMGR_ARGON2_PARALLELISM: out of range")
		}
		cfg.Argon2.Parallelism = uint8(u)
	}

	if cfg.RehashOnLogin && cfg.Scheme == SchemeMD5 {
		return Config{}, fmt.Errorf("TASKMGR_PASSWORD_REHASH_ON_LOGIN requires a bcrypt or argon2id scheme")
	}

	return cfg, nil
}

// ParseScheme parses a scheme name (case-insensitive).
func ParseScheme(s string) (Scheme, error) {
	switch Scheme(strings.ToLower(strings.TrimSpace(s))) {
	case SchemeMD5:
		return SchemeMD5, nil
	case SchemeBcrypt:
		return SchemeBcrypt, nil
	case SchemeArgon2id:
		return SchemeArgon2id, nil
	default:
		return "", ErrUnknownScheme
	}
}

func atoiPositiveInt(s string, minVal, maxVal int) (int, error) {
	s = strings.TrimSpace(s)
	i64, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("not an integer")
	}

	i := int(i64)
	if i < minVal || i > maxVal {
		return 0, fmt.Errorf("out of range [%d..%d]", minVal, maxVal)
	}
	return i, nil
}

func atou32(s string, minVal, maxVal uint32) (uint32, error) {
	s = strings.TrimSpace(s)
	u64, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("not an unsigned integer")
	}

	u := uint32(u64)
	if u < minVal || u > maxVal {
		return 0, fmt.Errorf("out of range [%d..%d]", minVal, maxVal)
	}
	return u, nil
}

func parseBool(s string) (bool, error) {
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return false, fmt.Errorf("invalid boolean")
	}
	return b, nil
}

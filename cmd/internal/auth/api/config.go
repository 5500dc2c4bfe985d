package authapi

import (
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// Session cookie names. They are part of the client contract.
const (
	CookieRefresh  = "rftk"
	CookieUserID   = "uid"
	CookieUserName = "uname"
	CookieUserRole = "urole"
)

// Config controls auth API behavior and security defaults.
type Config struct {
	TrustProxy   bool
	MaxBodyBytes int64

	CookiePath     string
	CookieDomain   string
	CookieSecure   bool
	CookieSameSite http.SameSite
	CookieTTL      time.Duration

	LoginIPMax    int
	LoginIPWindow time.Duration

	// LoginUserWindow is how far back failed logins count towards lockout tiers.
	LoginUserWindow time.Duration

	LockoutShortThreshold  int
	LockoutShortDuration   time.Duration
	LockoutLongThreshold   int
	LockoutLongDuration    time.Duration
	LockoutSevereThreshold int
	LockoutSevereDuration  time.Duration
}

// DefaultConfig returns the reference cookie and throttle policy.
func DefaultConfig() Config {
	return Config{
		MaxBodyBytes:           1 << 20,
		CookiePath:             "/api/v1/",
		CookieSecure:           true,
		CookieSameSite:         http.SameSiteStrictMode,
		CookieTTL:              7 * 24 * time.Hour,
		LoginIPMax:             20,
		LoginIPWindow:          5 * time.Minute,
		LoginUserWindow:        2 * time.Hour,
		LockoutShortThreshold:  5,
		LockoutShortDuration:   5 * time.Minute,
		LockoutLongThreshold:   10,
		LockoutLongDuration:    30 * time.Minute,
		LockoutSevereThreshold: 20,
		LockoutSevereDuration:  2 * time.Hour,
	}
}

// LoadConfigFromEnv loads auth config from environment variables with safe defaults.
func LoadConfigFromEnv() Config {
	def := DefaultConfig()
	cfg := Config{
		TrustProxy:             envBool("TASKMGR_TRUST_PROXY", false),
		MaxBodyBytes:           envInt64("TASKMGR_AUTH_MAX_BODY_BYTES", def.MaxBodyBytes),
		CookiePath:             envString("TASKMGR_COOKIE_PATH", def.CookiePath),
		CookieDomain:           strings.TrimSpace(os.Getenv("TASKMGR_COOKIE_DOMAIN")),
		CookieSecure:           envBool("TASKMGR_COOKIE_SECURE", def.CookieSecure),
		CookieSameSite:         parseSameSite(os.Getenv("TASKMGR_COOKIE_SAMESITE")),
		CookieTTL:              envDuration("TASKMGR_COOKIE_TTL", def.CookieTTL),
		LoginIPMax:             envInt("TASKMGR_AUTH_LOGIN_IP_MAX", def.LoginIPMax),
		LoginIPWindow:          envDuration("TASKMGR_AUTH_LOGIN_IP_WINDOW", def.LoginIPWindow),
		LoginUserWindow:        envDuration("TASKMGR_AUTH_LOGIN_USER_WINDOW", def.LoginUserWindow),
		LockoutShortThreshold:  envInt("TASKMGR_AUTH_LOGIN_LOCKOUT_SHORT_THRESHOLD", def.LockoutShortThreshold),
		LockoutShortDuration:   envDuration("TASKMGR_AUTH_LOGIN_LOCKOUT_SHORT_DURATION", def.LockoutShortDuration),
		LockoutLongThreshold:   envInt("TASKMGR_AUTH_LOGIN_LOCKOUT_LONG_THRESHOLD", def.LockoutLongThreshold),
		LockoutLongDuration:    envDuration("TASKMGR_AUTH_LOGIN_LOCKOUT_LONG_DURATION", def.LockoutLongDuration),
		LockoutSevereThreshold: envInt("TASKMGR_AUTH_LOGIN_LOCKOUT_SEVERE_THRESHOLD", def.LockoutSevereThreshold),
		LockoutSevereDuration:  envDuration("TASKMGR_AUTH_LOGIN_LOCKOUT_SEVERE_DURATION", def.LockoutSevereDuration),
	}

	// Browsers drop SameSite=None cookies that are not Secure.
	if cfg.CookieSameSite == http.SameSiteNoneMode {
		cfg.CookieSecure = true
	}
	if !strings.HasPrefix(cfg.CookiePath, "/") {
		cfg.CookiePath = def.CookiePath
	}

	return cfg
}

func (c Config) lockoutTiers() []lockoutTier {
	return []lockoutTier{
		{Threshold: c.LockoutSevereThreshold, Duration: c.LockoutSevereDuration},
		{Threshold: c.LockoutLongThreshold, Duration: c.LockoutLongDuration},
		{Threshold: c.LockoutShortThreshold, Duration: c.LockoutShortDuration},
	}
}

func parseSameSite(v string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "lax":
		return http.SameSiteLaxMode
	case "none":
		return http.SameSiteNoneMode
	case "default":
		return http.SameSiteDefaultMode
	default:
		return http.SameSiteStrictMode
	}
}

func envString(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

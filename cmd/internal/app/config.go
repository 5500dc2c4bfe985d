package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string
	LogColor  bool

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	MaxHeaderBytes    int

	// DatabaseURL selects the backend: postgres://… (pgx), sqlite:<path> or
	// file:<path> (modernc sqlite), or empty for in-memory stores.
	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32
	DBMigrate   bool
	DBSeed      bool

	// If true, /readyz returns 503 unless a database is configured and reachable.
	ReadinessRequireDB bool

	// If true, TASKMGR_TOKEN_HMAC_KEY must be set (>= 32 bytes) and refresh-token
	// digests are keyed.
	RequireTokenHMAC bool

	CORSAllowedOrigins   []string
	CORSAllowCredentials bool
	CORSMaxAgeSeconds    int

	MetricsEnabled bool
}

// LoadConfig loads Config from environment variables with defaults.
//
// An optional dotenv file (TASKMGR_ENV_FILE, default ".env") is read first.
// Variables already present in the environment are never overridden by it.
func LoadConfig() (Config, error) {
	if err := loadDotEnv(EnvString("TASKMGR_ENV_FILE", ".env")); err != nil {
		return Config{}, err
	}

	return Config{
		HTTPAddr:  EnvString("TASKMGR_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel:  EnvString("TASKMGR_LOG_LEVEL", "info"),
		LogFormat: EnvString("TASKMGR_LOG_FORMAT", "json"),
		LogColor:  EnvBool("TASKMGR_LOG_COLOR", false),

		ReadHeaderTimeout: EnvDuration("TASKMGR_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("TASKMGR_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("TASKMGR_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("TASKMGR_HTTP_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout:   EnvDuration("TASKMGR_HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),

		MaxHeaderBytes: EnvInt("TASKMGR_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL: EnvString("TASKMGR_DATABASE_URL", ""),
		DBMaxConns:  EnvInt32("TASKMGR_DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("TASKMGR_DB_MIN_CONNS", 0),
		DBMigrate:   EnvBool("TASKMGR_DB_MIGRATE", true),
		DBSeed:      EnvBool("TASKMGR_DB_SEED", false),

		ReadinessRequireDB: EnvBool("TASKMGR_READINESS_REQUIRE_DB", false),

		RequireTokenHMAC: EnvBool("TASKMGR_REQUIRE_TOKEN_HMAC", false),

		CORSAllowedOrigins:   EnvList("TASKMGR_CORS_ALLOWED_ORIGINS"),
		CORSAllowCredentials: EnvBool("TASKMGR_CORS_ALLOW_CREDENTIALS", true),
		CORSMaxAgeSeconds:    EnvInt("TASKMGR_CORS_MAX_AGE_SECONDS", 600),

		MetricsEnabled: EnvBool("TASKMGR_METRICS_ENABLED", true),
	}, nil
}

func loadDotEnv(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

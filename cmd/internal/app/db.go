package app

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"taskmgr/cmd/identity"
	"taskmgr/cmd/internal/audit"
	"taskmgr/cmd/internal/auth/session"
	"taskmgr/cmd/internal/database"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Backend names reported in logs and readiness.
const (
	backendPostgres = "postgres"
	backendSQLite   = "sqlite"
	backendMemory   = "memory"
)

// stores bundles the persistence the auth subsystem needs, whichever backend serves it.
type stores struct {
	backend  string
	accounts identity.Store
	sessions session.Store
	audit    audit.Store

	pool *pgxpool.Pool
	db   *sql.DB
}

func (s *stores) databaseEnabled() bool { return s.pool != nil || s.db != nil }

// Close implements Store.
func (s *stores) Close(_ context.Context) error {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// openStores picks the backend from cfg.DatabaseURL and applies migrations when enabled.
func openStores(ctx context.Context, cfg Config, log Logger) (*stores, error) {
	url := strings.TrimSpace(cfg.DatabaseURL)

	switch {
	case url == "":
		log.Info("db.disabled.inmemory_store", "seeded_accounts", len(identity.SeedAccounts()))
		return &stores{
			backend:  backendMemory,
			accounts: identity.NewSeededMemoryStore(),
			sessions: session.NewMemoryStore(),
			audit:    audit.NewMemoryStore(0),
		}, nil

	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return openPostgresStores(ctx, cfg, log)
	}

	if path, ok := database.SQLitePath(url); ok {
		return openSQLiteStores(ctx, cfg, path, log)
	}
	return nil, fmt.Errorf("unsupported TASKMGR_DATABASE_URL scheme")
}

func openPostgresStores(ctx context.Context, cfg Config, log Logger) (*stores, error) {
	pool, err := NewDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if cfg.DBMigrate {
		if err := database.MigratePostgres(ctx, pool, database.MigrateOptions{Seed: cfg.DBSeed, Log: log}); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
	}

	accounts, err := identity.NewPostgresStore(pool)
	if err != nil {
		pool.Close()
		return nil, err
	}
	sessions, err := session.NewPostgresStore(pool)
	if err != nil {
		pool.Close()
		return nil, err
	}
	events, err := audit.NewPostgresStore(pool)
	if err != nil {
		pool.Close()
		return nil, err
	}

	log.Info("db.enabled.postgres_store", "migrated", cfg.DBMigrate, "seeded", cfg.DBMigrate && cfg.DBSeed)

	// The app owns the pool; stores never close it.
	return &stores{
		backend:  backendPostgres,
		accounts: accounts,
		sessions: sessions,
		audit:    events,
		pool:     pool,
	}, nil
}

func openSQLiteStores(ctx context.Context, cfg Config, path string, log Logger) (*stores, error) {
	db, err := database.OpenSQLite(ctx, path)
	if err != nil {
		return nil, err
	}

	if cfg.DBMigrate {
		if err := database.MigrateSQLite(ctx, db, database.MigrateOptions{Seed: cfg.DBSeed, Log: log}); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate sqlite: %w", err)
		}
	}

	accounts, err := identity.NewSQLiteStore(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	sessions, err := session.NewSQLiteStore(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	events, err := audit.NewSQLiteStore(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	log.Info("db.enabled.sqlite_store", "path", path, "migrated", cfg.DBMigrate, "seeded", cfg.DBMigrate && cfg.DBSeed)

	return &stores{
		backend:  backendSQLite,
		accounts: accounts,
		sessions: sessions,
		audit:    events,
		db:       db,
	}, nil
}

// NewDBPool builds a pgxpool with sane defaults and validates connectivity.
func NewDBPool(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	if cfg.DBMaxConns > 0 {
		pcfg.MaxConns = cfg.DBMaxConns
	}
	if cfg.DBMinConns >= 0 {
		pcfg.MinConns = cfg.DBMinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}

	if err := PingDB(ctx, pool, 3*time.Second); err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}

// PingDB checks if we can acquire a connection within timeout.
func PingDB(parent context.Context, pool *pgxpool.Pool, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return err
	}
	conn.Release()
	return nil
}

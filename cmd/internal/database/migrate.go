package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

// Dialect names a SQL flavour with its own migration set.
type Dialect string

const (
	// Postgres is PostgreSQL via pgx.
	Postgres Dialect = "postgres"
	// SQLite is SQLite via modernc.org/sqlite.
	SQLite Dialect = "sqlite"
)

// Version tables. The seed keeps its own so schema and seed versions never collide.
const (
	SchemaTable = "schema_migrations"
	SeedTable   = "schema_migrations_seed"
)

// MigrateOptions controls a migration run.
type MigrateOptions struct {
	// Seed also applies the development role catalogue and sample accounts.
	Seed bool
	Log  *slog.Logger
}

func (o MigrateOptions) logger() *slog.Logger {
	if o.Log == nil {
		return slog.Default()
	}
	return o.Log
}

// migrationSet is one embedded directory tracked in its own version table.
type migrationSet struct {
	dir   string
	table string
}

// plan lists the sets for d in apply order. The seed comes last.
func plan(d Dialect, seed bool) []migrationSet {
	sets := []migrationSet{{dir: "migrations/" + string(d), table: SchemaTable}}
	if seed {
		sets = append(sets, migrationSet{dir: "migrations/seed", table: SeedTable})
	}
	return sets
}

// MigrateSQLite applies pending migrations to a SQLite database. Each file runs
// in its own transaction.
func MigrateSQLite(ctx context.Context, db *sql.DB, opts MigrateOptions) error {
	return migrateSQLite(ctx, db, opts.logger(), embedded, plan(SQLite, opts.Seed))
}

func migrateSQLite(ctx context.Context, db *sql.DB, log *slog.Logger, fsys fs.FS, sets []migrationSet) error {
	for _, s := range sets {
		drv, err := migratesqlite.WithInstance(db, &migratesqlite.Config{MigrationsTable: s.table})
		if err != nil {
			return fmt.Errorf("sqlite migration driver: %w", err)
		}
		// The sqlite driver's Close closes db, which belongs to the caller.
		if err := apply(ctx, log, fsys, s, SQLite, drv, false); err != nil {
			return err
		}
	}
	return nil
}

// MigratePostgres applies pending migrations through pool. Tables are created
// in the connection's search_path.
func MigratePostgres(ctx context.Context, pool *pgxpool.Pool, opts MigrateOptions) error {
	log := opts.logger()
	for _, s := range plan(Postgres, opts.Seed) {
		// Closing this handle returns its connection to pool; the pool stays open.
		db := stdlib.OpenDBFromPool(pool)
		drv, err := migratepgx.WithInstance(db, &migratepgx.Config{MigrationsTable: s.table})
		if err != nil {
			_ = db.Close()
			return fmt.Errorf("postgres migration driver: %w", err)
		}
		if err := apply(ctx, log, embedded, s, Postgres, drv, true); err != nil {
			return err
		}
	}
	return nil
}

func apply(ctx context.Context, log *slog.Logger, fsys fs.FS, s migrationSet, d Dialect, drv migratedb.Driver, closeDriver bool) error {
	src, err := iofs.New(fsys, s.dir)
	if err != nil {
		if closeDriver {
			_ = drv.Close()
		}
		return fmt.Errorf("open migrations %s: %w", s.dir, err)
	}

	m, err := migrate.NewWithInstance("iofs", src, string(d), drv)
	if err != nil {
		_ = src.Close()
		if closeDriver {
			_ = drv.Close()
		}
		return fmt.Errorf("migrator %s: %w", s.dir, err)
	}
	m.Log = migrateLogger{log: log}
	defer func() {
		if closeDriver {
			_, _ = m.Close()
			return
		}
		_ = src.Close()
	}()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			m.GracefulStop <- true
		case <-done:
		}
	}()

	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate %s (%s): %w", s.dir, s.table, err)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("migrate %s: %w", s.dir, ctxErr)
	}

	version, dirty, verr := m.Version()
	if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
		return fmt.Errorf("read %s: %w", s.table, verr)
	}

	if errors.Is(err, migrate.ErrNoChange) {
		log.Debug("db.migrations.current", "dialect", string(d), "table", s.table, "version", version)
		return nil
	}
	log.Info("db.migrations.applied", "dialect", string(d), "table", s.table, "version", version, "dirty", dirty)
	return nil
}

// migrateLogger routes golang-migrate's printf logging into slog at debug level.
type migrateLogger struct{ log *slog.Logger }

func (l migrateLogger) Printf(format string, v ...any) {
	l.log.Debug("db.migration", "detail", strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l migrateLogger) Verbose() bool { return false }

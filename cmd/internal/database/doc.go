// Package database opens taskmgr's SQL backends and applies the embedded schema.
//
// Two dialects are supported:
//   - postgres: github.com/jackc/pgx/v5 (pgxpool)
//   - sqlite: modernc.org/sqlite (pure Go, no cgo) through database/sql
//
// Migrations are golang-migrate files ("000001_init.up.sql") embedded in the
// binary and tracked in schema_migrations. The development seed is a separate
// set with its own version table, applied only on request.
package database

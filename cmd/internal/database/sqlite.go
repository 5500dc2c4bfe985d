package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// SQLitePath extracts the file path from a "sqlite:<path>" or "file:<path>" URL.
// It reports false for any other scheme.
func SQLitePath(url string) (string, bool) {
	url = strings.TrimSpace(url)
	for _, prefix := range []string{"sqlite://", "sqlite:", "file:"} {
		if strings.HasPrefix(url, prefix) {
			p := strings.TrimPrefix(url, prefix)
			if i := strings.IndexByte(p, '?'); i >= 0 {
				p = p[:i]
			}
			return p, p != ""
		}
	}
	return "", false
}

// OpenSQLite opens (creating if needed) a SQLite database file with foreign keys
// enforced and WAL journaling.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return db, nil
}

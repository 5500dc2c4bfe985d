package session

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
)

// PostgresStore implements Store using PostgreSQL (refresh_sessions).
//
// The pgx pool is owned by the caller; this store must not close it.
type PostgresStore struct {
	pool  *pgxpool.Pool
	table string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema qualifies the refresh_sessions table with schema.
// Without it the table resolves through the connection's search_path.
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if !pgIdentRe.MatchString(schema) {
			return fmt.Errorf("session: invalid schema identifier")
		}
		s.table = pgx.Identifier{schema, "refresh_sessions"}.Sanitize()
		return nil
	}
}

// NewPostgresStore creates a Postgres-backed session store.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{
		pool:  pool,
		table: pgx.Identifier{"refresh_sessions"}.Sanitize(),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, fmt.Errorf("session: nil pool")
	}
	return st, nil
}

const pgSessionColumns = `id, user_id, token_hash, expires_at, created_by_ip, revoked_at,
	revoked_by_ip, replaced_by_token_hash, is_active, created_at, updated_at`

// Create inserts a new session row with a ULID primary key.
func (s *PostgresStore) Create(ctx context.Context, in NewSession) (Session, error) {
	id := ulid.Make().String()

	row := s.pool.QueryRow(ctx, `
		INSERT INTO `+s.table+` (
			id, user_id, token_hash, expires_at, created_by_ip,
			is_active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, TRUE, $6, $6)
		RETURNING `+pgSessionColumns,
		id, in.UserID, in.TokenHash, in.ExpiresAt, in.CreatedByIP, in.CreatedAt,
	)

	out, err := scanSession(row)
	if err != nil {
		if pgIsUniqueViolation(err) {
			return Session{}, ErrDuplicateDigest
		}
		return Session{}, err
	}
	return out, nil
}

// FindActive loads the active session for (userID, tokenHash).
func (s *PostgresStore) FindActive(ctx context.Context, userID int64, tokenHash string) (Session, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+pgSessionColumns+`
		FROM `+s.table+`
		WHERE user_id = $1 AND token_hash = $2 AND is_active
	`, userID, tokenHash)

	out, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, ErrSessionNotFound
	}
	if err != nil {
		return Session{}, err
	}
	return out, nil
}

// MarkRevoked flips an active session to revoked.
// The is_active predicate makes the update a compare-and-set under row locking.
func (s *PostgresStore) MarkRevoked(ctx context.Context, r Revocation) error {
	ct, err := s.pool.Exec(ctx, `
		UPDATE `+s.table+`
		SET
			is_active = FALSE,
			revoked_at = $2,
			revoked_by_ip = $3,
			replaced_by_token_hash = $4,
			updated_at = $2
		WHERE id = $1 AND is_active
	`, r.SessionID, r.RevokedAt, r.RevokedByIP, r.ReplacedByTokenHash)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// List returns every session, newest first.
func (s *PostgresStore) List(ctx context.Context) ([]Session, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+pgSessionColumns+`
		FROM `+s.table+`
		ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		row, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// Delete removes one session.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	ct, err := s.pool.Exec(ctx, `DELETE FROM `+s.table+` WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// DeleteAll removes every session.
func (s *PostgresStore) DeleteAll(ctx context.Context) (int64, error) {
	ct, err := s.pool.Exec(ctx, `DELETE FROM `+s.table)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

// DeleteInactive removes every revoked session.
func (s *PostgresStore) DeleteInactive(ctx context.Context) (int64, error) {
	ct, err := s.pool.Exec(ctx, `DELETE FROM `+s.table+` WHERE NOT is_active`)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

// Ping checks pool connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func scanSession(row pgx.Row) (Session, error) {
	var out Session
	err := row.Scan(
		&out.ID,
		&out.UserID,
		&out.TokenHash,
		&out.ExpiresAt,
		&out.CreatedByIP,
		&out.RevokedAt,
		&out.RevokedByIP,
		&out.ReplacedByTokenHash,
		&out.IsActive,
		&out.CreatedAt,
		&out.UpdatedAt,
	)
	return out, err
}

func pgIsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23505" // unique_violation
}

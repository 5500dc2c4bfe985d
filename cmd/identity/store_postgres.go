package identity

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store over PostgreSQL.
//
// The pgx pool is owned by the caller; this store must not close it.
// Table identifiers are quoted with pgx.Identifier.
type PostgresStore struct {
	pool     *pgxpool.Pool
	accounts string
	roles    string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema qualifies the accounts and roles tables with schema.
// Without it they resolve through the connection's search_path.
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return fmt.Errorf("identity: empty schema")
		}
		if !pgIdentRe.MatchString(schema) {
			return fmt.Errorf("identity: invalid schema identifier")
		}
		s.accounts = pgx.Identifier{schema, "accounts"}.Sanitize()
		s.roles = pgx.Identifier{schema, "roles"}.Sanitize()
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{
		pool:     pool,
		accounts: pgx.Identifier{"accounts"}.Sanitize(),
		roles:    pgx.Identifier{"roles"}.Sanitize(),
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
		return nil, fmt.Errorf("identity: nil pool")
	}
	return st, nil
}

// GetAccount implements Store.
func (s *PostgresStore) GetAccount(ctx context.Context, id int64) (Account, error) {
	a, err := s.GetAccountAuth(ctx, id)
	if err != nil {
		return Account{}, err
	}
	return a.Account, nil
}

// GetAccountAuth implements Store.
func (s *PostgresStore) GetAccountAuth(ctx context.Context, id int64) (AccountAuth, error) {
	const op = "identity.GetAccountAuth"

	var out AccountAuth
	err := s.pool.QueryRow(ctx, `
		SELECT a.id, a.username, a.password_digest, a.state, a.role_id, r.name,
		       a.created_at, a.updated_at
		FROM `+s.accounts+` a
		JOIN `+s.roles+` r ON r.id = a.role_id
		WHERE a.id = $1`,
		id,
	).Scan(
		&out.ID, &out.Username, &out.PasswordDigest, &out.State, &out.RoleID, &out.RoleName,
		&out.CreatedAt, &out.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return AccountAuth{}, notFound(op, id)
	}
	if err != nil {
		return AccountAuth{}, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

// UpdatePasswordDigest implements Store.
func (s *PostgresStore) UpdatePasswordDigest(ctx context.Context, id int64, digest string, now time.Time) error {
	const op = "identity.UpdatePasswordDigest"

	if strings.TrimSpace(digest) == "" {
		return invalid(op, "empty digest")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE `+s.accounts+` SET password_digest = $2, updated_at = $3 WHERE id = $1`,
		id, digest, now.UTC(),
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return notFound(op, id)
	}
	return nil
}

// Ping implements Store.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

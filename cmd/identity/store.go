package identity

import (
	"context"
	"time"
)

// Account is the public view of an account.
type Account struct {
	ID       int64
	Username string
	State    string
	RoleID   int
	RoleName string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Active reports whether the account may log in.
func (a Account) Active() bool { return a.State == StateActive }

// AccountAuth is an account together with its stored credential digest.
// It must never be serialized to clients.
type AccountAuth struct {
	Account
	PasswordDigest string
}

// Store is the account persistence boundary.
type Store interface {
	// GetAccount loads an account with its role name. Missing ids return ErrNotFound.
	GetAccount(ctx context.Context, id int64) (Account, error)
	// GetAccountAuth is GetAccount plus the stored credential digest.
	GetAccountAuth(ctx context.Context, id int64) (AccountAuth, error)
	// UpdatePasswordDigest replaces the stored digest. Missing ids return ErrNotFound.
	UpdatePasswordDigest(ctx context.Context, id int64, digest string, now time.Time) error
	Ping(ctx context.Context) error
}

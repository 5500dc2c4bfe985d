package identity

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-process Store used for local runs and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[int64]AccountAuth
}

// NewMemoryStore builds a store holding copies of accounts.
func NewMemoryStore(accounts []AccountAuth) *MemoryStore {
	m := &MemoryStore{accounts: make(map[int64]AccountAuth, len(accounts))}
	for _, a := range accounts {
		m.accounts[a.ID] = a
	}
	return m
}

// NewSeededMemoryStore returns a MemoryStore loaded with SeedAccounts.
func NewSeededMemoryStore() *MemoryStore {
	return NewMemoryStore(SeedAccounts())
}

// Put inserts or replaces an account.
func (m *MemoryStore) Put(a AccountAuth) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[a.ID] = a
}

// GetAccount implements Store.
func (m *MemoryStore) GetAccount(ctx context.Context, id int64) (Account, error) {
	a, err := m.GetAccountAuth(ctx, id)
	if err != nil {
		return Account{}, err
	}
	return a.Account, nil
}

// GetAccountAuth implements Store.
func (m *MemoryStore) GetAccountAuth(ctx context.Context, id int64) (AccountAuth, error) {
	const op = "identity.GetAccountAuth"

	if err := ctx.Err(); err != nil {
		return AccountAuth{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.accounts[id]
	if !ok {
		return AccountAuth{}, notFound(op, id)
	}
	return a, nil
}

// UpdatePasswordDigest implements Store.
func (m *MemoryStore) UpdatePasswordDigest(ctx context.Context, id int64, digest string, now time.Time) error {
	const op = "identity.UpdatePasswordDigest"

	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(digest) == "" {
		return invalid(op, "empty digest")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.accounts[id]
	if !ok {
		return notFound(op, id)
	}
	a.PasswordDigest = digest
	a.UpdatedAt = now.UTC()
	m.accounts[id] = a
	return nil
}

// Ping implements Store.
func (m *MemoryStore) Ping(ctx context.Context) error { return ctx.Err() }

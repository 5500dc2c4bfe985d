package session

import (
	"context"
	"errors"
	"strings"
)

// PurgeKind selects which sessions Purge deletes.
type PurgeKind string

const (
	// PurgeAll deletes every session.
	PurgeAll PurgeKind = "all"
	// PurgeInactive deletes revoked sessions only.
	PurgeInactive PurgeKind = "inactive"
)

// ParsePurgeKind parses "all" or "inactive" (case-insensitive).
func ParsePurgeKind(s string) (PurgeKind, error) {
	switch PurgeKind(strings.ToLower(strings.TrimSpace(s))) {
	case PurgeAll:
		return PurgeAll, nil
	case PurgeInactive:
		return PurgeInactive, nil
	default:
		return "", &ValidationError{Field: "type", Reason: `must be "all" or "inactive"`}
	}
}

// List returns every session for administrative inspection.
func (m *Manager) List(ctx context.Context) ([]Session, error) {
	ctx, cancel := m.storeCtx(ctx)
	defer cancel()

	out, err := m.store.List(ctx)
	if err != nil {
		return nil, &PersistenceError{Op: "list", Err: err}
	}
	return out, nil
}

// Delete physically removes one session. Returns ErrSessionNotFound if absent.
func (m *Manager) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return &ValidationError{Field: "id", Reason: "required"}
	}

	ctx, cancel := m.storeCtx(ctx)
	defer cancel()

	err := m.store.Delete(ctx, id)
	if errors.Is(err, ErrSessionNotFound) {
		return ErrSessionNotFound
	}
	if err != nil {
		return &PersistenceError{Op: "delete", Err: err}
	}
	return nil
}

// Purge bulk-deletes sessions and returns how many were removed.
func (m *Manager) Purge(ctx context.Context, kind PurgeKind) (int64, error) {
	ctx, cancel := m.storeCtx(ctx)
	defer cancel()

	var (
		n   int64
		err error
	)
	switch kind {
	case PurgeAll:
		n, err = m.store.DeleteAll(ctx)
	case PurgeInactive:
		n, err = m.store.DeleteInactive(ctx)
	default:
		return 0, &ValidationError{Field: "type", Reason: `must be "all" or "inactive"`}
	}
	if err != nil {
		return 0, &PersistenceError{Op: "purge_" + string(kind), Err: err}
	}
	return n, nil
}

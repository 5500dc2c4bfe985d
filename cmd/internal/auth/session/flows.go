package session

import (
	"context"
	"errors"
)

// Grant is a session together with the raw secret handed to the client.
// RawSecret is never persisted.
type Grant struct {
	Session   Session
	RawSecret string
}

// Start opens a new session for userID (login).
func (m *Manager) Start(ctx context.Context, userID int64, sourceIP string) (Grant, error) {
	raw, digest, err := m.GeneratePair()
	if err != nil {
		return Grant{}, err
	}

	s, err := m.Issue(ctx, userID, digest, m.cfg.RefreshTTL, sourceIP)
	if err != nil {
		return Grant{}, err
	}
	return Grant{Session: s, RawSecret: raw}, nil
}

// Renew exchanges an active (userID, rawSecret) for a new session (refresh).
//
// The successor is issued before the old session is revoked. If the revocation
// fails with a persistence error both sessions stay active and the error is
// returned; the client keeps its old secret and may retry.
//
// If another request rotated the old session first, the successor issued here is
// revoked best-effort and ErrSessionNotFound is returned.
func (m *Manager) Renew(ctx context.Context, userID int64, rawSecret string, sourceIP string) (Grant, error) {
	old, err := m.FindActive(ctx, userID, rawSecret)
	if err != nil {
		return Grant{}, err
	}

	raw, digest, err := m.GeneratePair()
	if err != nil {
		return Grant{}, err
	}

	next, err := m.Issue(ctx, userID, digest, m.cfg.RefreshTTL, sourceIP)
	if err != nil {
		return Grant{}, err
	}

	if err := m.Rotate(ctx, &old, digest, sourceIP); err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			_ = m.Revoke(context.WithoutCancel(ctx), &next, sourceIP, "")
		}
		return Grant{}, err
	}

	return Grant{Session: next, RawSecret: raw}, nil
}

// End revokes the active session matching (userID, rawSecret) without a successor (logout).
// It reports whether a session was revoked; a missing session is not an error.
func (m *Manager) End(ctx context.Context, userID int64, rawSecret string, sourceIP string) (bool, error) {
	s, err := m.FindActive(ctx, userID, rawSecret)
	if errors.Is(err, ErrSessionNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	err = m.Revoke(ctx, &s, sourceIP, "")
	if errors.Is(err, ErrSessionNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Package session implements taskmgr's refresh-session lifecycle.
//
// A refresh session is a durable row keyed by (user id, token digest). It starts
// Active and moves one way to Revoked, either by rotation (linking the digest of
// its successor) or by logout (linking the empty string).
//
// Raw refresh secrets never reach the store; only token.Hasher digests do.
// Access tokens live in package access and are not tracked here.
//
// Store implementations exist for PostgreSQL (pgx), SQLite (modernc) and memory.
package session

// Package repository implements Postgres persistence for Pildhora
// records. Methods that participate in the medication outbox take an
// explicit pgx.Tx so a mutation and its event row commit atomically.
package repository

import "errors"

// Sentinel errors shared across repositories. Callers test with
// errors.Is to map them onto HTTP statuses.
var (
	ErrNotFound     = errors.New("not found")
	ErrVersionStale = errors.New("record version is stale")
	ErrCodeUsed     = errors.New("connection code already used")
	ErrCodeExpired  = errors.New("connection code expired")
	ErrLinkExists   = errors.New("device link already active")
	ErrLinkRevoked  = errors.New("device link already revoked")
)

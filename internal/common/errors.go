// Package common defines shared constants and sentinel errors used across
// client and server layers of FamLedger. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// ErrNotFound is returned for missing records, conflicts and snapshots.
	// Soft-deleted records are reported as not found by the write path.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized is an access gate denial or an authentication failure.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrVersionConflict means the caller's expected version is stale.
	// Reload the record and retry with its current version.
	ErrVersionConflict = errors.New("version conflict")

	// ErrInvalidArgument rejects malformed requests (bad resolution, bad cursor, empty payload).
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNetwork wraps transient transport failures. Safe to retry.
	ErrNetwork = errors.New("network error")

	// ErrCorruption marks state that breaks a versioning invariant.
	// It must never be repaired silently.
	ErrCorruption = errors.New("corruption")

	// ErrAlreadyExists is returned for duplicate user names and memberships.
	ErrAlreadyExists = errors.New("already exists")

	ErrSyncInProgress = errors.New("sync already in progress")
	ErrInternal       = errors.New("internal error")

	// Auth errors (invalid, malformed or expired token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

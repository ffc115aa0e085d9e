// Package metadata is a small key/value table for client state that is not a
// record: the logged-in session and per-household sync cursors.
package metadata

import (
	"context"
	"time"
)

type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) (map[string][]byte, error)

	GetInt64(ctx context.Context, key string) (int64, error)
	SetInt64(ctx context.Context, key string, v int64) error
	GetTime(ctx context.Context, key string) (*time.Time, error)
	SetTime(ctx context.Context, key string, t time.Time) error
}

const (
	KeyUserID       = "session.user_id"
	KeyUserName     = "session.user_name"
	KeyAccessToken  = "session.access_token"
	KeyRefreshToken = "session.refresh_token"
	KeyHousehold    = "session.household_id"
	KeySalt         = "auth.salt"
	KeyVerifier     = "auth.verifier"
)

// LastSeqKey holds the highest remote change sequence applied for a household.
func LastSeqKey(householdID string) string { return "sync.last_seq." + householdID }

// LastSyncKey holds the completion time of the last successful sync pass.
func LastSyncKey(householdID string) string { return "sync.last_time." + householdID }

package models

import "time"

type SyncState int

const (
	StateIdle SyncState = iota
	StateSyncing
	StateConflictsPending
)

func (s SyncState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSyncing:
		return "syncing"
	case StateConflictsPending:
		return "conflicts_pending"
	}
	return "unknown"
}

type SyncStatus struct {
	State          SyncState  `json:"state"`
	IsOnline       bool       `json:"is_online"`
	IsSyncing      bool       `json:"is_syncing"`
	PendingChanges uint       `json:"pending_changes"`
	Conflicts      uint       `json:"conflicts"`
	LastSyncTime   *time.Time `json:"last_sync_time,omitempty"`
}

// SyncMetrics are cumulative counters for the lifetime of a session.
type SyncMetrics struct {
	MutationsSynced   uint64 `json:"mutations_synced"`
	ConflictsDetected uint64 `json:"conflicts_detected"`
	ConflictsResolved uint64 `json:"conflicts_resolved"`
	SyncFailures      uint64 `json:"sync_failures"`
}

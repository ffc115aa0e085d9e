package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dmitrijs2005/famledger/internal/common"
)

// VersionSnapshot is the immutable copy of a record taken when a mutation
// is accepted. PrevVersion is the version of the snapshot logged before it
// on this device; a remote jump over versions never seen locally leaves
// PrevVersion < Version-1.
type VersionSnapshot struct {
	EntityType  string          `json:"entity_type"`
	EntityID    string          `json:"entity_id"`
	Version     int64           `json:"version"`
	PrevVersion int64           `json:"prev_version"`
	Payload     json.RawMessage `json:"payload"`
	Deleted     bool            `json:"deleted"`
	Actor       string          `json:"actor"`
	RecordedAt  time.Time       `json:"recorded_at"`
	ContentHash uint64          `json:"content_hash"`
}

// SnapshotOf captures r as it is now, attributing it to its last writer.
func SnapshotOf(r *Record) *VersionSnapshot {
	return &VersionSnapshot{
		EntityType:  r.EntityType,
		EntityID:    r.ID,
		Version:     r.Version,
		PrevVersion: r.Version - 1,
		Payload:     append(json.RawMessage(nil), r.Payload...),
		Deleted:     r.Deleted(),
		Actor:       r.UpdatedBy,
		RecordedAt:  r.UpdatedAt,
		ContentHash: HashPayload(r.Payload),
	}
}

// Skipped is the number of versions between PrevVersion and Version that
// have no snapshot on this device.
func (s *VersionSnapshot) Skipped() int64 {
	if n := s.Version - s.PrevVersion - 1; n > 0 {
		return n
	}
	return 0
}

func HashPayload(p []byte) uint64 {
	return xxhash.Sum64(p)
}

// Verify reports ErrCorruption when the payload no longer matches the hash
// recorded at append time.
func (s *VersionSnapshot) Verify() error {
	if got := HashPayload(s.Payload); got != s.ContentHash {
		return fmt.Errorf("%w: snapshot %s/%s@%d hash mismatch (%x != %x)",
			common.ErrCorruption, s.EntityType, s.EntityID, s.Version, got, s.ContentHash)
	}
	return nil
}

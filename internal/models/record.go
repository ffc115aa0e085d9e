// Package models holds the types shared by the local sync core, the wire
// protocol and the server: records, snapshots, pending mutations, conflicts
// and sync status.
package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/famledger/internal/common"
	ulid "github.com/oklog/ulid/v2"
)

// NewID returns a new lexicographically sortable identifier.
func NewID() string {
	return ulid.Make().String()
}

// Record is a household-scoped domain entity (expense, budget, event,
// category). Payload is opaque to the sync core.
type Record struct {
	ID          string          `json:"id"`
	EntityType  string          `json:"entity_type"`
	HouseholdID string          `json:"household_id"`
	Version     int64           `json:"version"`
	CreatedAt   time.Time       `json:"created_at"`
	CreatedBy   string          `json:"created_by"`
	UpdatedAt   time.Time       `json:"updated_at"`
	UpdatedBy   string          `json:"updated_by"`
	DeletedAt   *time.Time      `json:"deleted_at,omitempty"`
	Payload     json.RawMessage `json:"payload"`
}

func (r *Record) Deleted() bool {
	return r.DeletedAt != nil
}

// Clone returns a deep copy, so callers can stamp a new version without
// touching the value they loaded.
func (r *Record) Clone() *Record {
	c := *r
	if r.DeletedAt != nil {
		t := *r.DeletedAt
		c.DeletedAt = &t
	}
	if r.Payload != nil {
		c.Payload = append(json.RawMessage(nil), r.Payload...)
	}
	return &c
}

// Validate checks the fields every stored record must carry.
func (r *Record) Validate() error {
	switch {
	case r.ID == "":
		return fmt.Errorf("%w: record without id", common.ErrCorruption)
	case r.HouseholdID == "":
		return fmt.Errorf("%w: record %s without household", common.ErrCorruption, r.ID)
	case r.EntityType == "":
		return fmt.Errorf("%w: record %s without entity type", common.ErrCorruption, r.ID)
	case r.Version < 1:
		return fmt.Errorf("%w: record %s has version %d", common.ErrCorruption, r.ID, r.Version)
	case r.CreatedBy == "" || r.CreatedAt.IsZero():
		return fmt.Errorf("%w: record %s missing creation stamp", common.ErrCorruption, r.ID)
	}
	return nil
}

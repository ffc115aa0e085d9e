package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/famledger/internal/common"
)

type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

func (o Operation) Valid() bool {
	return o == OpCreate || o == OpUpdate || o == OpDelete
}

// PendingMutation is a local write the remote has not confirmed yet.
// BaseVersion is the version the write was made against (0 for create).
type PendingMutation struct {
	ID          string          `json:"id"`
	EntityType  string          `json:"entity_type"`
	EntityID    string          `json:"entity_id"`
	HouseholdID string          `json:"household_id"`
	Payload     json.RawMessage `json:"payload"`
	Operation   Operation       `json:"operation"`
	BaseVersion int64           `json:"base_version"`
	ActorID     string          `json:"actor_id"`
	CreatedAt   time.Time       `json:"created_at"`
}

// EntityKey identifies a record across entity types.
type EntityKey struct {
	EntityType string
	EntityID   string
}

func (m *PendingMutation) Key() EntityKey {
	return EntityKey{EntityType: m.EntityType, EntityID: m.EntityID}
}

// Resolution selects how a conflict is settled.
type Resolution string

const (
	ResolveLocal  Resolution = "local"
	ResolveRemote Resolution = "remote"
	ResolveMerge  Resolution = "merge"
)

func ParseResolution(s string) (Resolution, error) {
	switch r := Resolution(s); r {
	case ResolveLocal, ResolveRemote, ResolveMerge:
		return r, nil
	}
	return "", fmt.Errorf("%w: unknown resolution %q", common.ErrInvalidArgument, s)
}

// Conflict records a divergence between held local edits and the remote.
// LocalVersion is the base version the local edits were made against.
type Conflict struct {
	ID            string          `json:"id"`
	EntityType    string          `json:"entity_type"`
	EntityID      string          `json:"entity_id"`
	HouseholdID   string          `json:"household_id"`
	LocalVersion  int64           `json:"local_version"`
	LocalPayload  json.RawMessage `json:"local_payload"`
	LocalDeleted  bool            `json:"local_deleted"`
	RemoteVersion int64           `json:"remote_version"`
	RemotePayload json.RawMessage `json:"remote_payload"`
	RemoteDeleted bool            `json:"remote_deleted"`
	RemoteActor   string          `json:"remote_actor"`
	DetectedAt    time.Time       `json:"detected_at"`
}

func (c *Conflict) Key() EntityKey {
	return EntityKey{EntityType: c.EntityType, EntityID: c.EntityID}
}

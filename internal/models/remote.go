package models

import "encoding/json"

// WriteRequest asks the remote to apply a mutation if its current version of
// the entity equals ExpectedVersion.
type WriteRequest struct {
	MutationID      string          `json:"mutation_id"`
	EntityType      string          `json:"entity_type"`
	EntityID        string          `json:"entity_id"`
	HouseholdID     string          `json:"household_id"`
	Payload         json.RawMessage `json:"payload"`
	Operation       Operation       `json:"operation"`
	ExpectedVersion int64           `json:"expected_version"`
	ActorID         string          `json:"actor_id,omitempty"`
}

type WriteResult struct {
	Accepted   bool  `json:"accepted"`
	NewVersion int64 `json:"new_version"`
	Seq        int64 `json:"seq"`
}

// RemoteChange is one accepted write as seen by other devices. Seq is the
// household-wide change counter at the time the write was accepted.
type RemoteChange struct {
	Seq        int64  `json:"seq"`
	MutationID string `json:"mutation_id,omitempty"`
	Record     Record `json:"record"`
}

// RemoteRecord is the remote's current state of a record together with the
// id of the mutation that produced it, so a retried write can be recognised.
type RemoteRecord struct {
	Record
	MutationID string `json:"mutation_id,omitempty"`
}

type Household struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedBy string `json:"created_by"`
}

type Member struct {
	HouseholdID string `json:"household_id"`
	UserID      string `json:"user_id"`
	UserName    string `json:"user_name,omitempty"`
	Role        string `json:"role"`
}

const (
	RoleOwner  = "owner"
	RoleMember = "member"
)

// Package records holds the server's authoritative copy of household
// records and the per-household change sequence that Pull and the change
// feed are ordered by.
//
// Two Store backends exist: PostgresStore (row locks inside a
// transaction) and DynamoStore (an atomic counter plus a conditional put).
package records

import (
	"context"

	"github.com/dmitrijs2005/famledger/internal/models"
)

// Store is what the record service needs from a backend.
type Store interface {
	// Current returns the stored record, common.ErrNotFound when absent.
	Current(ctx context.Context, entityType, id string) (*models.RemoteRecord, error)

	// Apply stores change.Record if the stored version still equals
	// expected (0 meaning absent) and stamps change.Seq with the next
	// household sequence. A stale expected yields common.ErrVersionConflict.
	Apply(ctx context.Context, change *models.RemoteChange, expected int64) error

	// Changes lists records of the household changed after since, in
	// sequence order, and the household's latest sequence.
	Changes(ctx context.Context, householdID string, since int64, limit int) ([]models.RemoteChange, int64, error)
}

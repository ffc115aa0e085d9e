// Package history stores the append-only version log of every record.
package history

import (
	"context"

	"github.com/dmitrijs2005/famledger/internal/models"
)

type Repository interface {
	// Append logs a snapshot. A second snapshot for the same version is
	// common.ErrCorruption.
	Append(ctx context.Context, s *models.VersionSnapshot) error

	// List returns the retained snapshots of one entity, oldest first.
	List(ctx context.Context, entityType, entityID string) ([]*models.VersionSnapshot, error)

	// At returns the snapshot of version.
	At(ctx context.Context, entityType, entityID string, version int64) (*models.VersionSnapshot, error)

	Latest(ctx context.Context, entityType, entityID string) (*models.VersionSnapshot, error)

	// Prune drops all but the newest keep snapshots. keep <= 0 keeps everything.
	Prune(ctx context.Context, entityType, entityID string, keep int) (int64, error)

	// DropAfter removes the snapshots newer than version: local edits that
	// were discarded in favour of the remote state.
	DropAfter(ctx context.Context, entityType, entityID string, version int64) (int64, error)
}

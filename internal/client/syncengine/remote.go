package syncengine

import (
	"context"

	"github.com/dmitrijs2005/famledger/internal/models"
)

// RemoteChannel is the engine's view of the server.
type RemoteChannel interface {
	// FetchCurrentVersion returns 0 when the remote has no such record.
	FetchCurrentVersion(ctx context.Context, entityType, id string) (int64, error)
	FetchRecord(ctx context.Context, entityType, id string) (*models.RemoteRecord, error)
	// ApplyWrite fails with common.ErrVersionConflict when the remote
	// version differs from req.ExpectedVersion.
	ApplyWrite(ctx context.Context, req models.WriteRequest) (*models.WriteResult, error)
	// Pull returns the household changes after since, and the latest seq.
	Pull(ctx context.Context, householdID string, since int64) ([]models.RemoteChange, int64, error)
	Subscribe(ctx context.Context, householdID string) (<-chan models.RemoteChange, error)
}

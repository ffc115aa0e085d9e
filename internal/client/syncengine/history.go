package syncengine

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/famledger/internal/common"
	"github.com/dmitrijs2005/famledger/internal/models"
)

// GetVersionHistory returns the retained snapshots of a record, oldest first.
func (e *Engine) GetVersionHistory(ctx context.Context, id string) ([]*models.VersionSnapshot, error) {
	rec, err := e.repos.Records(e.db).Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return e.repos.History(e.db).List(ctx, rec.EntityType, rec.ID)
}

// RevertToVersion writes the payload of an earlier snapshot as a new
// version. History is never rewritten.
func (e *Engine) RevertToVersion(ctx context.Context, id string, version int64) (*models.Record, error) {
	rec, err := e.repos.Records(e.db).Get(ctx, id)
	if err != nil {
		return nil, err
	}

	snap, err := e.repos.History(e.db).At(ctx, rec.EntityType, rec.ID, version)
	if errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("version %d of %s is not retained: %w", version, id, common.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	return e.gateway.Update(ctx, e.userID, id, snap.Payload, rec.Version)
}

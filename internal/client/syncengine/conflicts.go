package syncengine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/famledger/internal/client/mutation"
	"github.com/dmitrijs2005/famledger/internal/common"
	"github.com/dmitrijs2005/famledger/internal/dbx"
	"github.com/dmitrijs2005/famledger/internal/models"
)

// Conflicts lists the open conflicts of the household, oldest first.
func (e *Engine) Conflicts(ctx context.Context) ([]*models.Conflict, error) {
	return e.repos.Conflicts(e.db).List(ctx, e.householdID)
}

// ResolveConflict settles a conflict and returns the resulting local record.
//
//   - remote adopts the remote state and discards the held local edits.
//   - local re-applies the current local state on top of the remote version.
//   - merge writes mergedPayload on top of the remote version.
//
// local and merge queue one mutation based on the remote version; it is
// pushed by the next sync pass.
func (e *Engine) ResolveConflict(ctx context.Context, conflictID string, resolution models.Resolution, mergedPayload json.RawMessage) (*models.Record, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, err := e.repos.Conflicts(e.db).Get(ctx, conflictID)
	if errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("conflict %s: %w", conflictID, common.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	local, err := e.repos.Records(e.db).Get(ctx, c.EntityID)
	if err != nil {
		return nil, fmt.Errorf("local side of conflict %s: %w", c.ID, err)
	}
	remote := remoteSide(local, c)

	drop := mutation.TxHook(func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := e.repos.Pending(tx).DeleteForEntity(ctx, c.EntityType, c.EntityID); err != nil {
			return err
		}
		// the held local edits never reached the remote; their versions
		// belong to the remote writer now
		if _, err := e.repos.History(tx).DropAfter(ctx, c.EntityType, c.EntityID, c.LocalVersion); err != nil {
			return err
		}
		return e.repos.Conflicts(tx).Delete(ctx, c.ID)
	})

	var rec *models.Record
	switch resolution {
	case models.ResolveRemote:
		rec, err = e.gateway.ApplyRemote(ctx, remote, drop)
	case models.ResolveLocal:
		rec, err = e.gateway.Rebase(ctx, e.userID, remote, local.Payload, local.Deleted(), drop)
	case models.ResolveMerge:
		if len(mergedPayload) == 0 {
			return nil, fmt.Errorf("%w: merge needs a payload", common.ErrInvalidArgument)
		}
		rec, err = e.gateway.Rebase(ctx, e.userID, remote, mergedPayload, false, drop)
	default:
		return nil, fmt.Errorf("%w: unknown resolution %q", common.ErrInvalidArgument, resolution)
	}
	if err != nil {
		return nil, err
	}

	e.reporter.ConflictResolved(c)
	e.log.Info(ctx, "conflict resolved", "conflict", c.ID, "entity", c.EntityID,
		"resolution", resolution, "version", rec.Version)

	if models.SyncState(e.state.Load()) != models.StateSyncing {
		if err := e.settle(ctx); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

// remoteSide rebuilds the remote record of a conflict from the local row,
// so a conflict can be resolved while offline.
func remoteSide(local *models.Record, c *models.Conflict) *models.Record {
	r := local.Clone()
	r.Version = c.RemoteVersion
	r.Payload = c.RemotePayload
	r.UpdatedBy = c.RemoteActor
	r.UpdatedAt = c.DetectedAt
	r.DeletedAt = nil
	if c.RemoteDeleted {
		at := c.DetectedAt
		r.DeletedAt = &at
	}
	if r.UpdatedBy == "" {
		r.UpdatedBy = r.CreatedBy
	}
	return r
}

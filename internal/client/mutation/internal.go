package mutation

import (
	"context"
	"encoding/json"

	"github.com/dmitrijs2005/famledger/internal/dbx"
	"github.com/dmitrijs2005/famledger/internal/models"
)

// ApplyRemote stores a record exactly as the remote reported it, authored by
// the remote writer. No access check runs and nothing is enqueued.
func (g *Gateway) ApplyRemote(ctx context.Context, remote *models.Record, before TxHook) (*models.Record, error) {
	if err := remote.Validate(); err != nil {
		return nil, err
	}
	rec := remote.Clone()

	err := dbx.WithTx(ctx, g.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if before != nil {
			if err := before(ctx, tx); err != nil {
				return err
			}
		}
		return g.persist(ctx, tx, rec)
	})
	if err != nil {
		return nil, err
	}

	g.log.Debug(ctx, "remote change applied", "record", rec.ID, "version", rec.Version, "author", rec.UpdatedBy)
	return rec, nil
}

// Rebase adopts the remote state and then re-applies a local write on top of
// it, queued with the remote version as its base. deleted selects a delete
// instead of an update; an update over a remotely deleted record restores it.
func (g *Gateway) Rebase(ctx context.Context, actorID string, remote *models.Record, payload json.RawMessage, deleted bool, before TxHook) (*models.Record, error) {
	if err := remote.Validate(); err != nil {
		return nil, err
	}
	if !deleted {
		if err := validatePayload(payload); err != nil {
			return nil, err
		}
	}

	return dbx.WithTxValue(ctx, g.db, nil, func(ctx context.Context, tx dbx.DBTX) (*models.Record, error) {
		if before != nil {
			if err := before(ctx, tx); err != nil {
				return nil, err
			}
		}

		base := remote.Clone()
		if err := g.persist(ctx, tx, base); err != nil {
			return nil, err
		}

		now := g.stamp()
		next := base.Clone()
		next.Version++
		next.UpdatedAt = now
		next.UpdatedBy = actorID

		op := models.OpUpdate
		if deleted {
			op = models.OpDelete
			next.DeletedAt = &now
		} else {
			next.Payload = payload
			next.DeletedAt = nil
		}
		if err := g.commitLocal(ctx, tx, next, op, base.Version); err != nil {
			return nil, err
		}
		return next, nil
	})
}

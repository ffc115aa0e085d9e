package syncengine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/famledger/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/famledger/internal/common"
	"github.com/dmitrijs2005/famledger/internal/dbx"
	"github.com/dmitrijs2005/famledger/internal/models"
)

// ApplyRemoteChange folds one remote change into the local store. Changes
// older than the local state are ignored; changes that diverge from held
// local edits become (or update) a conflict.
func (e *Engine) ApplyRemoteChange(ctx context.Context, ch models.RemoteChange) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.apply(ctx, ch); err != nil {
		return err
	}
	if models.SyncState(e.state.Load()) != models.StateSyncing {
		return e.settle(ctx)
	}
	return nil
}

func (e *Engine) pull(ctx context.Context, res *Result) error {
	meta := e.repos.Metadata(e.db)
	key := metadata.LastSeqKey(e.householdID)

	since, err := meta.GetInt64(ctx, key)
	if err != nil {
		return err
	}
	changes, latest, err := e.remote.Pull(ctx, e.householdID, since)
	if err != nil {
		return remoteFailure(err)
	}

	for _, ch := range changes {
		err := e.apply(ctx, ch)
		switch {
		case err == nil:
			res.Pulled++
		case entityFault(err):
			res.Failed++
			k := models.EntityKey{EntityType: ch.Record.EntityType, EntityID: ch.Record.ID}
			e.log.Error(ctx, "remote change rejected", "entity", k.EntityID, "seq", ch.Seq, "error", err)
			e.reporter.EntityFailed(k, err)
		default:
			return err
		}
	}

	if latest > since {
		return meta.SetInt64(ctx, key, latest)
	}
	return nil
}

func (e *Engine) apply(ctx context.Context, ch models.RemoteChange) error {
	rec := &ch.Record
	if err := rec.Validate(); err != nil {
		return err
	}
	if rec.HouseholdID != e.householdID {
		e.log.Warn(ctx, "ignoring change for another household", "entity", rec.ID, "household", rec.HouseholdID)
		return nil
	}

	c, err := e.repos.Conflicts(e.db).GetByEntity(ctx, rec.EntityType, rec.ID)
	switch {
	case err == nil:
		if rec.Version <= c.RemoteVersion {
			return nil
		}
		setRemote(c, rec, e.now())
		return e.repos.Conflicts(e.db).UpdateRemote(ctx, c)
	case !errors.Is(err, common.ErrNotFound):
		return err
	}

	pending, err := e.repos.Pending(e.db).ListForEntity(ctx, rec.EntityType, rec.ID)
	if err != nil {
		return err
	}
	if len(pending) > 0 {
		if i := indexOf(pending, ch.MutationID); i >= 0 {
			// the remote only accepts a chain in order, so everything
			// queued before the echoed mutation landed too
			for _, m := range pending[:i] {
				if err := e.acknowledge(ctx, m, m.BaseVersion+1); err != nil {
					return err
				}
			}
			return e.acknowledge(ctx, pending[i], rec.Version)
		}
		if first := pending[0]; rec.Version > first.BaseVersion {
			_, err := e.raise(ctx, first, rec)
			return err
		}
		return nil
	}

	local, err := e.repos.Records(e.db).Get(ctx, rec.ID)
	switch {
	case errors.Is(err, common.ErrNotFound):
	case err != nil:
		return err
	case rec.Version <= local.Version:
		return nil
	}

	_, err = e.gateway.ApplyRemote(ctx, rec, nil)
	return err
}

func setRemote(c *models.Conflict, rec *models.Record, now time.Time) {
	c.RemoteVersion = rec.Version
	c.RemotePayload = rec.Payload
	c.RemoteDeleted = rec.Deleted()
	c.RemoteActor = rec.UpdatedBy
	c.DetectedAt = now.UTC()
}

// raise records a divergence between the held local edits starting at
// first and the remote state rec. An existing conflict has its remote
// side refreshed instead.
func (e *Engine) raise(ctx context.Context, first *models.PendingMutation, rec *models.Record) (*models.Conflict, error) {
	var created bool
	c, err := dbx.WithTxValue(ctx, e.db, nil, func(ctx context.Context, tx dbx.DBTX) (*models.Conflict, error) {
		repo := e.repos.Conflicts(tx)

		c, err := repo.GetByEntity(ctx, first.EntityType, first.EntityID)
		if err == nil {
			if rec.Version > c.RemoteVersion {
				setRemote(c, rec, e.now())
				return c, repo.UpdateRemote(ctx, c)
			}
			return c, nil
		}
		if !errors.Is(err, common.ErrNotFound) {
			return nil, err
		}

		local, err := e.repos.Records(tx).Get(ctx, first.EntityID)
		if err != nil {
			return nil, fmt.Errorf("local side of conflict on %s: %w", first.EntityID, err)
		}

		c = &models.Conflict{
			ID:           models.NewID(),
			EntityType:   first.EntityType,
			EntityID:     first.EntityID,
			HouseholdID:  first.HouseholdID,
			LocalVersion: first.BaseVersion,
			LocalPayload: local.Payload,
			LocalDeleted: local.Deleted(),
		}
		setRemote(c, rec, e.now())
		created = true
		return c, repo.Insert(ctx, c)
	})
	if err != nil {
		return nil, err
	}

	if created {
		e.log.Info(ctx, "conflict detected", "conflict", c.ID, "entity", c.EntityID,
			"local_version", c.LocalVersion, "remote_version", c.RemoteVersion)
		e.reporter.ConflictDetected(c)
	}
	return c, nil
}

func indexOf(pending []*models.PendingMutation, mutationID string) int {
	if mutationID == "" {
		return -1
	}
	for i, m := range pending {
		if m.ID == mutationID {
			return i
		}
	}
	return -1
}

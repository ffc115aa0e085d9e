package mutation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/famledger/internal/client/access"
	"github.com/dmitrijs2005/famledger/internal/client/repositories/repomanager"
	"github.com/dmitrijs2005/famledger/internal/common"
	"github.com/dmitrijs2005/famledger/internal/dbx"
	"github.com/dmitrijs2005/famledger/internal/logging"
	"github.com/dmitrijs2005/famledger/internal/models"
)

// Enqueuer receives the pending mutation of an accepted local write, inside
// the write's transaction.
type Enqueuer interface {
	Enqueue(ctx context.Context, tx dbx.DBTX, m *models.PendingMutation) error
}

// TxHook runs at the start of an internal write's transaction.
type TxHook func(ctx context.Context, tx dbx.DBTX) error

type Gateway struct {
	db        *sql.DB
	repos     repomanager.RepositoryManager
	gate      *access.Gate
	queue     Enqueuer
	retention int
	now       func() time.Time
	log       logging.Logger
}

type Option func(*Gateway)

// WithRetention keeps only the newest n snapshots per entity. n <= 0 keeps all.
func WithRetention(n int) Option {
	return func(g *Gateway) { g.retention = n }
}

func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

func NewGateway(db *sql.DB, repos repomanager.RepositoryManager, gate *access.Gate, queue Enqueuer, log logging.Logger, opts ...Option) *Gateway {
	g := &Gateway{
		db:        db,
		repos:     repos,
		gate:      gate,
		queue:     queue,
		retention: 100,
		now:       time.Now,
		log:       log.With("module", "mutation_gateway"),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

func (g *Gateway) stamp() time.Time {
	return g.now().UTC()
}

func validatePayload(payload json.RawMessage) error {
	var obj map[string]any
	if err := json.Unmarshal(payload, &obj); err != nil || obj == nil {
		return fmt.Errorf("%w: payload must be a JSON object", common.ErrInvalidArgument)
	}
	return nil
}

// Create stores a new record at version 1.
func (g *Gateway) Create(ctx context.Context, actorID, householdID, entityType string, payload json.RawMessage) (*models.Record, error) {
	if !common.ValidEntityType(entityType) {
		return nil, fmt.Errorf("%w: entity type %q", common.ErrInvalidArgument, entityType)
	}
	if err := validatePayload(payload); err != nil {
		return nil, err
	}

	now := g.stamp()
	rec := &models.Record{
		ID:          models.NewID(),
		EntityType:  entityType,
		HouseholdID: householdID,
		Version:     1,
		CreatedAt:   now,
		CreatedBy:   actorID,
		UpdatedAt:   now,
		UpdatedBy:   actorID,
		Payload:     payload,
	}

	err := dbx.WithTx(ctx, g.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if !g.gate.WithLookup(g.repos.Members(tx)).Authorize(ctx, actorID, rec) {
			return fmt.Errorf("%w: %s may not write to household %s", common.ErrUnauthorized, actorID, householdID)
		}
		return g.commitLocal(ctx, tx, rec, models.OpCreate, 0)
	})
	if err != nil {
		return nil, err
	}

	g.log.Debug(ctx, "record created", "record", rec.ID, "type", entityType, "actor", actorID)
	return rec, nil
}

// Update replaces the payload of a live record. expectedVersion must equal
// the stored version.
func (g *Gateway) Update(ctx context.Context, actorID, id string, payload json.RawMessage, expectedVersion int64) (*models.Record, error) {
	if err := validatePayload(payload); err != nil {
		return nil, err
	}

	return dbx.WithTxValue(ctx, g.db, nil, func(ctx context.Context, tx dbx.DBTX) (*models.Record, error) {
		cur, err := g.loadForWrite(ctx, tx, actorID, id)
		if err != nil {
			return nil, err
		}
		if cur.Version != expectedVersion {
			return nil, fmt.Errorf("%w: record %s is at version %d, expected %d",
				common.ErrVersionConflict, id, cur.Version, expectedVersion)
		}

		next := cur.Clone()
		next.Version++
		next.UpdatedAt = g.stamp()
		next.UpdatedBy = actorID
		next.Payload = payload

		if err := g.commitLocal(ctx, tx, next, models.OpUpdate, expectedVersion); err != nil {
			return nil, err
		}
		return next, nil
	})
}

// SoftDelete marks a live record deleted at its current version + 1.
func (g *Gateway) SoftDelete(ctx context.Context, actorID, id string) (*models.Record, error) {
	return dbx.WithTxValue(ctx, g.db, nil, func(ctx context.Context, tx dbx.DBTX) (*models.Record, error) {
		cur, err := g.loadForWrite(ctx, tx, actorID, id)
		if err != nil {
			return nil, err
		}

		now := g.stamp()
		next := cur.Clone()
		next.Version++
		next.UpdatedAt = now
		next.UpdatedBy = actorID
		next.DeletedAt = &now

		if err := g.commitLocal(ctx, tx, next, models.OpDelete, cur.Version); err != nil {
			return nil, err
		}
		return next, nil
	})
}

// loadForWrite runs the checks shared by update and delete, in order:
// not found, unauthorized, corrupted history.
func (g *Gateway) loadForWrite(ctx context.Context, tx dbx.DBTX, actorID, id string) (*models.Record, error) {
	cur, err := g.repos.Records(tx).Get(ctx, id)
	if errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("record %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if cur.Deleted() {
		return nil, fmt.Errorf("record %s is deleted: %w", id, common.ErrNotFound)
	}
	if !g.gate.WithLookup(g.repos.Members(tx)).Authorize(ctx, actorID, cur) {
		return nil, fmt.Errorf("%w: %s may not write to household %s", common.ErrUnauthorized, actorID, cur.HouseholdID)
	}
	if err := g.checkHistory(ctx, tx, cur); err != nil {
		return nil, err
	}
	return cur, nil
}

// checkHistory verifies the newest snapshot matches the stored version.
func (g *Gateway) checkHistory(ctx context.Context, tx dbx.DBTX, cur *models.Record) error {
	latest, err := g.repos.History(tx).Latest(ctx, cur.EntityType, cur.ID)
	if errors.Is(err, common.ErrNotFound) {
		return fmt.Errorf("%w: record %s@%d has no history", common.ErrCorruption, cur.ID, cur.Version)
	}
	if err != nil {
		return err
	}
	if latest.Version != cur.Version {
		g.log.Error(ctx, "history out of step with record", "record", cur.ID, "version", cur.Version, "snapshot", latest.Version)
		return fmt.Errorf("%w: record %s@%d, newest snapshot @%d", common.ErrCorruption, cur.ID, cur.Version, latest.Version)
	}
	return nil
}

func (g *Gateway) persist(ctx context.Context, tx dbx.DBTX, rec *models.Record) error {
	if err := g.repos.Records(tx).Put(ctx, rec); err != nil {
		return err
	}
	h := g.repos.History(tx)
	snap := models.SnapshotOf(rec)
	latest, err := h.Latest(ctx, rec.EntityType, rec.ID)
	switch {
	case errors.Is(err, common.ErrNotFound):
		snap.PrevVersion = 0
	case err != nil:
		return err
	case latest.Version >= rec.Version:
		return fmt.Errorf("%w: record %s@%d, history already at @%d", common.ErrCorruption, rec.ID, rec.Version, latest.Version)
	default:
		snap.PrevVersion = latest.Version
	}
	if err := h.Append(ctx, snap); err != nil {
		return err
	}
	if _, err := h.Prune(ctx, rec.EntityType, rec.ID, g.retention); err != nil {
		return err
	}
	return nil
}

func (g *Gateway) commitLocal(ctx context.Context, tx dbx.DBTX, rec *models.Record, op models.Operation, base int64) error {
	if err := g.persist(ctx, tx, rec); err != nil {
		return err
	}
	return g.queue.Enqueue(ctx, tx, &models.PendingMutation{
		ID:          models.NewID(),
		EntityType:  rec.EntityType,
		EntityID:    rec.ID,
		HouseholdID: rec.HouseholdID,
		Payload:     rec.Payload,
		Operation:   op,
		BaseVersion: base,
		ActorID:     rec.UpdatedBy,
		CreatedAt:   rec.UpdatedAt,
	})
}

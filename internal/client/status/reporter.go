// Package status derives the sync status of a household session and
// publishes sync lifecycle events and counters.
package status

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/famledger/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/famledger/internal/client/repositories/repomanager"
	"github.com/dmitrijs2005/famledger/internal/logging"
	"github.com/dmitrijs2005/famledger/internal/models"
)

// StateSource reports the current sync state machine position.
type StateSource interface {
	State() models.SyncState
}

type Reporter struct {
	db          *sql.DB
	repos       repomanager.RepositoryManager
	householdID string

	state   atomic.Pointer[StateSource]
	online  atomic.Bool
	metrics counters
	bus     *Bus
	now     func() time.Time
	log     logging.Logger
}

func NewReporter(db *sql.DB, repos repomanager.RepositoryManager, householdID string, log logging.Logger) *Reporter {
	return &Reporter{
		db:          db,
		repos:       repos,
		householdID: householdID,
		bus:         NewBus(),
		now:         time.Now,
		log:         log.With("module", "status", "household", householdID),
	}
}

// Observe attaches the state machine whose position Status reports.
func (r *Reporter) Observe(src StateSource) {
	r.state.Store(&src)
}

func (r *Reporter) syncState() models.SyncState {
	if p := r.state.Load(); p != nil && *p != nil {
		return (*p).State()
	}
	return models.StateIdle
}

// Status is computed from the local store on every call.
func (r *Reporter) Status(ctx context.Context) (*models.SyncStatus, error) {
	pending, err := r.repos.Pending(r.db).Count(ctx, r.householdID)
	if err != nil {
		return nil, fmt.Errorf("failed to count pending changes: %w", err)
	}
	conflicts, err := r.repos.Conflicts(r.db).Count(ctx, r.householdID)
	if err != nil {
		return nil, fmt.Errorf("failed to count conflicts: %w", err)
	}
	last, err := r.repos.Metadata(r.db).GetTime(ctx, metadata.LastSyncKey(r.householdID))
	if err != nil {
		return nil, err
	}

	st := r.syncState()
	return &models.SyncStatus{
		State:          st,
		IsOnline:       r.online.Load(),
		IsSyncing:      st == models.StateSyncing,
		PendingChanges: uint(pending),
		Conflicts:      uint(conflicts),
		LastSyncTime:   last,
	}, nil
}

func (r *Reporter) Metrics() models.SyncMetrics {
	return r.metrics.snapshot()
}

func (r *Reporter) Online() bool {
	return r.online.Load()
}

// SetOnline records connectivity and emits online/offline on a change.
func (r *Reporter) SetOnline(ctx context.Context, online bool) {
	if r.online.Swap(online) == online {
		return
	}
	if online {
		r.log.Info(ctx, "connection established")
		r.emit(Event{Type: EventOnline})
	} else {
		r.log.Warn(ctx, "connection lost")
		r.emit(Event{Type: EventOffline})
	}
}

func (r *Reporter) Subscribe(buffer int) (<-chan Event, func()) {
	return r.bus.Subscribe(buffer)
}

func (r *Reporter) Close() {
	r.bus.Close()
}

func (r *Reporter) SyncCompleted(synced int) {
	r.emit(Event{Type: EventSyncCompleted, Synced: synced})
}

func (r *Reporter) MutationsSynced(n int) {
	r.metrics.synced.Add(uint64(n))
}

func (r *Reporter) ConflictDetected(c *models.Conflict) {
	r.metrics.detected.Add(1)
	r.emit(Event{Type: EventConflictDetected, EntityType: c.EntityType, EntityID: c.EntityID, ConflictID: c.ID})
}

func (r *Reporter) ConflictResolved(c *models.Conflict) {
	r.metrics.resolved.Add(1)
	r.emit(Event{Type: EventConflictResolved, EntityType: c.EntityType, EntityID: c.EntityID, ConflictID: c.ID})
}

// SyncFailed counts a failed pass and emits sync_error.
func (r *Reporter) SyncFailed(err error) {
	r.metrics.failures.Add(1)
	r.emit(Event{Type: EventSyncError, Err: err.Error()})
}

// EntityFailed emits sync_error for one entity without failing the pass.
func (r *Reporter) EntityFailed(key models.EntityKey, err error) {
	r.emit(Event{Type: EventSyncError, EntityType: key.EntityType, EntityID: key.EntityID, Err: err.Error()})
}

func (r *Reporter) emit(e Event) {
	e.HouseholdID = r.householdID
	e.At = r.now().UTC()
	if missed := r.bus.Publish(e); missed > 0 {
		r.log.Debug(context.Background(), "event dropped for slow subscribers", "event", e.Type, "subscribers", missed)
	}
}

// Package syncengine reconciles the local store of one household with the
// remote: it pushes pending mutations, applies remote changes, holds
// conflicts until they are resolved and serves version history.
//
// An Engine is bound to one (user, household) pair. Run one per session.
package syncengine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/famledger/internal/client/mutation"
	"github.com/dmitrijs2005/famledger/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/famledger/internal/client/repositories/repomanager"
	"github.com/dmitrijs2005/famledger/internal/client/status"
	"github.com/dmitrijs2005/famledger/internal/common"
	"github.com/dmitrijs2005/famledger/internal/logging"
	"github.com/dmitrijs2005/famledger/internal/models"
)

// Result summarises one sync pass.
type Result struct {
	Synced    int
	Conflicts int
	Failed    int
	Pulled    int
}

type Engine struct {
	db          *sql.DB
	repos       repomanager.RepositoryManager
	gateway     *mutation.Gateway
	queue       *Queue
	remote      RemoteChannel
	reporter    *status.Reporter
	userID      string
	householdID string

	state atomic.Int32
	// mu serialises everything that writes remote state into the local
	// store: sync passes, remote change application and resolutions.
	mu sync.Mutex

	now func() time.Time
	log logging.Logger
}

func NewEngine(db *sql.DB, repos repomanager.RepositoryManager, gateway *mutation.Gateway, queue *Queue,
	remote RemoteChannel, reporter *status.Reporter, userID, householdID string, log logging.Logger) *Engine {
	e := &Engine{
		db:          db,
		repos:       repos,
		gateway:     gateway,
		queue:       queue,
		remote:      remote,
		reporter:    reporter,
		userID:      userID,
		householdID: householdID,
		now:         time.Now,
		log:         log.With("module", "sync_engine", "household", householdID),
	}
	reporter.Observe(e)
	return e
}

func (e *Engine) State() models.SyncState {
	return models.SyncState(e.state.Load())
}

// Restore puts the state machine where the stored conflicts say it is.
// Call it once when a session opens.
func (e *Engine) Restore(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.settle(ctx)
}

// settle leaves Syncing (or re-evaluates an idle state) based on open conflicts.
func (e *Engine) settle(ctx context.Context) error {
	n, err := e.repos.Conflicts(e.db).Count(ctx, e.householdID)
	next := models.StateIdle
	if n > 0 {
		next = models.StateConflictsPending
	}
	e.state.Store(int32(next))
	return err
}

func (e *Engine) begin() error {
	for {
		cur := e.state.Load()
		if models.SyncState(cur) == models.StateSyncing {
			return common.ErrSyncInProgress
		}
		if e.state.CompareAndSwap(cur, int32(models.StateSyncing)) {
			return nil
		}
	}
}

// TriggerSync runs one pass: push pending mutations in order, then pull
// remote changes since the last pass. It returns common.ErrSyncInProgress
// if a pass is already running.
func (e *Engine) TriggerSync(ctx context.Context) (*Result, error) {
	if err := e.begin(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	start := e.now()
	res, err := e.pass(ctx)

	if serr := e.settle(ctx); serr != nil && err == nil {
		err = serr
	}
	if err != nil {
		e.reporter.SyncFailed(err)
		e.log.Warn(ctx, "sync pass failed", "error", err)
		return nil, err
	}

	e.reporter.SyncCompleted(res.Synced)
	e.log.Info(ctx, "sync pass completed",
		"synced", res.Synced, "conflicts", res.Conflicts, "failed", res.Failed,
		"pulled", res.Pulled, "took", e.now().Sub(start))
	return res, nil
}

func (e *Engine) pass(ctx context.Context) (*Result, error) {
	res := &Result{}

	if err := e.push(ctx, res); err != nil {
		return nil, err
	}
	if err := e.pull(ctx, res); err != nil {
		return nil, err
	}

	if err := e.repos.Metadata(e.db).SetTime(ctx, metadata.LastSyncKey(e.householdID), e.now()); err != nil {
		return nil, err
	}
	return res, nil
}

// entityFault reports errors that halt one entity without failing the pass.
func entityFault(err error) bool {
	return errors.Is(err, common.ErrCorruption) ||
		errors.Is(err, common.ErrUnauthorized) ||
		errors.Is(err, common.ErrInvalidArgument) ||
		errors.Is(err, common.ErrNotFound)
}

// remoteFailure wraps transport errors so callers can test for ErrNetwork.
func remoteFailure(err error) error {
	if errors.Is(err, common.ErrNetwork) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", common.ErrNetwork, err)
}

func (e *Engine) push(ctx context.Context, res *Result) error {
	pending, err := e.queue.List(ctx, e.db)
	if err != nil {
		return err
	}

	var order []models.EntityKey
	groups := make(map[models.EntityKey][]*models.PendingMutation)
	for _, m := range pending {
		k := m.Key()
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], m)
	}

	for _, k := range order {
		held, err := e.hasConflict(ctx, k)
		if err != nil {
			return err
		}
		if held {
			continue
		}

		err = e.pushEntity(ctx, groups[k], res)
		switch {
		case err == nil, errors.Is(err, errHeld):
		case entityFault(err):
			res.Failed++
			e.log.Error(ctx, "entity halted", "type", k.EntityType, "entity", k.EntityID, "error", err)
			e.reporter.EntityFailed(k, err)
		default:
			return remoteFailure(err)
		}
	}
	return nil
}

func (e *Engine) hasConflict(ctx context.Context, k models.EntityKey) (bool, error) {
	_, err := e.repos.Conflicts(e.db).GetByEntity(ctx, k.EntityType, k.EntityID)
	if errors.Is(err, common.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// pushEntity sends one entity's mutations in order and stops at the first
// that cannot be applied.
func (e *Engine) pushEntity(ctx context.Context, ms []*models.PendingMutation, res *Result) error {
	for _, m := range ms {
		remoteVersion, err := e.remote.FetchCurrentVersion(ctx, m.EntityType, m.EntityID)
		if err != nil {
			return err
		}

		switch {
		case remoteVersion < m.BaseVersion:
			return fmt.Errorf("%w: remote %s is at %d, behind local base %d",
				common.ErrCorruption, m.EntityID, remoteVersion, m.BaseVersion)

		case remoteVersion == m.BaseVersion:
			wr, err := e.remote.ApplyWrite(ctx, models.WriteRequest{
				MutationID:      m.ID,
				EntityType:      m.EntityType,
				EntityID:        m.EntityID,
				HouseholdID:     m.HouseholdID,
				Payload:         m.Payload,
				Operation:       m.Operation,
				ExpectedVersion: m.BaseVersion,
				ActorID:         m.ActorID,
			})
			if errors.Is(err, common.ErrVersionConflict) {
				// lost a race with another writer since the version check
				return e.diverged(ctx, m, res)
			}
			if err != nil {
				return err
			}
			if err := e.acknowledge(ctx, m, wr.NewVersion); err != nil {
				return err
			}
			res.Synced++

		default:
			return e.diverged(ctx, m, res)
		}
	}
	return nil
}

func (e *Engine) acknowledge(ctx context.Context, m *models.PendingMutation, version int64) error {
	if err := e.repos.Pending(e.db).Delete(ctx, m.ID); err != nil && !errors.Is(err, common.ErrNotFound) {
		return err
	}
	if want := m.BaseVersion + 1; version != want {
		e.log.Warn(ctx, "remote accepted write at unexpected version", "entity", m.EntityID, "version", version, "want", want)
	}
	e.reporter.MutationsSynced(1)
	return nil
}

// diverged handles a remote that moved past m's base. A remote state that
// m itself produced (an earlier attempt whose reply was lost) counts as
// accepted; anything else becomes a conflict holding the entity.
func (e *Engine) diverged(ctx context.Context, m *models.PendingMutation, res *Result) error {
	rr, err := e.remote.FetchRecord(ctx, m.EntityType, m.EntityID)
	if err != nil {
		return err
	}
	if rr.MutationID == m.ID {
		if err := e.acknowledge(ctx, m, rr.Version); err != nil {
			return err
		}
		res.Synced++
		return nil
	}

	if _, err := e.raise(ctx, m, &rr.Record); err != nil {
		return err
	}
	res.Conflicts++
	return errHeld
}

// errHeld stops an entity's chain without counting as a failure.
var errHeld = errors.New("entity held by conflict")

// Package session wires the local sync core of one (user, household) pair:
// store, access gate, mutation gateway, sync engine, status reporter and
// realtime subscription. Sessions are plain values; open as many as needed.
package session

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/dmitrijs2005/famledger/internal/client/access"
	"github.com/dmitrijs2005/famledger/internal/client/mutation"
	"github.com/dmitrijs2005/famledger/internal/client/pagination"
	"github.com/dmitrijs2005/famledger/internal/client/realtime"
	"github.com/dmitrijs2005/famledger/internal/client/repositories/repomanager"
	"github.com/dmitrijs2005/famledger/internal/client/status"
	"github.com/dmitrijs2005/famledger/internal/client/syncengine"
	"github.com/dmitrijs2005/famledger/internal/common"
	"github.com/dmitrijs2005/famledger/internal/logging"
	"github.com/dmitrijs2005/famledger/internal/models"
)

// Remote is everything a session needs from the server.
type Remote interface {
	syncengine.RemoteChannel
	Ping(ctx context.Context) error
}

type Options struct {
	// HistoryRetention is the number of snapshots kept per entity; 0 keeps all.
	HistoryRetention int
	// OnlineCheckInterval is the heartbeat period of the realtime session.
	OnlineCheckInterval time.Duration
}

const busyRetry = 200 * time.Millisecond

type Session struct {
	UserID      string
	HouseholdID string

	Gateway  *mutation.Gateway
	Engine   *syncengine.Engine
	Reporter *status.Reporter
	Realtime *realtime.Session
	Reader   *pagination.Reader

	db     *sql.DB
	repos  repomanager.RepositoryManager
	queue  *syncengine.Queue
	remote Remote
	log    logging.Logger
}

// Open builds the object graph for userID in householdID on top of db. The
// realtime subscription is not started; call Start for that.
func Open(ctx context.Context, db *sql.DB, remote Remote, userID, householdID string, opts Options, log logging.Logger) (*Session, error) {
	if userID == "" || householdID == "" {
		return nil, common.ErrInvalidArgument
	}

	repos := repomanager.NewSQLiteRepositoryManager()
	log = log.With("household", householdID)

	gate := access.NewGate(repos.Members(db), log)
	queue := syncengine.NewQueue(repos, householdID)
	gateway := mutation.NewGateway(db, repos, gate, queue, log, mutation.WithRetention(opts.HistoryRetention))
	reporter := status.NewReporter(db, repos, householdID, log)
	engine := syncengine.NewEngine(db, repos, gateway, queue, remote, reporter, userID, householdID, log)

	if err := engine.Restore(ctx); err != nil {
		reporter.Close()
		return nil, err
	}

	s := &Session{
		UserID:      userID,
		HouseholdID: householdID,
		Gateway:     gateway,
		Engine:      engine,
		Reporter:    reporter,
		Reader:      pagination.NewReader(repos.Records(db)),
		db:          db,
		repos:       repos,
		queue:       queue,
		remote:      remote,
		log:         log.With("module", "session"),
	}
	s.Realtime = realtime.NewSession(remote, engine, reporter, log,
		realtime.WithInterval(opts.OnlineCheckInterval),
		realtime.WithCatchUp(s.catchUp))
	return s, nil
}

// catchUp runs a pass whenever the subscription is (re)established. A pass
// already in flight covers the same ground.
func (s *Session) catchUp(ctx context.Context) {
	_ = s.syncOnce(ctx)
}

func (s *Session) syncOnce(ctx context.Context) error {
	_, err := s.Engine.TriggerSync(ctx)
	if err != nil && !errors.Is(err, common.ErrSyncInProgress) {
		s.log.Warn(ctx, "sync failed", "error", err)
	}
	return err
}

// Start opens the realtime subscription.
func (s *Session) Start(ctx context.Context) error {
	return s.Realtime.Connect(ctx, s.UserID, s.HouseholdID)
}

// Close stops the subscription and ends event delivery. The database stays
// open; it belongs to the caller.
func (s *Session) Close(ctx context.Context) {
	s.Realtime.Disconnect(ctx)
	s.Reporter.Close()
}

// Get returns a record by id, soft-deleted or not.
func (s *Session) Get(ctx context.Context, id string) (*models.Record, error) {
	r, err := s.repos.Records(s.db).Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.HouseholdID != s.HouseholdID {
		return nil, common.ErrNotFound
	}
	return r, nil
}

// Watch keeps the session live until ctx ends: the subscription runs, and a
// pass starts every interval and after each local write.
func (s *Session) Watch(ctx context.Context, interval time.Duration) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	defer s.Realtime.Disconnect(context.WithoutCancel(ctx))

	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// a pass that was already running may have missed the latest write
	var retry <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-s.queue.Notify():
		case <-retry:
		}
		retry = nil
		if errors.Is(s.syncOnce(ctx), common.ErrSyncInProgress) {
			retry = time.After(busyRetry)
		}
	}
}

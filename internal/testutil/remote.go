// Package testutil provides an in-memory remote for tests of the sync core.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/famledger/internal/common"
	"github.com/dmitrijs2005/famledger/internal/models"
)

// MemoryRemote is an in-process stand-in for the ledger server. It applies
// writes with the same compare-and-set rule, keeps a per-household change
// log for Pull, and fans accepted changes out to subscribers.
type MemoryRemote struct {
	mu      sync.Mutex
	records map[string]*models.RemoteRecord
	changes map[string][]models.RemoteChange
	applied map[string]*models.WriteResult
	subs    map[string][]chan models.RemoteChange
	offline bool
	writes  int
	now     func() time.Time
}

func NewMemoryRemote() *MemoryRemote {
	return &MemoryRemote{
		records: make(map[string]*models.RemoteRecord),
		changes: make(map[string][]models.RemoteChange),
		applied: make(map[string]*models.WriteResult),
		subs:    make(map[string][]chan models.RemoteChange),
		now:     time.Now,
	}
}

// SetOffline makes every call fail with common.ErrNetwork and closes the
// open subscriptions.
func (m *MemoryRemote) SetOffline(offline bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offline = offline
	if offline {
		for h, chans := range m.subs {
			for _, ch := range chans {
				close(ch)
			}
			delete(m.subs, h)
		}
	}
}

// Writes returns the number of accepted writes.
func (m *MemoryRemote) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

func (m *MemoryRemote) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.offline {
		return fmt.Errorf("%w: remote unreachable", common.ErrNetwork)
	}
	return nil
}

func (m *MemoryRemote) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.check(ctx)
}

func (m *MemoryRemote) FetchCurrentVersion(ctx context.Context, entityType, id string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx); err != nil {
		return 0, err
	}
	if r, ok := m.records[id]; ok && r.EntityType == entityType {
		return r.Version, nil
	}
	return 0, nil
}

func (m *MemoryRemote) FetchRecord(ctx context.Context, entityType, id string) (*models.RemoteRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx); err != nil {
		return nil, err
	}
	r, ok := m.records[id]
	if !ok || r.EntityType != entityType {
		return nil, fmt.Errorf("remote record %s: %w", id, common.ErrNotFound)
	}
	c := *r
	c.Record = *r.Record.Clone()
	return &c, nil
}

func (m *MemoryRemote) ApplyWrite(ctx context.Context, req models.WriteRequest) (*models.WriteResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx); err != nil {
		return nil, err
	}
	if res, ok := m.applied[req.MutationID]; ok {
		return res, nil
	}

	var cur int64
	prev, exists := m.records[req.EntityID]
	if exists {
		cur = prev.Version
	}
	if cur != req.ExpectedVersion {
		return nil, fmt.Errorf("%w: remote %s is at %d, expected %d", common.ErrVersionConflict, req.EntityID, cur, req.ExpectedVersion)
	}

	now := m.now().UTC()
	var next models.Record
	switch {
	case req.Operation == models.OpCreate && !exists:
		next = models.Record{
			ID:          req.EntityID,
			EntityType:  req.EntityType,
			HouseholdID: req.HouseholdID,
			CreatedAt:   now,
			CreatedBy:   req.ActorID,
		}
	case exists && req.Operation != models.OpCreate:
		next = *prev.Record.Clone()
	default:
		return nil, fmt.Errorf("%w: %s on %s", common.ErrInvalidArgument, req.Operation, req.EntityID)
	}

	next.Version = cur + 1
	next.UpdatedAt = now
	next.UpdatedBy = req.ActorID
	if req.Operation == models.OpDelete {
		next.DeletedAt = &now
	} else {
		next.DeletedAt = nil
		next.Payload = req.Payload
	}

	log := m.changes[req.HouseholdID]
	seq := int64(len(log)) + 1
	change := models.RemoteChange{Seq: seq, MutationID: req.MutationID, Record: next}

	m.records[req.EntityID] = &models.RemoteRecord{Record: next, MutationID: req.MutationID}
	m.changes[req.HouseholdID] = append(log, change)
	res := &models.WriteResult{Accepted: true, NewVersion: next.Version, Seq: seq}
	m.applied[req.MutationID] = res
	m.writes++

	for _, ch := range m.subs[req.HouseholdID] {
		select {
		case ch <- change:
		default:
		}
	}
	return res, nil
}

func (m *MemoryRemote) Pull(ctx context.Context, householdID string, since int64) ([]models.RemoteChange, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx); err != nil {
		return nil, 0, err
	}
	log := m.changes[householdID]
	latest := int64(len(log))
	if since >= latest {
		return nil, latest, nil
	}
	out := make([]models.RemoteChange, 0, latest-since)
	for _, c := range log[since:] {
		c.Record = *c.Record.Clone()
		out = append(out, c)
	}
	return out, latest, nil
}

// Subscribe delivers changes accepted after the call. The channel closes
// when ctx ends or the remote goes offline.
func (m *MemoryRemote) Subscribe(ctx context.Context, householdID string) (<-chan models.RemoteChange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(ctx); err != nil {
		return nil, err
	}

	ch := make(chan models.RemoteChange, 64)
	m.subs[householdID] = append(m.subs[householdID], ch)

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		defer m.mu.Unlock()
		chans := m.subs[householdID]
		for i, c := range chans {
			if c == ch {
				m.subs[householdID] = append(chans[:i], chans[i+1:]...)
				close(ch)
				return
			}
		}
	}()
	return ch, nil
}

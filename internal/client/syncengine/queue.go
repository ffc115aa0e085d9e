package syncengine

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/famledger/internal/client/repositories/repomanager"
	"github.com/dmitrijs2005/famledger/internal/dbx"
	"github.com/dmitrijs2005/famledger/internal/models"
)

// Queue is the durable pending-mutation queue of one household. The gateway
// enqueues through it inside its write transaction.
type Queue struct {
	repos       repomanager.RepositoryManager
	householdID string
	notify      chan struct{}
}

func NewQueue(repos repomanager.RepositoryManager, householdID string) *Queue {
	return &Queue{
		repos:       repos,
		householdID: householdID,
		notify:      make(chan struct{}, 1),
	}
}

func (q *Queue) Enqueue(ctx context.Context, tx dbx.DBTX, m *models.PendingMutation) error {
	if m.HouseholdID != q.householdID {
		return fmt.Errorf("mutation for household %s queued on %s", m.HouseholdID, q.householdID)
	}
	if err := q.repos.Pending(tx).Enqueue(ctx, m); err != nil {
		return err
	}
	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

// Notify fires after an enqueue. A signal may refer to a write whose
// transaction later rolled back.
func (q *Queue) Notify() <-chan struct{} {
	return q.notify
}

func (q *Queue) List(ctx context.Context, db dbx.DBTX) ([]*models.PendingMutation, error) {
	return q.repos.Pending(db).List(ctx, q.householdID)
}

func (q *Queue) Count(ctx context.Context, db dbx.DBTX) (int, error) {
	return q.repos.Pending(db).Count(ctx, q.householdID)
}

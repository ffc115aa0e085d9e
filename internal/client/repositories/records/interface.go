package records

import (
	"context"
	"iter"

	"github.com/dmitrijs2005/famledger/internal/models"
)

type Repository interface {
	// Get returns the record with the given id, soft-deleted or not.
	// It fails with common.ErrNotFound when no such record exists.
	Get(ctx context.Context, id string) (*models.Record, error)

	Put(ctx context.Context, r *models.Record) error

	// Query lazily yields the household's records matching pred, including
	// soft-deleted ones. A nil pred matches everything. Each call re-runs the
	// underlying query.
	Query(ctx context.Context, householdID string, pred func(*models.Record) bool) iter.Seq2[*models.Record, error]

	Page(ctx context.Context, q PageQuery) ([]Item, error)
}

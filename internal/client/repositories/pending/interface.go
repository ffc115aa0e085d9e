// Package pending is the durable queue of local writes awaiting remote
// confirmation. Rows keep their enqueue order (seq), which is also the
// base-version chain order for any single entity.
package pending

import (
	"context"

	"github.com/dmitrijs2005/famledger/internal/models"
)

type Repository interface {
	Enqueue(ctx context.Context, m *models.PendingMutation) error

	// List returns the household's pending mutations in enqueue order.
	List(ctx context.Context, householdID string) ([]*models.PendingMutation, error)

	ListForEntity(ctx context.Context, entityType, entityID string) ([]*models.PendingMutation, error)

	Delete(ctx context.Context, id string) error

	// DeleteForEntity drops every held mutation of one entity.
	DeleteForEntity(ctx context.Context, entityType, entityID string) (int64, error)

	Count(ctx context.Context, householdID string) (int, error)
}

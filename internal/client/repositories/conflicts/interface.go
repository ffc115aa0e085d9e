// Package conflicts persists open sync conflicts, at most one per entity.
package conflicts

import (
	"context"

	"github.com/dmitrijs2005/famledger/internal/models"
)

type Repository interface {
	Insert(ctx context.Context, c *models.Conflict) error
	Get(ctx context.Context, id string) (*models.Conflict, error)
	GetByEntity(ctx context.Context, entityType, entityID string) (*models.Conflict, error)

	// UpdateRemote replaces the remote side of an existing conflict.
	UpdateRemote(ctx context.Context, c *models.Conflict) error

	List(ctx context.Context, householdID string) ([]*models.Conflict, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context, householdID string) (int, error)
}

package users

import (
	"context"

	"github.com/dmitrijs2005/famledger/internal/server/models"
)

type Repository interface {
	// Create stores user under a new id. A taken user name is common.ErrAlreadyExists.
	Create(ctx context.Context, user *models.User) (*models.User, error)
	// GetUserByLogin returns common.ErrNotFound for an unknown name.
	GetUserByLogin(ctx context.Context, login string) (*models.User, error)
}

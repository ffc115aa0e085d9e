// Package households stores households and their member lists.
package households

import (
	"context"

	"github.com/dmitrijs2005/famledger/internal/models"
)

type Repository interface {
	Create(ctx context.Context, name, createdBy string) (*models.Household, error)
	ListForUser(ctx context.Context, userID string) ([]models.Household, error)

	// AddMember fails with common.ErrAlreadyExists for an existing member
	// and common.ErrNotFound for an unknown household or user.
	AddMember(ctx context.Context, m models.Member) error
	Members(ctx context.Context, householdID string) ([]models.Member, error)

	// Role is the user's role in the household, common.ErrNotFound when
	// the user is not a member.
	Role(ctx context.Context, householdID, userID string) (string, error)
}

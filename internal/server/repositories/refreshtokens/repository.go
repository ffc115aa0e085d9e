// Package refreshtokens declares the server-side store of refresh tokens.
package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/famledger/internal/server/models"
)

// Repository issues and rotates opaque refresh tokens.
type Repository interface {
	// Create stores a new refresh token for userID expiring at now+validity.
	Create(ctx context.Context, userID string, token string, validity time.Duration) error

	// Consume removes the token and returns what it was issued for, so a
	// token can be redeemed only once. Unknown tokens are common.ErrNotFound.
	Consume(ctx context.Context, token string) (*models.RefreshToken, error)

	// PurgeExpired drops the user's tokens that expired before now.
	PurgeExpired(ctx context.Context, userID string, now time.Time) error
}

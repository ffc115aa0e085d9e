package client

import (
	"context"

	"github.com/dmitrijs2005/famledger/internal/models"
)

// Tokens is the credential pair issued at login.
type Tokens struct {
	UserID       string
	AccessToken  string
	RefreshToken string
}

type Client interface {
	Close() error
	Ping(ctx context.Context) error

	Register(ctx context.Context, userName string, salt, verifier []byte) (string, error)
	GetSalt(ctx context.Context, userName string) ([]byte, error)
	Login(ctx context.Context, userName string, verifier []byte) (*Tokens, error)
	SetTokens(t Tokens)

	CreateHousehold(ctx context.Context, name string) (*models.Household, error)
	ListHouseholds(ctx context.Context) ([]models.Household, error)
	AddMember(ctx context.Context, householdID, userName, role string) (*models.Member, error)
	ListMembers(ctx context.Context, householdID string) ([]models.Member, error)

	FetchCurrentVersion(ctx context.Context, entityType, id string) (int64, error)
	FetchRecord(ctx context.Context, entityType, id string) (*models.RemoteRecord, error)
	ApplyWrite(ctx context.Context, req models.WriteRequest) (*models.WriteResult, error)
	Pull(ctx context.Context, householdID string, since int64) ([]models.RemoteChange, int64, error)
	Subscribe(ctx context.Context, householdID string) (<-chan models.RemoteChange, error)

	PresignReceipt(ctx context.Context, householdID, recordID, contentType string) (key, url string, err error)
	ReceiptURL(ctx context.Context, householdID, key string) (string, error)
}

package repomanager

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/famledger/internal/client/storage"
	"github.com/dmitrijs2005/famledger/internal/dbx"
	"github.com/dmitrijs2005/famledger/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_ReposShareTransaction(t *testing.T) {
	ctx := context.Background()
	db, err := storage.Open(ctx, ":memory:")
	require.NoError(t, err)
	defer db.Close()

	var m RepositoryManager = NewSQLiteRepositoryManager()

	err = dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := m.Metadata(tx).Set(ctx, "k", []byte("v")); err != nil {
			return err
		}
		return m.Members(tx).Replace(ctx, "h1", []models.Member{{UserID: "u1", Role: models.RoleOwner}})
	})
	require.NoError(t, err)

	ok, err := m.Members(db).IsMember(ctx, "h1", "u1")
	require.NoError(t, err)
	assert.True(t, ok)

	assert.NotNil(t, m.Records(db))
	assert.NotNil(t, m.History(db))
	assert.NotNil(t, m.Pending(db))
	assert.NotNil(t, m.Conflicts(db))
}

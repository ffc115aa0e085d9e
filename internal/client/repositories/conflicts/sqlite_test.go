package conflicts

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/famledger/internal/client/storage"
	"github.com/dmitrijs2005/famledger/internal/common"
	"github.com/dmitrijs2005/famledger/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	db, err := storage.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewSQLiteRepository(db)
}

func conflict(id, entity string) *models.Conflict {
	return &models.Conflict{
		ID: id, EntityType: common.EntityExpense, EntityID: entity, HouseholdID: "h1",
		LocalVersion: 3, LocalPayload: []byte(`{"amount":1}`),
		RemoteVersion: 5, RemotePayload: []byte(`{"amount":2}`), RemoteActor: "bob",
		DetectedAt: time.Date(2025, 2, 2, 0, 0, 0, 0, time.UTC),
	}
}

func TestInsertGetList(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	require.NoError(t, repo.Insert(ctx, conflict("c1", "e1")))

	got, err := repo.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.LocalVersion)
	assert.Equal(t, int64(5), got.RemoteVersion)
	assert.JSONEq(t, `{"amount":2}`, string(got.RemotePayload))
	assert.Equal(t, "bob", got.RemoteActor)

	byEntity, err := repo.GetByEntity(ctx, common.EntityExpense, "e1")
	require.NoError(t, err)
	assert.Equal(t, "c1", byEntity.ID)

	list, err := repo.List(ctx, "h1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestInsert_OnePerEntity(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	require.NoError(t, repo.Insert(ctx, conflict("c1", "e1")))
	assert.Error(t, repo.Insert(ctx, conflict("c2", "e1")))
}

func TestUpdateRemoteAndDelete(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	require.NoError(t, repo.Insert(ctx, conflict("c1", "e1")))

	c := conflict("c1", "e1")
	c.RemoteVersion = 6
	c.RemotePayload = []byte(`{"amount":3}`)
	c.RemoteDeleted = true
	require.NoError(t, repo.UpdateRemote(ctx, c))

	got, err := repo.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(6), got.RemoteVersion)
	assert.True(t, got.RemoteDeleted)
	assert.Equal(t, int64(3), got.LocalVersion, "local side untouched")

	require.NoError(t, repo.Delete(ctx, "c1"))
	assert.ErrorIs(t, repo.Delete(ctx, "c1"), common.ErrNotFound)
	_, err = repo.Get(ctx, "c1")
	assert.ErrorIs(t, err, common.ErrNotFound)

	n, err := repo.Count(ctx, "h1")
	require.NoError(t, err)
	assert.Zero(t, n)
}

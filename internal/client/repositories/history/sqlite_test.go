package history

import (
	"context"
	"encoding/json"
	"fmt"
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

func snap(id string, v int64, payload string) *models.VersionSnapshot {
	p := json.RawMessage(payload)
	return &models.VersionSnapshot{
		EntityType: common.EntityExpense, EntityID: id, Version: v, PrevVersion: v - 1, Payload: p,
		Actor: "alice", RecordedAt: time.Unix(int64(v), 0).UTC(), ContentHash: models.HashPayload(p),
	}
}

func TestAppendListOrder(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	for v := int64(1); v <= 3; v++ {
		require.NoError(t, repo.Append(ctx, snap("e1", v, fmt.Sprintf(`{"v":%d}`, v))))
	}
	require.NoError(t, repo.Append(ctx, snap("e2", 1, `{}`)))

	list, err := repo.List(ctx, common.EntityExpense, "e1")
	require.NoError(t, err)
	require.Len(t, list, 3)
	for i, s := range list {
		assert.Equal(t, int64(i+1), s.Version)
	}

	latest, err := repo.Latest(ctx, common.EntityExpense, "e1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), latest.Version)
}

func TestAppend_DuplicateVersionIsCorruption(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	require.NoError(t, repo.Append(ctx, snap("e1", 2, `{"who":"local"}`)))
	err := repo.Append(ctx, snap("e1", 2, `{"who":"remote"}`))
	assert.ErrorIs(t, err, common.ErrCorruption)

	s, err := repo.At(ctx, common.EntityExpense, "e1", 2)
	require.NoError(t, err)
	assert.JSONEq(t, `{"who":"local"}`, string(s.Payload))

	_, err = repo.At(ctx, common.EntityExpense, "e1", 7)
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = repo.Latest(ctx, common.EntityExpense, "nope")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestAppend_KeepsPrevVersion(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	require.NoError(t, repo.Append(ctx, snap("e1", 1, `{}`)))
	jump := snap("e1", 4, `{"amount":4}`)
	jump.PrevVersion = 1
	require.NoError(t, repo.Append(ctx, jump))

	latest, err := repo.Latest(ctx, common.EntityExpense, "e1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), latest.PrevVersion)
	assert.Equal(t, int64(2), latest.Skipped())
}

func TestDropAfter(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	for v := int64(1); v <= 4; v++ {
		require.NoError(t, repo.Append(ctx, snap("e1", v, `{}`)))
	}
	require.NoError(t, repo.Append(ctx, snap("e2", 3, `{}`)))

	n, err := repo.DropAfter(ctx, common.EntityExpense, "e1", 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	list, err := repo.List(ctx, common.EntityExpense, "e1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, int64(2), list[1].Version)

	// the version is free again
	require.NoError(t, repo.Append(ctx, snap("e1", 3, `{"amount":3}`)))

	other, err := repo.List(ctx, common.EntityExpense, "e2")
	require.NoError(t, err)
	assert.Len(t, other, 1)
}

func TestPrune_KeepsNewest(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	for v := int64(1); v <= 5; v++ {
		require.NoError(t, repo.Append(ctx, snap("e1", v, `{}`)))
	}

	n, err := repo.Prune(ctx, common.EntityExpense, "e1", 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	list, err := repo.List(ctx, common.EntityExpense, "e1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, int64(4), list[0].Version)
	assert.Equal(t, int64(5), list[1].Version)

	n, err = repo.Prune(ctx, common.EntityExpense, "e1", 0)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestList_TamperedPayloadIsCorruption(t *testing.T) {
	ctx := context.Background()
	db, err := storage.Open(ctx, ":memory:")
	require.NoError(t, err)
	defer db.Close()
	repo := NewSQLiteRepository(db)

	require.NoError(t, repo.Append(ctx, snap("e1", 1, `{"amount":1}`)))
	_, err = db.Exec(`UPDATE version_history SET payload = '{"amount":1000}'`)
	require.NoError(t, err)

	_, err = repo.List(ctx, common.EntityExpense, "e1")
	assert.ErrorIs(t, err, common.ErrCorruption)
}

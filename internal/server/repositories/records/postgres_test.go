package records

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/famledger/internal/common"
	"github.com/dmitrijs2005/famledger/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var columns = []string{"entity_type", "id", "household_id", "version", "created_at", "created_by",
	"updated_at", "updated_by", "deleted_at", "payload", "seq", "mutation_id"}

const (
	getQ     = `(?s)SELECT\s+entity_type,.*FROM\s+records\s+WHERE\s+entity_type\s*=\s*\$1\s+AND\s+id\s*=\s*\$2$`
	getLockQ = `(?s)SELECT\s+entity_type,.*FROM\s+records\s+WHERE\s+entity_type\s*=\s*\$1\s+AND\s+id\s*=\s*\$2\s+FOR\s+UPDATE$`
	nextQ    = `(?s)UPDATE\s+households\s+SET\s+change_seq\s*=\s*change_seq\s*\+\s*1`
	latestQ  = `(?s)SELECT\s+change_seq\s+FROM\s+households`
	upsertQ  = `(?s)INSERT\s+INTO\s+records.*ON\s+CONFLICT\s+\(entity_type,\s*id\)\s+DO\s+UPDATE`
	changesQ = `(?s)FROM\s+records\s+WHERE\s+household_id\s*=\s*\$1\s+AND\s+seq\s*>\s*\$2\s+ORDER\s+BY\s+seq\s+LIMIT\s+\$3`
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func row(version int64, deleted *time.Time, seq int64) []driver.Value {
	var del any
	if deleted != nil {
		del = *deleted
	}
	return []driver.Value{"expense", "r1", "h1", version, t0, "u1", t0, "u1", del, []byte(`{"amount":5}`), seq, "m1"}
}

func change(version int64) *models.RemoteChange {
	return &models.RemoteChange{
		MutationID: "m2",
		Record: models.Record{
			ID: "r1", EntityType: "expense", HouseholdID: "h1", Version: version,
			CreatedAt: t0, CreatedBy: "u1", UpdatedAt: t0.Add(time.Minute), UpdatedBy: "u2",
			Payload: json.RawMessage(`{"amount":6}`),
		},
	}
}

func TestRepository_Get(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresRepository(db)

	deleted := t0.Add(time.Hour)
	mock.ExpectQuery(getQ).WithArgs("expense", "r1").
		WillReturnRows(sqlmock.NewRows(columns).AddRow(row(3, &deleted, 7)...))

	got, err := repo.Get(context.Background(), "expense", "r1", false)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.Version)
	assert.Equal(t, "m1", got.MutationID)
	require.NotNil(t, got.DeletedAt)
	assert.True(t, got.DeletedAt.Equal(deleted))
	assert.JSONEq(t, `{"amount":5}`, string(got.Payload))

	mock.ExpectQuery(getQ).WithArgs("expense", "nope").WillReturnError(sql.ErrNoRows)
	_, err = repo.Get(context.Background(), "expense", "nope", false)
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestRepository_Seq(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresRepository(db)

	mock.ExpectQuery(nextQ).WithArgs("h1").WillReturnRows(sqlmock.NewRows([]string{"change_seq"}).AddRow(int64(8)))
	seq, err := repo.NextSeq(context.Background(), "h1")
	require.NoError(t, err)
	assert.Equal(t, int64(8), seq)

	mock.ExpectQuery(nextQ).WithArgs("h9").WillReturnError(sql.ErrNoRows)
	_, err = repo.NextSeq(context.Background(), "h9")
	require.ErrorIs(t, err, common.ErrNotFound)

	mock.ExpectQuery(latestQ).WithArgs("h1").WillReturnError(errors.New("down"))
	_, err = repo.LatestSeq(context.Background(), "h1")
	require.ErrorContains(t, err, "db error")
}

func TestStore_Apply_Update(t *testing.T) {
	db, mock := newMock(t)
	store := NewPostgresStore(db, nil)
	c := change(4)

	mock.ExpectBegin()
	mock.ExpectQuery(getLockQ).WithArgs("expense", "r1").
		WillReturnRows(sqlmock.NewRows(columns).AddRow(row(3, nil, 7)...))
	mock.ExpectQuery(nextQ).WithArgs("h1").WillReturnRows(sqlmock.NewRows([]string{"change_seq"}).AddRow(int64(8)))
	mock.ExpectExec(upsertQ).
		WithArgs("expense", "r1", "h1", int64(4), t0, "u1", t0.Add(time.Minute), "u2",
			sql.NullTime{}, []byte(`{"amount":6}`), int64(8), "m2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, store.Apply(context.Background(), c, 3))
	assert.Equal(t, int64(8), c.Seq)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Apply_Create(t *testing.T) {
	db, mock := newMock(t)
	store := NewPostgresStore(db, nil)

	mock.ExpectBegin()
	mock.ExpectQuery(getLockQ).WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(nextQ).WillReturnRows(sqlmock.NewRows([]string{"change_seq"}).AddRow(int64(1)))
	mock.ExpectExec(upsertQ).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, store.Apply(context.Background(), change(1), 0))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Apply_Stale(t *testing.T) {
	db, mock := newMock(t)
	store := NewPostgresStore(db, nil)

	mock.ExpectBegin()
	mock.ExpectQuery(getLockQ).
		WillReturnRows(sqlmock.NewRows(columns).AddRow(row(5, nil, 9)...))
	mock.ExpectRollback()

	err := store.Apply(context.Background(), change(4), 3)
	require.ErrorIs(t, err, common.ErrVersionConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_Apply_CreateOverExisting(t *testing.T) {
	db, mock := newMock(t)
	store := NewPostgresStore(db, nil)

	mock.ExpectBegin()
	mock.ExpectQuery(getLockQ).
		WillReturnRows(sqlmock.NewRows(columns).AddRow(row(1, nil, 1)...))
	mock.ExpectRollback()

	require.ErrorIs(t, store.Apply(context.Background(), change(1), 0), common.ErrVersionConflict)
}

func TestStore_Apply_OtherHousehold(t *testing.T) {
	db, mock := newMock(t)
	store := NewPostgresStore(db, nil)
	c := change(4)
	c.Record.HouseholdID = "h2"

	mock.ExpectBegin()
	mock.ExpectQuery(getLockQ).
		WillReturnRows(sqlmock.NewRows(columns).AddRow(row(3, nil, 7)...))
	mock.ExpectRollback()

	require.ErrorIs(t, store.Apply(context.Background(), c, 3), common.ErrUnauthorized)
}

func TestStore_Changes(t *testing.T) {
	db, mock := newMock(t)
	store := NewPostgresStore(db, nil)

	mock.ExpectQuery(latestQ).WithArgs("h1").WillReturnRows(sqlmock.NewRows([]string{"change_seq"}).AddRow(int64(9)))
	mock.ExpectQuery(changesQ).WithArgs("h1", int64(5), 100).
		WillReturnRows(sqlmock.NewRows(columns).AddRow(row(3, nil, 7)...))

	changes, latest, err := store.Changes(context.Background(), "h1", 5, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(9), latest)
	require.Len(t, changes, 1)
	assert.Equal(t, int64(7), changes[0].Seq)
	assert.Equal(t, "m1", changes[0].MutationID)
}

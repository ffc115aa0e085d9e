package refreshtokens

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/famledger/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	insertQ  = `(?s)^\s*INSERT\s+INTO\s+refresh_tokens\b.*VALUES\s*\(\$1,\s*\$2,\s*\$3\)\s*$`
	consumeQ = `(?s)^\s*DELETE\s+FROM\s+refresh_tokens\s+WHERE\s+token\s*=\s*\$1\s+RETURNING\s+user_id,\s*expires_at\s*$`
	purgeQ   = `(?s)^\s*DELETE\s+FROM\s+refresh_tokens\s+WHERE\s+user_id\s*=\s*\$1\s+AND\s+expires_at\s*<\s*\$2\s*$`
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresRepository(db), mock
}

func TestCreate(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(insertQ).
		WithArgs("u1", "tok123", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), "u1", "tok123", 30*time.Minute))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(insertQ).WillReturnError(errors.New("db down"))

	err := repo.Create(context.Background(), "u1", "tok123", time.Hour)
	require.ErrorContains(t, err, "error performing sql request: db down")
}

func TestConsume(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	expires := time.Now().Add(10 * time.Minute)

	mock.ExpectQuery(consumeQ).
		WithArgs("tok123").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "expires_at"}).AddRow("u1", expires))

	got, err := repo.Consume(context.Background(), "tok123")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)
	assert.True(t, got.Expires.Equal(expires))
	assert.Equal(t, "tok123", got.Token)
}

func TestConsume_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(consumeQ).WithArgs("missing").WillReturnError(sql.ErrNoRows)

	_, err := repo.Consume(context.Background(), "missing")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestConsume_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(consumeQ).WithArgs("tok123").WillReturnError(errors.New("db err"))

	_, err := repo.Consume(context.Background(), "tok123")
	require.ErrorContains(t, err, "db error: db err")
}

func TestPurgeExpired(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Now()

	mock.ExpectExec(purgeQ).
		WithArgs("u1", now).
		WillReturnResult(sqlmock.NewResult(0, 3))
	require.NoError(t, repo.PurgeExpired(context.Background(), "u1", now))

	mock.ExpectExec(purgeQ).WillReturnError(errors.New("db err"))
	require.ErrorContains(t, repo.PurgeExpired(context.Background(), "u1", now), "db error")
}

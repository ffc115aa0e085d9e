package server

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/famledger/internal/logging"
	"github.com/dmitrijs2005/famledger/internal/server/config"
	"github.com/dmitrijs2005/famledger/internal/server/repositories/records"
	"github.com/dmitrijs2005/famledger/internal/server/repositories/repomanager"
)

type stubRepoManager struct {
	repomanager.RepositoryManager
	migrateErr error
	migrated   bool
}

func (m *stubRepoManager) RunMigrations(context.Context, *sql.DB) error {
	m.migrated = true
	return m.migrateErr
}

func stubDeps(t *testing.T, rm *stubRepoManager) sqlmock.Sqlmock {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	origOpen, origRM := openDB, newRepoManager
	openDB = func(string) (*sql.DB, error) { return db, nil }
	newRepoManager = func() repomanager.RepositoryManager { return rm }
	t.Cleanup(func() {
		openDB, newRepoManager = origOpen, origRM
	})
	return mock
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.EndpointAddrGRPC = "127.0.0.1:0"
	cfg.EndpointAddrRealtime = "127.0.0.1:0"
	return cfg
}

func TestNewRecordStore(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()

	s, err := newRecordStore(ctx, cfg, nil, repomanager.NewPostgresRepositoryManager())
	require.NoError(t, err)
	assert.IsType(t, &records.PostgresStore{}, s)

	cfg.RecordsBackend = config.BackendDynamoDB
	cfg.DynamoEndpoint = "http://localhost:8000"
	s, err = newRecordStore(ctx, cfg, nil, repomanager.NewPostgresRepositoryManager())
	require.NoError(t, err)
	assert.IsType(t, &records.DynamoStore{}, s)
}

func TestNewApp_RunAndStop(t *testing.T) {
	rm := &stubRepoManager{}
	mock := stubDeps(t, rm)
	mock.ExpectPing()
	mock.ExpectClose()

	app, err := NewApp(context.Background(), testConfig(), logging.Nop())
	require.NoError(t, err)
	assert.True(t, rm.migrated)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not stop")
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewApp_Failures(t *testing.T) {
	t.Run("ping", func(t *testing.T) {
		mock := stubDeps(t, &stubRepoManager{})
		mock.ExpectPing().WillReturnError(errors.New("refused"))
		mock.ExpectClose()

		_, err := NewApp(context.Background(), testConfig(), logging.Nop())
		assert.ErrorContains(t, err, "refused")
	})

	t.Run("migrations", func(t *testing.T) {
		mock := stubDeps(t, &stubRepoManager{migrateErr: errors.New("dirty")})
		mock.ExpectPing()
		mock.ExpectClose()

		_, err := NewApp(context.Background(), testConfig(), logging.Nop())
		assert.ErrorContains(t, err, "dirty")
	})
}

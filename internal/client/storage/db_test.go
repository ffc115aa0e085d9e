package storage

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tableExists(t *testing.T, db *sql.DB, name string) bool {
	t.Helper()
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, name).Scan(&n)
	require.NoError(t, err)
	return n > 0
}

func TestOpen_InMemoryCreatesSchema(t *testing.T) {
	db, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	defer db.Close()

	for _, table := range []string{"records", "version_history", "pending_mutations", "conflicts", "household_members", "metadata"} {
		assert.True(t, tableExists(t, db, table), table)
	}
}

func TestOpen_FileIsReopenable(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "ledger.db")

	db, err := Open(ctx, dsn)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO metadata(key, value) VALUES ('k', 'v')`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = Open(ctx, dsn)
	require.NoError(t, err)
	defer db.Close()

	var v string
	require.NoError(t, db.QueryRow(`SELECT value FROM metadata WHERE key='k'`).Scan(&v))
	assert.Equal(t, "v", v)
}

func TestRunMigrations_ProviderError(t *testing.T) {
	orig := newProvider
	newProvider = func(*sql.DB, fs.FS) (migrator, error) { return nil, errors.New("no provider") }
	defer func() { newProvider = orig }()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	err = RunMigrations(context.Background(), db)
	require.ErrorContains(t, err, "no provider")
}

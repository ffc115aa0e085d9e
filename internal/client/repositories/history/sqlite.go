package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/famledger/internal/common"
	"github.com/dmitrijs2005/famledger/internal/dbx"
	"github.com/dmitrijs2005/famledger/internal/models"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const snapshotColumns = `entity_type, entity_id, version, prev_version, payload, deleted, actor, recorded_at, content_hash`

func isConstraint(err error) bool {
	var se *sqlite.Error
	return errors.As(err, &se) && se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
}

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func scanSnapshot(s interface{ Scan(...any) error }) (*models.VersionSnapshot, error) {
	var (
		snap       models.VersionSnapshot
		payload    string
		recordedAt int64
		hash       int64
	)
	if err := s.Scan(&snap.EntityType, &snap.EntityID, &snap.Version, &snap.PrevVersion, &payload,
		&snap.Deleted, &snap.Actor, &recordedAt, &hash); err != nil {
		return nil, err
	}
	snap.Payload = []byte(payload)
	snap.RecordedAt = dbx.FromNanos(recordedAt)
	snap.ContentHash = uint64(hash)

	if err := snap.Verify(); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (r *SQLiteRepository) Append(ctx context.Context, s *models.VersionSnapshot) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO version_history (`+snapshotColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.EntityType, s.EntityID, s.Version, s.PrevVersion, string(s.Payload), s.Deleted, s.Actor,
		dbx.Nanos(s.RecordedAt), int64(s.ContentHash),
	)
	if isConstraint(err) {
		return fmt.Errorf("%w: snapshot %s@%d already recorded", common.ErrCorruption, s.EntityID, s.Version)
	}
	if err != nil {
		return fmt.Errorf("failed to append snapshot %s@%d: %w", s.EntityID, s.Version, err)
	}
	return nil
}

func (r *SQLiteRepository) List(ctx context.Context, entityType, entityID string) ([]*models.VersionSnapshot, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+snapshotColumns+` FROM version_history
		 WHERE entity_type = ? AND entity_id = ? ORDER BY version`, entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	var result []*models.VersionSnapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) At(ctx context.Context, entityType, entityID string, version int64) (*models.VersionSnapshot, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+snapshotColumns+` FROM version_history
		 WHERE entity_type = ? AND entity_id = ? AND version = ?`, entityType, entityID, version)
	return r.one(row)
}

func (r *SQLiteRepository) Latest(ctx context.Context, entityType, entityID string) (*models.VersionSnapshot, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+snapshotColumns+` FROM version_history
		 WHERE entity_type = ? AND entity_id = ?
		 ORDER BY version DESC LIMIT 1`, entityType, entityID)
	return r.one(row)
}

func (r *SQLiteRepository) one(row *sql.Row) (*models.VersionSnapshot, error) {
	s, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *SQLiteRepository) Prune(ctx context.Context, entityType, entityID string, keep int) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM version_history
		WHERE entity_type = ? AND entity_id = ? AND version NOT IN (
			SELECT version FROM version_history
			WHERE entity_type = ? AND entity_id = ?
			ORDER BY version DESC LIMIT ?
		)`, entityType, entityID, entityType, entityID, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune history: %w", err)
	}
	return res.RowsAffected()
}

func (r *SQLiteRepository) DropAfter(ctx context.Context, entityType, entityID string, version int64) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM version_history WHERE entity_type = ? AND entity_id = ? AND version > ?`,
		entityType, entityID, version)
	if err != nil {
		return 0, fmt.Errorf("failed to drop history after %s@%d: %w", entityID, version, err)
	}
	return res.RowsAffected()
}

package conflicts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/famledger/internal/common"
	"github.com/dmitrijs2005/famledger/internal/dbx"
	"github.com/dmitrijs2005/famledger/internal/models"
)

const conflictColumns = `id, entity_type, entity_id, household_id, local_version, local_payload, local_deleted,
	remote_version, remote_payload, remote_deleted, remote_actor, detected_at`

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func scanConflict(s interface{ Scan(...any) error }) (*models.Conflict, error) {
	var (
		c             models.Conflict
		localPayload  string
		remotePayload string
		detectedAt    int64
	)
	if err := s.Scan(&c.ID, &c.EntityType, &c.EntityID, &c.HouseholdID,
		&c.LocalVersion, &localPayload, &c.LocalDeleted,
		&c.RemoteVersion, &remotePayload, &c.RemoteDeleted, &c.RemoteActor, &detectedAt); err != nil {
		return nil, err
	}
	c.LocalPayload = []byte(localPayload)
	c.RemotePayload = []byte(remotePayload)
	c.DetectedAt = dbx.FromNanos(detectedAt)
	return &c, nil
}

func (r *SQLiteRepository) Insert(ctx context.Context, c *models.Conflict) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO conflicts (`+conflictColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.EntityType, c.EntityID, c.HouseholdID,
		c.LocalVersion, string(c.LocalPayload), c.LocalDeleted,
		c.RemoteVersion, string(c.RemotePayload), c.RemoteDeleted, c.RemoteActor,
		dbx.Nanos(c.DetectedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert conflict for %s: %w", c.EntityID, err)
	}
	return nil
}

func (r *SQLiteRepository) one(row *sql.Row) (*models.Conflict, error) {
	c, err := scanConflict(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conflict: %w", err)
	}
	return c, nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (*models.Conflict, error) {
	return r.one(r.db.QueryRowContext(ctx, `SELECT `+conflictColumns+` FROM conflicts WHERE id = ?`, id))
}

func (r *SQLiteRepository) GetByEntity(ctx context.Context, entityType, entityID string) (*models.Conflict, error) {
	return r.one(r.db.QueryRowContext(ctx,
		`SELECT `+conflictColumns+` FROM conflicts WHERE entity_type = ? AND entity_id = ?`, entityType, entityID))
}

func (r *SQLiteRepository) UpdateRemote(ctx context.Context, c *models.Conflict) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE conflicts
		SET remote_version = ?, remote_payload = ?, remote_deleted = ?, remote_actor = ?, detected_at = ?
		WHERE id = ?`,
		c.RemoteVersion, string(c.RemotePayload), c.RemoteDeleted, c.RemoteActor, dbx.Nanos(c.DetectedAt), c.ID)
	if err != nil {
		return fmt.Errorf("failed to update conflict: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) List(ctx context.Context, householdID string) ([]*models.Conflict, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+conflictColumns+` FROM conflicts WHERE household_id = ? ORDER BY detected_at, id`, householdID)
	if err != nil {
		return nil, fmt.Errorf("failed to list conflicts: %w", err)
	}
	defer rows.Close()

	var result []*models.Conflict
	for rows.Next() {
		c, err := scanConflict(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM conflicts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete conflict: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) Count(ctx context.Context, householdID string) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM conflicts WHERE household_id = ?`, householdID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count conflicts: %w", err)
	}
	return n, nil
}

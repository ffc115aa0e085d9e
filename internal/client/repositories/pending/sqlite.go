package pending

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/famledger/internal/common"
	"github.com/dmitrijs2005/famledger/internal/dbx"
	"github.com/dmitrijs2005/famledger/internal/models"
)

const mutationColumns = `id, entity_type, entity_id, household_id, payload, operation, base_version, actor_id, created_at`

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Enqueue(ctx context.Context, m *models.PendingMutation) error {
	if !m.Operation.Valid() {
		return fmt.Errorf("%w: operation %q", common.ErrInvalidArgument, m.Operation)
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO pending_mutations (`+mutationColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.EntityType, m.EntityID, m.HouseholdID, string(m.Payload), string(m.Operation),
		m.BaseVersion, m.ActorID, dbx.Nanos(m.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue mutation %s: %w", m.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) list(ctx context.Context, where string, args ...any) ([]*models.PendingMutation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+mutationColumns+` FROM pending_mutations WHERE `+where+` ORDER BY seq`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select pending mutations: %w", err)
	}
	defer rows.Close()

	var result []*models.PendingMutation
	for rows.Next() {
		var (
			m         models.PendingMutation
			payload   string
			op        string
			createdAt int64
		)
		if err := rows.Scan(&m.ID, &m.EntityType, &m.EntityID, &m.HouseholdID, &payload, &op,
			&m.BaseVersion, &m.ActorID, &createdAt); err != nil {
			return nil, err
		}
		m.Payload = []byte(payload)
		m.Operation = models.Operation(op)
		m.CreatedAt = dbx.FromNanos(createdAt)
		result = append(result, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) List(ctx context.Context, householdID string) ([]*models.PendingMutation, error) {
	return r.list(ctx, `household_id = ?`, householdID)
}

func (r *SQLiteRepository) ListForEntity(ctx context.Context, entityType, entityID string) ([]*models.PendingMutation, error) {
	return r.list(ctx, `entity_type = ? AND entity_id = ?`, entityType, entityID)
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM pending_mutations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete pending mutation: %w", err)
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

func (r *SQLiteRepository) DeleteForEntity(ctx context.Context, entityType, entityID string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM pending_mutations WHERE entity_type = ? AND entity_id = ?`, entityType, entityID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete pending mutations: %w", err)
	}
	return res.RowsAffected()
}

func (r *SQLiteRepository) Count(ctx context.Context, householdID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pending_mutations WHERE household_id = ?`, householdID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending mutations: %w", err)
	}
	return n, nil
}

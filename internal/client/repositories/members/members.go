// Package members caches household membership locally. The access gate
// consults it before every local mutation.
package members

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/famledger/internal/dbx"
	"github.com/dmitrijs2005/famledger/internal/models"
)

type Repository interface {
	IsMember(ctx context.Context, householdID, userID string) (bool, error)
	List(ctx context.Context, householdID string) ([]models.Member, error)

	// Replace swaps the cached member list of a household for members.
	Replace(ctx context.Context, householdID string, members []models.Member) error
}

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) IsMember(ctx context.Context, householdID, userID string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM household_members WHERE household_id = ? AND user_id = ?`,
		householdID, userID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return n > 0, nil
}

func (r *SQLiteRepository) List(ctx context.Context, householdID string) ([]models.Member, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT household_id, user_id, user_name, role FROM household_members
		 WHERE household_id = ? ORDER BY user_name, user_id`, householdID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var result []models.Member
	for rows.Next() {
		var m models.Member
		if err := rows.Scan(&m.HouseholdID, &m.UserID, &m.UserName, &m.Role); err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

// Replace should run inside a transaction so readers never see an empty list.
func (r *SQLiteRepository) Replace(ctx context.Context, householdID string, members []models.Member) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM household_members WHERE household_id = ?`, householdID); err != nil {
		return fmt.Errorf("failed to clear members: %w", err)
	}
	for _, m := range members {
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO household_members (household_id, user_id, user_name, role) VALUES (?, ?, ?, ?)`,
			householdID, m.UserID, m.UserName, m.Role)
		if err != nil {
			return fmt.Errorf("failed to insert member %s: %w", m.UserID, err)
		}
	}
	return nil
}

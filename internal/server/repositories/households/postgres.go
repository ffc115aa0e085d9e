package households

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/famledger/internal/common"
	"github.com/dmitrijs2005/famledger/internal/dbx"
	"github.com/dmitrijs2005/famledger/internal/models"
	"github.com/dmitrijs2005/famledger/internal/server/repositories/pgerr"
	"github.com/google/uuid"
)

var newID = func() string { return uuid.NewString() }

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, name, createdBy string) (*models.Household, error) {
	query := `
		INSERT INTO households (id, name, created_by)
		VALUES ($1, $2, $3)
	`
	h := &models.Household{ID: newID(), Name: name, CreatedBy: createdBy}
	if _, err := r.db.ExecContext(ctx, query, h.ID, h.Name, h.CreatedBy); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return h, nil
}

func (r *PostgresRepository) ListForUser(ctx context.Context, userID string) ([]models.Household, error) {
	query := `
		SELECT h.id, h.name, h.created_by
		FROM households h
		JOIN household_members m ON m.household_id = h.id
		WHERE m.user_id = $1
		ORDER BY h.created_at, h.id
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []models.Household
	for rows.Next() {
		var h models.Household
		if err := rows.Scan(&h.ID, &h.Name, &h.CreatedBy); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) AddMember(ctx context.Context, m models.Member) error {
	query := `
		INSERT INTO household_members (household_id, user_id, role)
		VALUES ($1, $2, $3)
	`
	if _, err := r.db.ExecContext(ctx, query, m.HouseholdID, m.UserID, m.Role); err != nil {
		switch {
		case pgerr.IsUniqueViolation(err):
			return fmt.Errorf("%w: %s is already a member", common.ErrAlreadyExists, m.UserID)
		case pgerr.IsForeignKeyViolation(err):
			return fmt.Errorf("%w: household or user", common.ErrNotFound)
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Members(ctx context.Context, householdID string) ([]models.Member, error) {
	query := `
		SELECT m.household_id, m.user_id, u.username, m.role
		FROM household_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.household_id = $1
		ORDER BY m.created_at, u.username
	`
	rows, err := r.db.QueryContext(ctx, query, householdID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []models.Member
	for rows.Next() {
		var m models.Member
		if err := rows.Scan(&m.HouseholdID, &m.UserID, &m.UserName, &m.Role); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) Role(ctx context.Context, householdID, userID string) (string, error) {
	query := `
		SELECT role FROM household_members
		WHERE household_id = $1 AND user_id = $2
	`
	var role string
	if err := r.db.QueryRowContext(ctx, query, householdID, userID).Scan(&role); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", common.ErrNotFound
		}
		return "", fmt.Errorf("db error: %w", err)
	}
	return role, nil
}

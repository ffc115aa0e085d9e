package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/famledger/internal/common"
	"github.com/dmitrijs2005/famledger/internal/dbx"
	"github.com/dmitrijs2005/famledger/internal/models"
)

// Repository is the row-level access used inside PostgresStore's
// transaction.
type Repository interface {
	Get(ctx context.Context, entityType, id string, forUpdate bool) (*models.RemoteRecord, error)
	NextSeq(ctx context.Context, householdID string) (int64, error)
	LatestSeq(ctx context.Context, householdID string) (int64, error)
	Upsert(ctx context.Context, change *models.RemoteChange) error
	Changes(ctx context.Context, householdID string, since int64, limit int) ([]models.RemoteChange, error)
}

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const recordColumns = `entity_type, id, household_id, version, created_at, created_by,
		updated_at, updated_by, deleted_at, payload, seq, mutation_id`

type scanner interface {
	Scan(dest ...any) error
}

func scanChange(s scanner) (*models.RemoteChange, error) {
	var (
		c       models.RemoteChange
		deleted sql.NullTime
		payload []byte
	)
	r := &c.Record
	err := s.Scan(&r.EntityType, &r.ID, &r.HouseholdID, &r.Version, &r.CreatedAt, &r.CreatedBy,
		&r.UpdatedAt, &r.UpdatedBy, &deleted, &payload, &c.Seq, &c.MutationID)
	if err != nil {
		return nil, err
	}
	if deleted.Valid {
		t := deleted.Time
		r.DeletedAt = &t
	}
	r.Payload = payload
	return &c, nil
}

func (r *PostgresRepository) Get(ctx context.Context, entityType, id string, forUpdate bool) (*models.RemoteRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM records WHERE entity_type = $1 AND id = $2`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	c, err := scanChange(r.db.QueryRowContext(ctx, query, entityType, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &models.RemoteRecord{Record: c.Record, MutationID: c.MutationID}, nil
}

func (r *PostgresRepository) NextSeq(ctx context.Context, householdID string) (int64, error) {
	query := `UPDATE households SET change_seq = change_seq + 1 WHERE id = $1 RETURNING change_seq`

	var seq int64
	if err := r.db.QueryRowContext(ctx, query, householdID).Scan(&seq); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("%w: household %s", common.ErrNotFound, householdID)
		}
		return 0, fmt.Errorf("db error: %w", err)
	}
	return seq, nil
}

func (r *PostgresRepository) LatestSeq(ctx context.Context, householdID string) (int64, error) {
	query := `SELECT change_seq FROM households WHERE id = $1`

	var seq int64
	if err := r.db.QueryRowContext(ctx, query, householdID).Scan(&seq); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("%w: household %s", common.ErrNotFound, householdID)
		}
		return 0, fmt.Errorf("db error: %w", err)
	}
	return seq, nil
}

func (r *PostgresRepository) Upsert(ctx context.Context, c *models.RemoteChange) error {
	query := `
		INSERT INTO records (` + recordColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (entity_type, id) DO UPDATE SET
			version = EXCLUDED.version,
			updated_at = EXCLUDED.updated_at,
			updated_by = EXCLUDED.updated_by,
			deleted_at = EXCLUDED.deleted_at,
			payload = EXCLUDED.payload,
			seq = EXCLUDED.seq,
			mutation_id = EXCLUDED.mutation_id`

	rec := c.Record
	var deleted sql.NullTime
	if rec.DeletedAt != nil {
		deleted = sql.NullTime{Time: *rec.DeletedAt, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, query,
		rec.EntityType, rec.ID, rec.HouseholdID, rec.Version, rec.CreatedAt, rec.CreatedBy,
		rec.UpdatedAt, rec.UpdatedBy, deleted, []byte(rec.Payload), c.Seq, c.MutationID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Changes(ctx context.Context, householdID string, since int64, limit int) ([]models.RemoteChange, error) {
	query := `SELECT ` + recordColumns + ` FROM records
		WHERE household_id = $1 AND seq > $2
		ORDER BY seq
		LIMIT $3`

	rows, err := r.db.QueryContext(ctx, query, householdID, since, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []models.RemoteChange
	for rows.Next() {
		c, err := scanChange(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

// PostgresStore runs each Apply in its own transaction: lock the row,
// compare versions, bump the household sequence, upsert.
type PostgresStore struct {
	db    *sql.DB
	repos func(dbx.DBTX) Repository
}

// NewPostgresStore binds repositories to each handle through repos; nil
// uses NewPostgresRepository.
func NewPostgresStore(db *sql.DB, repos func(dbx.DBTX) Repository) *PostgresStore {
	if repos == nil {
		repos = func(tx dbx.DBTX) Repository { return NewPostgresRepository(tx) }
	}
	return &PostgresStore{db: db, repos: repos}
}

func (s *PostgresStore) Current(ctx context.Context, entityType, id string) (*models.RemoteRecord, error) {
	return s.repos(s.db).Get(ctx, entityType, id, false)
}

func (s *PostgresStore) Apply(ctx context.Context, change *models.RemoteChange, expected int64) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repos(tx)

		var current int64
		cur, err := repo.Get(ctx, change.Record.EntityType, change.Record.ID, true)
		switch {
		case errors.Is(err, common.ErrNotFound):
		case err != nil:
			return err
		default:
			if cur.HouseholdID != change.Record.HouseholdID {
				return fmt.Errorf("%w: record belongs to another household", common.ErrUnauthorized)
			}
			current = cur.Version
		}
		if current != expected {
			return fmt.Errorf("%w: %s/%s is at version %d, expected %d",
				common.ErrVersionConflict, change.Record.EntityType, change.Record.ID, current, expected)
		}

		seq, err := repo.NextSeq(ctx, change.Record.HouseholdID)
		if err != nil {
			return err
		}
		change.Seq = seq
		return repo.Upsert(ctx, change)
	})
}

func (s *PostgresStore) Changes(ctx context.Context, householdID string, since int64, limit int) ([]models.RemoteChange, int64, error) {
	repo := s.repos(s.db)
	latest, err := repo.LatestSeq(ctx, householdID)
	if err != nil {
		return nil, 0, err
	}
	changes, err := repo.Changes(ctx, householdID, since, limit)
	if err != nil {
		return nil, 0, err
	}
	return changes, latest, nil
}

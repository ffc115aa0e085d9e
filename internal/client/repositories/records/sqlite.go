package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/dmitrijs2005/famledger/internal/common"
	"github.com/dmitrijs2005/famledger/internal/dbx"
	"github.com/dmitrijs2005/famledger/internal/models"
)

const recordColumns = `id, entity_type, household_id, version, created_at, created_by,
	updated_at, updated_by, deleted_at, payload`

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner, extra ...any) (*models.Record, error) {
	var (
		r         models.Record
		createdAt int64
		updatedAt int64
		deletedAt sql.NullInt64
		payload   string
	)
	dest := []any{&r.ID, &r.EntityType, &r.HouseholdID, &r.Version, &createdAt, &r.CreatedBy,
		&updatedAt, &r.UpdatedBy, &deletedAt, &payload}
	if err := s.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	r.CreatedAt = dbx.FromNanos(createdAt)
	r.UpdatedAt = dbx.FromNanos(updatedAt)
	r.DeletedAt = dbx.FromNullNanos(deletedAt)
	r.Payload = []byte(payload)

	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (*models.Record, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM records WHERE id = ?`, id)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record %s: %w", id, err)
	}
	return rec, nil
}

func (r *SQLiteRepository) Put(ctx context.Context, rec *models.Record) error {
	query := `
		INSERT INTO records (` + recordColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			entity_type = excluded.entity_type,
			household_id = excluded.household_id,
			version = excluded.version,
			updated_at = excluded.updated_at,
			updated_by = excluded.updated_by,
			deleted_at = excluded.deleted_at,
			payload = excluded.payload`

	_, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.EntityType, rec.HouseholdID, rec.Version,
		dbx.Nanos(rec.CreatedAt), rec.CreatedBy,
		dbx.Nanos(rec.UpdatedAt), rec.UpdatedBy,
		dbx.NullNanos(rec.DeletedAt), string(rec.Payload),
	)
	if err != nil {
		return fmt.Errorf("failed to put record %s: %w", rec.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) Query(ctx context.Context, householdID string, pred func(*models.Record) bool) iter.Seq2[*models.Record, error] {
	return func(yield func(*models.Record, error) bool) {
		rows, err := r.db.QueryContext(ctx,
			`SELECT `+recordColumns+` FROM records WHERE household_id = ? ORDER BY id`, householdID)
		if err != nil {
			yield(nil, fmt.Errorf("failed to query records: %w", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			rec, err := scanRecord(rows)
			if err != nil {
				yield(nil, err)
				return
			}
			if pred != nil && !pred(rec) {
				continue
			}
			if !yield(rec, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, err)
		}
	}
}

// Position is a keyset position: the sort value and id of the last row seen.
type Position struct {
	Value any
	ID    string
}

type PageQuery struct {
	HouseholdID    string
	Filters        []Filter
	IncludeDeleted bool
	SortKey        string
	Descending     bool
	After          *Position
	Limit          int
}

// Item is a page row together with the value it was sorted by.
type Item struct {
	Record    *models.Record
	SortValue any
}

func (r *SQLiteRepository) Page(ctx context.Context, q PageQuery) ([]Item, error) {
	expr, err := sortExpr(q.SortKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidArgument, err)
	}
	if q.Limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", common.ErrInvalidArgument)
	}

	where := []string{"household_id = ?"}
	args := []any{q.HouseholdID}

	if !q.IncludeDeleted {
		where = append(where, "deleted_at IS NULL")
	}
	for _, f := range q.Filters {
		where = append(where, f.SQL())
		args = append(args, f.Args()...)
	}

	cmp, dir := ">", "ASC"
	if q.Descending {
		cmp, dir = "<", "DESC"
	}
	if q.After != nil {
		where = append(where, fmt.Sprintf("(%[1]s %[2]s ? OR (%[1]s = ? AND id %[2]s ?))", expr, cmp))
		args = append(args, q.After.Value, q.After.Value, q.After.ID)
	}

	query := fmt.Sprintf(`SELECT %s, %s FROM records WHERE %s ORDER BY %s %s, id %s LIMIT ?`,
		recordColumns, expr, strings.Join(where, " AND "), expr, dir, dir)
	args = append(args, q.Limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to page records: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var sortValue any
		rec, err := scanRecord(rows, &sortValue)
		if err != nil {
			return nil, err
		}
		items = append(items, Item{Record: rec, SortValue: sortValue})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// Package pagination serves cursor-paged reads of household records.
//
// Ordering is by a single sort key with the record id as tie-breaker; the
// cursor carries the sort key's value and id of the last item returned.
// Multi-key ordering is not supported: a compound sort would need a wider
// cursor. Pages are not snapshot-isolated: rows inserted after the cursor
// position show up on later pages, rows inserted before it do not.
package pagination

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/famledger/internal/client/repositories/records"
	"github.com/dmitrijs2005/famledger/internal/common"
	"github.com/dmitrijs2005/famledger/internal/dbx"
	"github.com/dmitrijs2005/famledger/internal/models"
)

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

func ParseDirection(s string) (Direction, error) {
	switch d := Direction(strings.ToLower(s)); d {
	case "", Asc:
		return Asc, nil
	case Desc:
		return Desc, nil
	}
	return "", fmt.Errorf("%w: sort direction %q", common.ErrInvalidArgument, s)
}

type Filters struct {
	EntityType     string
	CreatedBy      string
	PayloadEquals  map[string]any
	UpdatedSince   *time.Time
	IncludeDeleted bool
}

func (f Filters) build() ([]records.Filter, error) {
	var out []records.Filter
	if f.EntityType != "" {
		out = append(out, records.EntityTypeFilter{EntityType: f.EntityType})
	}
	if f.CreatedBy != "" {
		out = append(out, records.CreatedByFilter{UserID: f.CreatedBy})
	}
	for field, v := range f.PayloadEquals {
		if !records.ValidField(field) {
			return nil, fmt.Errorf("%w: payload field %q", common.ErrInvalidArgument, field)
		}
		out = append(out, records.PayloadEqualsFilter{Field: field, Value: v})
	}
	if f.UpdatedSince != nil {
		out = append(out, records.UpdatedSinceFilter{Nanos: dbx.Nanos(*f.UpdatedSince)})
	}
	return out, nil
}

type Page struct {
	Items []*models.Record
	// NextCursor is empty at the end of the sequence.
	NextCursor string
}

type Store interface {
	Page(ctx context.Context, q records.PageQuery) ([]records.Item, error)
}

type Reader struct {
	store Store
}

func NewReader(store Store) *Reader {
	return &Reader{store: store}
}

// Page returns up to limit records after cursor. The caller must already
// have established that it may read householdID.
func (r *Reader) Page(ctx context.Context, householdID string, filters Filters, sortKey string, dir Direction, limit int, cursor string) (*Page, error) {
	if sortKey == "" {
		sortKey = records.SortCreatedAt
	}
	if dir == "" {
		dir = Asc
	}
	switch {
	case limit == 0:
		limit = DefaultLimit
	case limit < 0:
		return nil, fmt.Errorf("%w: negative limit", common.ErrInvalidArgument)
	case limit > MaxLimit:
		limit = MaxLimit
	}

	fs, err := filters.build()
	if err != nil {
		return nil, err
	}

	q := records.PageQuery{
		HouseholdID:    householdID,
		Filters:        fs,
		IncludeDeleted: filters.IncludeDeleted,
		SortKey:        sortKey,
		Descending:     dir == Desc,
		Limit:          limit + 1,
	}

	if cursor != "" {
		c, err := decodeCursor(cursor)
		if err != nil {
			return nil, err
		}
		if c.SortKey != sortKey || c.Direction != dir {
			return nil, fmt.Errorf("%w: cursor was issued for %s %s", common.ErrInvalidArgument, c.SortKey, c.Direction)
		}
		q.After = &records.Position{Value: c.Value, ID: c.ID}
	}

	items, err := r.store.Page(ctx, q)
	if err != nil {
		return nil, err
	}

	page := &Page{Items: make([]*models.Record, 0, min(len(items), limit))}
	for i, it := range items {
		if i == limit {
			break
		}
		page.Items = append(page.Items, it.Record)
	}

	if len(items) > limit {
		last := items[limit-1]
		page.NextCursor, err = encodeCursor(cursorState{
			SortKey:   sortKey,
			Direction: dir,
			Value:     last.SortValue,
			ID:        last.Record.ID,
		})
		if err != nil {
			return nil, err
		}
	}
	return page, nil
}

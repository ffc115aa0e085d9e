package dbx

import (
	"database/sql"
	"time"
)

// SQLite has no timestamp type; the client schema stores UTC unix nanoseconds.

func Nanos(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func FromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func NullNanos(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: Nanos(*t), Valid: true}
}

func FromNullNanos(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := FromNanos(n.Int64)
	return &t
}

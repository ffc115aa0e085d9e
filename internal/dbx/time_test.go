package dbx

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNanosRoundTrip(t *testing.T) {
	ts := time.Date(2025, 5, 4, 3, 2, 1, 123456789, time.FixedZone("X", 3600))
	assert.True(t, ts.Equal(FromNanos(Nanos(ts))))
	assert.Equal(t, time.UTC, FromNanos(Nanos(ts)).Location())
}

func TestNullNanos(t *testing.T) {
	assert.False(t, NullNanos(nil).Valid)
	assert.Nil(t, FromNullNanos(sql.NullInt64{}))

	ts := time.Now()
	got := FromNullNanos(NullNanos(&ts))
	if assert.NotNil(t, got) {
		assert.True(t, ts.Equal(*got))
	}
}

package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidEntityType(t *testing.T) {
	for _, et := range []string{EntityExpense, EntityBudget, EntityEvent, EntityCategory} {
		assert.True(t, ValidEntityType(et), et)
	}
	assert.False(t, ValidEntityType(""))
	assert.False(t, ValidEntityType("invoice"))
}

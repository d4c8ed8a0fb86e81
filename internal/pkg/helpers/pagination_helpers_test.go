package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateOffsetLimit(t *testing.T) {
	offset, limit := CalculateOffsetLimit(3, 10)
	assert.Equal(t, uint64(20), offset)
	assert.Equal(t, uint64(10), limit)

	offset, limit = CalculateOffsetLimit(0, 1000)
	assert.Equal(t, uint64(0), offset)
	assert.Equal(t, uint64(DefaultPageSize), limit)
}

func TestNewPaginationInfo(t *testing.T) {
	info := NewPaginationInfo(45, 9, 20)
	assert.Equal(t, 3, info.TotalPages)
	assert.Equal(t, 3, info.CurrentPage)

	empty := NewPaginationInfo(0, 1, 20)
	assert.Equal(t, 1, empty.TotalPages)
}

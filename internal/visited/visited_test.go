package visited

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSet(t *testing.T) {
	v := New(10)

	assert.False(t, v.Visited(1))
	assert.False(t, v.Visited(5))

	assert.True(t, v.Visit(1))
	assert.False(t, v.Visit(1))
	assert.True(t, v.Visited(1))
	assert.False(t, v.Visited(5))

	assert.True(t, v.Visit(5))

	v.Reset()
	assert.False(t, v.Visited(1))
	assert.False(t, v.Visited(5))

	// Grows past the initial capacity.
	assert.True(t, v.Visit(1000))
	assert.True(t, v.Visited(1000))
	assert.False(t, v.Visited(999))
}

func TestSet_EnsureCapacity(t *testing.T) {
	v := New(0)
	v.EnsureCapacity(130)
	assert.GreaterOrEqual(t, len(v.bits), 3)
	assert.True(t, v.Visit(129))
}

package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func distances(cs []Candidate) []float32 {
	out := make([]float32, len(cs))
	for i, c := range cs {
		out[i] = c.Distance
	}
	return out
}

func TestQueue_MinOrder(t *testing.T) {
	q := NewMin(4)
	for i, d := range []float32{5, 1, 4, 2, 3} {
		q.Push(Candidate{ID: uint32(i), Distance: d})
	}

	top, ok := q.Top()
	require.True(t, ok)
	assert.Equal(t, float32(1), top.Distance)

	var got []float32
	for q.Len() > 0 {
		c, _ := q.Pop()
		got = append(got, c.Distance)
	}
	assert.Equal(t, []float32{1, 2, 3, 4, 5}, got)

	_, ok = q.Pop()
	assert.False(t, ok)
	_, ok = q.Top()
	assert.False(t, ok)
}

func TestQueue_MaxOrder(t *testing.T) {
	q := NewMax(0)
	for i, d := range []float32{2, 9, 7, 1} {
		q.Push(Candidate{ID: uint32(i), Distance: d})
	}

	c, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, float32(9), c.Distance)
	assert.Equal(t, uint32(1), c.ID)
	assert.Equal(t, 3, q.Len())
}

func TestQueue_DrainAscending(t *testing.T) {
	t.Run("Max", func(t *testing.T) {
		q := NewMax(0)
		for _, d := range []float32{3, 1, 2} {
			q.Push(Candidate{Distance: d})
		}
		out := q.DrainAscending(nil)
		assert.Equal(t, []float32{1, 2, 3}, distances(out))
		assert.Equal(t, 0, q.Len())
	})

	t.Run("Min", func(t *testing.T) {
		q := NewMin(0)
		for _, d := range []float32{3, 1, 2} {
			q.Push(Candidate{Distance: d})
		}
		out := q.DrainAscending([]Candidate{{Distance: 0}})
		assert.Equal(t, []float32{0, 1, 2, 3}, distances(out))
	})
}

func TestQueue_Reset(t *testing.T) {
	q := NewMin(0)
	q.Push(Candidate{ID: 1})
	q.Reset()
	assert.Equal(t, 0, q.Len())
}

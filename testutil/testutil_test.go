package testutil

import (
	"math"
	"testing"

	"github.com/hupe1980/hnswkit/distance"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUniformVectors(t *testing.T) {
	rng := NewRNG(42)
	vecs := rng.UniformVectors(10, 4)
	require.Len(t, vecs, 10)
	for _, v := range vecs {
		require.Len(t, v, 4)
		for _, x := range v {
			assert.GreaterOrEqual(t, x, float32(0))
			assert.Less(t, x, float32(1))
		}
	}

	again := NewRNG(42).UniformVectors(10, 4)
	assert.Equal(t, vecs, again)
}

func TestUnitVectors(t *testing.T) {
	for _, v := range NewRNG(1).UnitVectors(20, 8) {
		var norm float64
		for _, x := range v {
			norm += float64(x) * float64(x)
		}
		assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)
	}
}

func TestBruteForceSearch(t *testing.T) {
	vecs := [][]float32{{0, 0}, {3, 0}, {1, 0}}
	got := BruteForceSearch(distance.L2{}, vecs, []uint64{10, 20, 30}, []float32{0, 0}, 2)
	assert.Equal(t, []SearchResult{{ID: 10, Distance: 0}, {ID: 30, Distance: 1}}, got)
}

func TestComputeRecall(t *testing.T) {
	truth := []SearchResult{{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4}}
	assert.Equal(t, 1.0, ComputeRecall(nil, nil))
	assert.Equal(t, 0.0, ComputeRecall(truth, nil))
	assert.Equal(t, 0.5, ComputeRecall(truth, []SearchResult{{ID: 1}, {ID: 9}, {ID: 4}, {ID: 8}}))
}

func TestSequence(t *testing.T) {
	assert.Equal(t, []uint64{5, 6, 7}, Sequence(5, 3))
}

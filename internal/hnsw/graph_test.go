package hnsw

import (
	"bytes"
	"slices"
	"testing"

	"github.com/hupe1980/hnswkit/distance"
	"github.com/hupe1980/hnswkit/internal/vectorstore"
	"github.com/hupe1980/hnswkit/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOptions(dim int) Options {
	seed := int64(42)
	return Options{
		Dimension:      dim,
		M:              16,
		MaxElements:    1000,
		MaxLayer:       16,
		EfConstruction: 200,
		RandomSeed:     &seed,
	}
}

func newTestGraph[S distance.Space](t *testing.T, dim int) *Graph[S] {
	t.Helper()
	g, err := New[S](testOptions(dim))
	require.NoError(t, err)
	return g
}

func toResults(ns []Neighbor) []testutil.SearchResult {
	out := make([]testutil.SearchResult, len(ns))
	for i, n := range ns {
		out[i] = testutil.SearchResult{ID: n.ID, Distance: n.Distance}
	}
	return out
}

func TestGraph_ConcreteL2(t *testing.T) {
	g := newTestGraph[distance.L2](t, 3)

	require.NoError(t, g.Insert([]float32{0, 0, 0}, 1))
	require.NoError(t, g.Insert([]float32{1, 0, 0}, 2))
	require.NoError(t, g.Insert([]float32{10, 10, 10}, 3))

	got, err := g.Search([]float32{0, 0, 0}, 2, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, uint64(1), got[0].ID)
	assert.InDelta(t, 0.0, got[0].Distance, 1e-6)
	assert.Equal(t, uint64(2), got[1].ID)
	assert.InDelta(t, 1.0, got[1].Distance, 1e-6)
	assert.Equal(t, 3, g.Len())
}

func TestGraph_EmptyAndDegenerate(t *testing.T) {
	g := newTestGraph[distance.L2](t, 4)

	got, err := g.Search([]float32{0, 0, 0, 0}, 5, 10)
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, g.Insert([]float32{1, 1, 1, 1}, 7))

	got, err = g.Search([]float32{0, 0, 0, 0}, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = g.Search([]float32{0, 0, 0, 0}, 10, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, uint64(7), got[0].ID)
}

func TestGraph_DimensionMismatch(t *testing.T) {
	g := newTestGraph[distance.L2](t, 4)

	var dimErr *DimensionError
	err := g.Insert([]float32{1, 2}, 1)
	require.ErrorAs(t, err, &dimErr)
	assert.Equal(t, 4, dimErr.Expected)
	assert.Equal(t, 2, dimErr.Got)
	assert.Equal(t, 0, g.Len())

	_, err = g.Search([]float32{1}, 1, 1)
	assert.ErrorAs(t, err, &dimErr)
}

func TestGraph_ExactOnSmallSets(t *testing.T) {
	const n, dim = 150, 8
	vecs := testutil.NewRNG(7).UniformVectors(n, dim)
	queries := testutil.NewRNG(8).UniformVectors(10, dim)

	t.Run("L2", func(t *testing.T) { checkExact[distance.L2](t, vecs, queries) })
	t.Run("L1", func(t *testing.T) { checkExact[distance.L1](t, vecs, queries) })
	t.Run("Cosine", func(t *testing.T) { checkExact[distance.Cosine](t, vecs, queries) })

	unit := testutil.NewRNG(9).UnitVectors(n, dim)
	t.Run("Dot", func(t *testing.T) { checkExact[distance.Dot](t, unit, testutil.NewRNG(10).UnitVectors(10, dim)) })
}

func checkExact[S distance.Space](t *testing.T, vecs, queries [][]float32) {
	g := newTestGraph[S](t, len(vecs[0]))
	ids := testutil.Sequence(100, len(vecs))
	for i, v := range vecs {
		require.NoError(t, g.Insert(v, ids[i]))
	}

	var space S
	for _, q := range queries {
		got, err := g.Search(q, 10, 4*len(vecs))
		require.NoError(t, err)
		truth := testutil.BruteForceSearch(space, vecs, ids, q, 10)
		require.Len(t, got, 10)
		for i := range truth {
			assert.InDelta(t, truth[i].Distance, got[i].Distance, 1e-5)
		}
		assert.Equal(t, 1.0, testutil.ComputeRecall(truth, toResults(got)))
	}
}

func TestGraph_Recall(t *testing.T) {
	const n, dim = 2000, 16
	vecs := testutil.NewRNG(1).UniformVectors(n, dim)
	g := newTestGraph[distance.L2](t, dim)
	for i, v := range vecs {
		require.NoError(t, g.Insert(v, uint64(i)))
	}

	var total float64
	queries := testutil.NewRNG(2).UniformVectors(50, dim)
	for _, q := range queries {
		got, err := g.Search(q, 10, 100)
		require.NoError(t, err)
		total += testutil.ComputeRecall(testutil.BruteForceSearch(distance.L2{}, vecs, nil, q, 10), toResults(got))
	}
	assert.GreaterOrEqual(t, total/float64(len(queries)), 0.9)
}

func TestGraph_NearestFirst(t *testing.T) {
	vecs := testutil.NewRNG(3).UniformVectors(300, 8)
	g := newTestGraph[distance.L2](t, 8)
	for i, v := range vecs {
		require.NoError(t, g.Insert(v, uint64(i)))
	}

	got, err := g.Search(vecs[0], 20, 50)
	require.NoError(t, err)
	assert.True(t, slices.IsSortedFunc(got, func(a, b Neighbor) int {
		switch {
		case a.Distance < b.Distance:
			return -1
		case a.Distance > b.Distance:
			return 1
		}
		return 0
	}))
}

func TestGraph_DuplicateIDs(t *testing.T) {
	g := newTestGraph[distance.L2](t, 2)
	require.NoError(t, g.Insert([]float32{0, 0}, 5))
	require.NoError(t, g.Insert([]float32{1, 1}, 5))
	require.NoError(t, g.Insert([]float32{2, 2}, 6))

	assert.Equal(t, 3, g.Len())

	var ids []uint64
	for p := range g.Points() {
		ids = append(ids, p.ID)
	}
	slices.Sort(ids)
	assert.Equal(t, []uint64{5, 5, 6}, ids)
}

func TestGraph_Points(t *testing.T) {
	vecs := testutil.NewRNG(4).UniformVectors(500, 4)
	g := newTestGraph[distance.L2](t, 4)
	for i, v := range vecs {
		require.NoError(t, g.Insert(v, uint64(i)))
	}

	seen := make(map[uint64][]float32)
	for p := range g.Points() {
		_, dup := seen[p.ID]
		require.False(t, dup)
		seen[p.ID] = p.Vector
	}
	require.Len(t, seen, len(vecs))
	for i, v := range vecs {
		assert.Equal(t, v, seen[uint64(i)])
	}

	count := 0
	for range g.Points() {
		count++
		if count == 3 {
			break
		}
	}
	assert.Equal(t, 3, count)

	p, ok := g.Point(0)
	require.True(t, ok)
	assert.Equal(t, uint64(0), p.ID)
	_, ok = g.Point(10_000)
	assert.False(t, ok)
}

func TestGraph_MaxLayerCapsLevels(t *testing.T) {
	opts := testOptions(2)
	opts.MaxLayer = 1
	opts.M = 2
	g, err := New[distance.L2](opts)
	require.NoError(t, err)

	for i, v := range testutil.NewRNG(5).UniformVectors(200, 2) {
		require.NoError(t, g.Insert(v, uint64(i)))
	}

	st := g.Stats()
	assert.Equal(t, 0, st.MaxLevel)
	require.Len(t, st.Levels, 1)
	assert.Equal(t, 200, st.Levels[0].Nodes)
}

func TestGraph_ParallelInsert(t *testing.T) {
	const n, dim = 3000, 16
	vecs := testutil.NewRNG(11).UniformVectors(n, dim)
	ids := testutil.Sequence(0, n)

	g := newTestGraph[distance.L2](t, dim)
	require.NoError(t, g.ParallelInsert(vecs, ids, 8))
	assert.Equal(t, n, g.Len())

	seen := make(map[uint64]struct{}, n)
	for p := range g.Points() {
		seen[p.ID] = struct{}{}
	}
	assert.Len(t, seen, n)

	var total float64
	queries := testutil.NewRNG(12).UniformVectors(30, dim)
	for _, q := range queries {
		got, err := g.Search(q, 10, 100)
		require.NoError(t, err)
		total += testutil.ComputeRecall(testutil.BruteForceSearch(distance.L2{}, vecs, ids, q, 10), toResults(got))
	}
	assert.GreaterOrEqual(t, total/float64(len(queries)), 0.9)

	t.Run("LengthMismatch", func(t *testing.T) {
		err := g.ParallelInsert(vecs[:3], ids[:2], 2)
		assert.Error(t, err)
		assert.Equal(t, n, g.Len())
	})

	t.Run("BadDimension", func(t *testing.T) {
		g := newTestGraph[distance.L2](t, dim)
		err := g.ParallelInsert([][]float32{make([]float32, dim), {1}}, []uint64{1, 2}, 1)
		var dimErr *DimensionError
		assert.ErrorAs(t, err, &dimErr)
	})
}

func TestGraph_SearchingMode(t *testing.T) {
	vecs := testutil.NewRNG(13).UniformVectors(400, 8)
	g := newTestGraph[distance.L2](t, 8)
	for i, v := range vecs[:300] {
		require.NoError(t, g.Insert(v, uint64(i)))
	}

	q := vecs[42]
	before, err := g.Search(q, 10, 64)
	require.NoError(t, err)

	g.SetSearchingMode(true)
	assert.True(t, g.searchingMode())
	assert.True(t, g.isFrozen())

	during, err := g.Search(q, 10, 64)
	require.NoError(t, err)
	assert.Equal(t, before, during)

	require.NoError(t, g.Insert(vecs[300], 300))
	assert.False(t, g.isFrozen())

	_, err = g.Search(q, 10, 64)
	require.NoError(t, err)
	assert.True(t, g.isFrozen())

	g.SetSearchingMode(false)
	assert.False(t, g.isFrozen())
	assert.True(t, g.Stats().Points == 301)
}

func TestGraph_TopologyRoundTrip(t *testing.T) {
	const n, dim = 500, 8
	vecs := testutil.NewRNG(21).UniformVectors(n, dim)
	g := newTestGraph[distance.Cosine](t, dim)
	for i, v := range vecs {
		require.NoError(t, g.Insert(v, uint64(1000+i)))
	}

	var topo bytes.Buffer
	written, err := g.EncodeTopology(&topo)
	require.NoError(t, err)
	assert.Equal(t, int64(topo.Len()), written)

	flat := make([]float32, 0, n*dim)
	ids := make([]uint64, n)
	for i := 0; i < n; i++ {
		p, ok := g.Point(uint32(i))
		require.True(t, ok)
		flat = append(flat, p.Vector...)
		ids[i] = p.ID
	}
	store, err := vectorstore.NewBorrowed(dim, flat, 0)
	require.NoError(t, err)

	ep, level, ok := g.entryPoint()
	require.True(t, ok)

	restored, err := FromImage[distance.Cosine](Image{
		Options:    g.Options(),
		Metric:     distance.MetricCosine,
		EntryPoint: ep,
		MaxLevel:   level,
		IDs:        ids,
		Vectors:    store,
		Topology:   bytes.NewReader(topo.Bytes()),
	})
	require.NoError(t, err)
	assert.Equal(t, n, restored.Len())
	assert.True(t, restored.Borrowed())
	assert.Equal(t, g.Stats().Levels, restored.Stats().Levels)

	for _, q := range testutil.NewRNG(22).UniformVectors(10, dim) {
		want, err := g.Search(q, 5, 50)
		require.NoError(t, err)
		got, err := restored.Search(q, 5, 50)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	// A restored graph keeps accepting inserts on top of the borrowed vectors.
	require.NoError(t, restored.Insert(make([]float32, dim), 7))
	assert.Equal(t, n+1, restored.Len())
}

func TestFromImage_Corrupt(t *testing.T) {
	g := newTestGraph[distance.L2](t, 2)
	require.NoError(t, g.Insert([]float32{0, 0}, 1))
	require.NoError(t, g.Insert([]float32{1, 0}, 2))

	var topo bytes.Buffer
	_, err := g.EncodeTopology(&topo)
	require.NoError(t, err)
	ep, level, _ := g.entryPoint()

	image := func(topology []byte) Image {
		store, err := vectorstore.NewBorrowed(2, []float32{0, 0, 1, 0}, 0)
		require.NoError(t, err)
		return Image{
			Options:    g.Options(),
			Metric:     distance.MetricL2,
			EntryPoint: ep,
			MaxLevel:   level,
			IDs:        []uint64{1, 2},
			Vectors:    store,
			Topology:   bytes.NewReader(topology),
		}
	}

	t.Run("Valid", func(t *testing.T) {
		_, err := FromImage[distance.L2](image(topo.Bytes()))
		require.NoError(t, err)
	})

	t.Run("Truncated", func(t *testing.T) {
		_, err := FromImage[distance.L2](image(topo.Bytes()[:topo.Len()-2]))
		assert.ErrorIs(t, err, ErrCorrupt)
	})

	t.Run("Trailing", func(t *testing.T) {
		_, err := FromImage[distance.L2](image(append(bytes.Clone(topo.Bytes()), 0)))
		assert.ErrorIs(t, err, ErrCorrupt)
	})

	t.Run("WrongSpace", func(t *testing.T) {
		_, err := FromImage[distance.Dot](image(topo.Bytes()))
		assert.ErrorIs(t, err, ErrCorrupt)
	})

	t.Run("BadEntryPoint", func(t *testing.T) {
		img := image(topo.Bytes())
		img.EntryPoint = 9
		_, err := FromImage[distance.L2](img)
		assert.ErrorIs(t, err, ErrCorrupt)
	})

	t.Run("IDCountMismatch", func(t *testing.T) {
		img := image(topo.Bytes())
		img.IDs = img.IDs[:1]
		_, err := FromImage[distance.L2](img)
		assert.ErrorIs(t, err, ErrCorrupt)
	})
}

func TestGraph_Release(t *testing.T) {
	g := newTestGraph[distance.L2](t, 2)
	require.NoError(t, g.Insert([]float32{0, 0}, 1))

	g.Release()
	g.Release()

	assert.Equal(t, 0, g.Len())
	_, err := g.Search([]float32{0, 0}, 1, 1)
	assert.ErrorIs(t, err, ErrReleased)
	assert.ErrorIs(t, g.Insert([]float32{0, 0}, 2), ErrReleased)
}

func TestGraph_Stats(t *testing.T) {
	g := newTestGraph[distance.L2](t, 2)
	st := g.Stats()
	assert.Equal(t, -1, st.MaxLevel)
	assert.Equal(t, 0, st.Points)

	for i, v := range testutil.NewRNG(30).UniformVectors(100, 2) {
		require.NoError(t, g.Insert(v, uint64(i)))
	}
	st = g.Stats()
	assert.Equal(t, 100, st.Points)
	assert.Equal(t, 100, st.Levels[0].Nodes)
	assert.Positive(t, st.Levels[0].Links)
	assert.Equal(t, 16, st.M)
	assert.False(t, st.Borrowed)
}

func TestGraph_Snapshot(t *testing.T) {
	g := newTestGraph[distance.Dot](t, 3)
	snap := g.Snapshot()
	assert.Equal(t, -1, snap.MaxLevel)
	assert.Equal(t, 0, snap.Count)

	require.NoError(t, g.Insert([]float32{1, 0, 0}, 9))
	snap = g.Snapshot()
	assert.Equal(t, distance.MetricDot, snap.Metric)
	assert.Equal(t, 1, snap.Count)
	assert.Equal(t, uint32(0), snap.EntryPoint)
	assert.Equal(t, 3, snap.Options.Dimension)
}

package persistence

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hupe1980/hnswkit/distance"
	"github.com/hupe1980/hnswkit/internal/fs"
	"github.com/hupe1980/hnswkit/internal/hnsw"
	"github.com/hupe1980/hnswkit/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildGraph(t *testing.T, n, dim int) (*hnsw.Graph[distance.L2], [][]float32) {
	t.Helper()
	seed := int64(3)
	g, err := hnsw.New[distance.L2](hnsw.Options{
		Dimension:      dim,
		M:              8,
		MaxElements:    uint64(n),
		MaxLayer:       16,
		EfConstruction: 64,
		RandomSeed:     &seed,
	})
	require.NoError(t, err)

	vecs := testutil.NewRNG(5).UniformVectors(n, dim)
	for i, v := range vecs {
		require.NoError(t, g.Insert(v, uint64(10*i)))
	}
	return g, vecs
}

func TestImage_RoundTrip(t *testing.T) {
	for _, c := range []Compression{CompressionNone, CompressionLZ4, CompressionZstd} {
		t.Run(c.String(), func(t *testing.T) {
			dir := t.TempDir()
			g, vecs := buildGraph(t, 300, 12)

			stats, err := WriteImage(dir, "idx", g, WriteOptions{Compression: c})
			require.NoError(t, err)
			assert.Equal(t, 300, stats.Points)
			assert.Positive(t, stats.GraphBytes)
			assert.Equal(t, int64(dataHeaderSize+300*8+300*12*4+trailerSize), stats.DataBytes)

			img, err := Open(dir, "idx", OpenOptions{VerifyChecksums: true})
			require.NoError(t, err)
			defer img.Close()

			assert.Equal(t, distance.MetricL2, img.Header.Metric)
			assert.Equal(t, 300, img.Header.Count)
			assert.Equal(t, 12, img.Header.Options.Dimension)
			assert.Equal(t, 8, img.Header.Options.M)
			assert.Equal(t, stats.Compression, img.Header.Compression)
			assert.Equal(t, int(stats.DataBytes), img.Mapped())

			loaded, err := hnsw.FromImage[distance.L2](img.Graph)
			require.NoError(t, err)
			defer loaded.Release()

			assert.Equal(t, 300, loaded.Len())
			assert.True(t, loaded.Borrowed())

			for _, q := range vecs[:10] {
				want, err := g.Search(q, 5, 40)
				require.NoError(t, err)
				got, err := loaded.Search(q, 5, 40)
				require.NoError(t, err)
				assert.Equal(t, want, got)
			}
		})
	}
}

func TestWriteImage_Atomic(t *testing.T) {
	g, _ := buildGraph(t, 50, 4)

	tests := []struct {
		name  string
		fault fs.Fault
		rule  string
	}{
		{name: "DataWrite", rule: DataSuffix, fault: fs.Fault{FailAfterBytes: 100}},
		{name: "GraphWrite", rule: GraphSuffix, fault: fs.Fault{FailAfterBytes: 10}},
		{name: "Sync", rule: GraphSuffix, fault: fs.Fault{FailAfterBytes: -1, FailOnSync: true}},
		{name: "Rename", rule: GraphSuffix, fault: fs.Fault{FailAfterBytes: -1, FailOnRename: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			ffs := fs.NewFaultyFS(nil)
			ffs.AddRule(tt.rule, tt.fault)

			_, err := WriteImage(dir, "idx", g, WriteOptions{FS: ffs, Compression: CompressionLZ4})
			require.Error(t, err)

			entries, err := os.ReadDir(dir)
			require.NoError(t, err)
			assert.Empty(t, entries)
		})
	}
}

func TestWriteImage_Overwrite(t *testing.T) {
	dir := t.TempDir()
	small, _ := buildGraph(t, 10, 4)
	large, _ := buildGraph(t, 40, 4)

	_, err := WriteImage(dir, "idx", small, WriteOptions{})
	require.NoError(t, err)
	_, err = WriteImage(dir, "idx", large, WriteOptions{Compression: CompressionZstd})
	require.NoError(t, err)

	img, err := Open(dir, "idx", OpenOptions{VerifyChecksums: true})
	require.NoError(t, err)
	defer img.Close()
	assert.Equal(t, 40, img.Header.Count)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestOpen_Corrupt(t *testing.T) {
	write := func(t *testing.T) string {
		dir := t.TempDir()
		g, _ := buildGraph(t, 64, 4)
		_, err := WriteImage(dir, "idx", g, WriteOptions{Compression: CompressionLZ4})
		require.NoError(t, err)
		return dir
	}

	mutate := func(t *testing.T, path string, fn func([]byte) []byte) {
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(path, fn(data), 0o644))
	}

	t.Run("Missing", func(t *testing.T) {
		_, err := Open(t.TempDir(), "idx", OpenOptions{})
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("MissingData", func(t *testing.T) {
		dir := write(t)
		require.NoError(t, os.Remove(DataPath(dir, "idx")))
		_, err := Open(dir, "idx", OpenOptions{})
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("GraphMagic", func(t *testing.T) {
		dir := write(t)
		mutate(t, GraphPath(dir, "idx"), func(b []byte) []byte { b[0] ^= 0xff; return b })
		_, err := Open(dir, "idx", OpenOptions{})
		assert.ErrorIs(t, err, ErrInvalidMagic)
	})

	t.Run("TopologyChecksum", func(t *testing.T) {
		dir := write(t)
		mutate(t, GraphPath(dir, "idx"), func(b []byte) []byte { b[len(b)-1] ^= 0xff; return b })
		_, err := Open(dir, "idx", OpenOptions{})
		assert.True(t, IsChecksumMismatch(err))
	})

	t.Run("GraphTruncated", func(t *testing.T) {
		dir := write(t)
		mutate(t, GraphPath(dir, "idx"), func(b []byte) []byte { return b[:graphHeaderSize-1] })
		_, err := Open(dir, "idx", OpenOptions{})
		assert.ErrorIs(t, err, ErrTruncated)
	})

	t.Run("DataTruncated", func(t *testing.T) {
		dir := write(t)
		mutate(t, DataPath(dir, "idx"), func(b []byte) []byte { return b[:len(b)-12] })
		_, err := Open(dir, "idx", OpenOptions{})
		assert.ErrorIs(t, err, ErrTruncated)
	})

	t.Run("DataChecksum", func(t *testing.T) {
		dir := write(t)
		mutate(t, DataPath(dir, "idx"), func(b []byte) []byte { b[dataHeaderSize+3] ^= 0x01; return b })

		_, err := Open(dir, "idx", OpenOptions{VerifyChecksums: true})
		assert.True(t, IsChecksumMismatch(err))

		img, err := Open(dir, "idx", OpenOptions{})
		require.NoError(t, err)
		require.NoError(t, img.Close())
	})

	t.Run("DataMagic", func(t *testing.T) {
		dir := write(t)
		mutate(t, DataPath(dir, "idx"), func(b []byte) []byte { b[1] ^= 0xff; return b })
		_, err := Open(dir, "idx", OpenOptions{})
		assert.ErrorIs(t, err, ErrInvalidMagic)
	})

	t.Run("Trailer", func(t *testing.T) {
		dir := write(t)
		mutate(t, DataPath(dir, "idx"), func(b []byte) []byte { b[len(b)-1] ^= 0xff; return b })
		_, err := Open(dir, "idx", OpenOptions{})
		assert.ErrorIs(t, err, ErrCorrupt)
	})

	t.Run("MismatchedPair", func(t *testing.T) {
		dir := write(t)
		other := t.TempDir()
		g, _ := buildGraph(t, 10, 4)
		_, err := WriteImage(other, "idx", g, WriteOptions{})
		require.NoError(t, err)

		data, err := os.ReadFile(DataPath(other, "idx"))
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, "idx"+DataSuffix), data, 0o644))

		_, err = Open(dir, "idx", OpenOptions{})
		assert.ErrorIs(t, err, ErrCorrupt)
	})
}

func TestOpen_PairWithSameShape(t *testing.T) {
	dir := t.TempDir()
	g, _ := buildGraph(t, 32, 4)
	_, err := WriteImage(dir, "idx", g, WriteOptions{})
	require.NoError(t, err)

	other := t.TempDir()
	shifted, err := hnsw.New[distance.L2](hnsw.Options{Dimension: 4, M: 8, MaxElements: 32, MaxLayer: 16, EfConstruction: 64})
	require.NoError(t, err)
	for i, v := range testutil.NewRNG(99).UniformVectors(32, 4) {
		require.NoError(t, shifted.Insert(v, uint64(i)))
	}
	_, err = WriteImage(other, "idx", shifted, WriteOptions{})
	require.NoError(t, err)

	data, err := os.ReadFile(DataPath(other, "idx"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(DataPath(dir, "idx"), data, 0o644))

	_, err = Open(dir, "idx", OpenOptions{})
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestOpen_Capacity(t *testing.T) {
	dir := t.TempDir()
	g, _ := buildGraph(t, 20, 4)
	_, err := WriteImage(dir, "idx", g, WriteOptions{})
	require.NoError(t, err)

	img, err := Open(dir, "idx", OpenOptions{Capacity: 5000})
	require.NoError(t, err)
	defer img.Close()

	loaded, err := hnsw.FromImage[distance.L2](img.Graph)
	require.NoError(t, err)
	defer loaded.Release()

	for i := 0; i < 100; i++ {
		require.NoError(t, loaded.Insert([]float32{float32(i), 0, 0, 0}, uint64(1000+i)))
	}
	assert.Equal(t, 120, loaded.Len())
}

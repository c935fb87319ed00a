package hnswkit_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/hnswkit"
)

func TestBasicMetricsCollector(t *testing.T) {
	mc := &hnswkit.BasicMetricsCollector{}
	ix := newIndex(t, 2, hnswkit.L2, hnswkit.WithMetrics(mc))

	require.NoError(t, ix.Insert([]float32{1, 1}, 1))
	require.Error(t, ix.Insert([]float32{1}, 2))
	require.NoError(t, ix.InsertBatch([][]float32{{2, 2}, {3, 3}}, []uint64{2, 3}))
	_, err := ix.Search([]float32{1, 1}, 2, 10)
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, ix.Save(dir, "idx"))
	loaded, err := hnswkit.Load(dir, "idx", hnswkit.DefaultConfig(2, hnswkit.L2), hnswkit.WithMetrics(mc))
	require.NoError(t, err)
	defer loaded.Close()

	out, err := ix.Compact([]uint64{1}, ix.Config())
	require.NoError(t, err)
	defer out.Close()

	st := mc.GetStats()
	assert.Equal(t, int64(2), st.InsertCount)
	assert.Equal(t, int64(1), st.InsertErrors)
	assert.Equal(t, int64(1), st.BatchInsertCount)
	assert.Equal(t, int64(2), st.BatchInsertItems)
	assert.Equal(t, int64(1), st.SearchCount)
	assert.Equal(t, int64(1), st.SaveCount)
	assert.Positive(t, st.SaveBytes)
	assert.Equal(t, int64(1), st.LoadCount)
	assert.Equal(t, int64(0), st.LoadErrors)
	assert.Equal(t, int64(1), st.CompactCount)
	assert.Equal(t, int64(1), st.CompactRemoved)
}

func TestLogger_TagsIndexID(t *testing.T) {
	var buf bytes.Buffer
	logger := hnswkit.NewLogger(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ix := newIndex(t, 2, hnswkit.L2, hnswkit.WithLogger(logger))

	require.NoError(t, ix.Insert([]float32{1, 2}, 5))
	require.Error(t, ix.Insert([]float32{1}, 6))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first, second map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))

	assert.Equal(t, "insert completed", first["msg"])
	assert.Equal(t, ix.ID(), first["index_id"])
	assert.Equal(t, float64(5), first["id"])

	assert.Equal(t, "ERROR", second["level"])
	assert.Equal(t, "insert failed", second["msg"])
	assert.Contains(t, second["error"], "dimension mismatch")
}

func TestLogger_Nil(t *testing.T) {
	ix := newIndex(t, 2, hnswkit.L2, hnswkit.WithLogger(nil), hnswkit.WithMetrics(nil))
	require.NoError(t, ix.Insert([]float32{1, 2}, 1))
}

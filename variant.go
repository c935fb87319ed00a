package hnswkit

import (
	"io"
	"iter"

	"github.com/hupe1980/hnswkit/distance"
	"github.com/hupe1980/hnswkit/internal/hnsw"
)

// graphEngine is the metric-independent view of an hnsw.Graph. Every Index
// operation goes through it; the metric is chosen once, in newEngine or
// loadEngine.
type graphEngine interface {
	Insert(vec []float32, id uint64) error
	ParallelInsert(vecs [][]float32, ids []uint64, workers int) error
	Search(q []float32, k, ef int) ([]hnsw.Neighbor, error)
	Points() iter.Seq[hnsw.Point]
	Point(id uint32) (hnsw.Point, bool)
	SetSearchingMode(enabled bool)
	Len() int
	Stats() hnsw.Stats
	Snapshot() hnsw.Snapshot
	EncodeTopology(w io.Writer) (int64, error)
	Release()
}

var (
	_ graphEngine = (*hnsw.Graph[distance.L2])(nil)
	_ graphEngine = (*hnsw.Graph[distance.L1])(nil)
	_ graphEngine = (*hnsw.Graph[distance.Cosine])(nil)
	_ graphEngine = (*hnsw.Graph[distance.Dot])(nil)
)

func newEngine(metric distance.Metric, opts hnsw.Options) (graphEngine, error) {
	switch metric {
	case distance.MetricL2:
		return engine[distance.L2](hnsw.New[distance.L2](opts))
	case distance.MetricL1:
		return engine[distance.L1](hnsw.New[distance.L1](opts))
	case distance.MetricCosine:
		return engine[distance.Cosine](hnsw.New[distance.Cosine](opts))
	case distance.MetricDot:
		return engine[distance.Dot](hnsw.New[distance.Dot](opts))
	default:
		return nil, &InvalidDistanceError{Distance: metric.String()}
	}
}

func loadEngine(img hnsw.Image) (graphEngine, error) {
	switch img.Metric {
	case distance.MetricL2:
		return engine[distance.L2](hnsw.FromImage[distance.L2](img))
	case distance.MetricL1:
		return engine[distance.L1](hnsw.FromImage[distance.L1](img))
	case distance.MetricCosine:
		return engine[distance.Cosine](hnsw.FromImage[distance.Cosine](img))
	case distance.MetricDot:
		return engine[distance.Dot](hnsw.FromImage[distance.Dot](img))
	default:
		return nil, &InvalidDistanceError{Distance: img.Metric.String()}
	}
}

// engine converts a constructor result, keeping a failed construction a nil interface.
func engine[S distance.Space](g *hnsw.Graph[S], err error) (graphEngine, error) {
	if err != nil {
		return nil, err
	}
	return g, nil
}

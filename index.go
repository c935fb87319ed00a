package hnswkit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hupe1980/hnswkit/distance"
	"github.com/hupe1980/hnswkit/internal/hnsw"
)

// SearchResult is one search hit.
type SearchResult struct {
	ID       uint64
	Distance float32
}

// Index is a thread-safe HNSW index over float32 vectors.
//
// Every operation holds a single per-index mutex for its full duration. If the
// graph engine panics while the mutex is held, the index is poisoned and all
// later operations fail with ErrLock.
type Index struct {
	id     string
	cfg    Config
	opts   options
	logger *Logger

	mu       sync.Mutex
	poisoned bool
	closed   bool
	engine   graphEngine
	// image is set for loaded indexes and owns the mapping engine borrows from.
	image *loadedImage
}

// New creates an empty index.
func New(cfg Config, optFns ...Option) (*Index, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return newIndex(cfg, applyOptions(optFns))
}

func newIndex(cfg Config, o options) (*Index, error) {
	engine, err := newEngine(cfg.Distance, cfg.graphOptions(o.seed))
	if err != nil {
		return nil, err
	}
	return wrapEngine(cfg, o, engine, nil), nil
}

func wrapEngine(cfg Config, o options, engine graphEngine, image *loadedImage) *Index {
	id := uuid.NewString()
	return &Index{
		id:     id,
		cfg:    cfg,
		opts:   o,
		logger: o.logger.WithIndex(id),
		engine: engine,
		image:  image,
	}
}

// lock acquires the index mutex. It fails without holding the mutex when the
// index is poisoned or closed.
func (ix *Index) lock() error {
	ix.mu.Lock()
	if ix.poisoned {
		ix.mu.Unlock()
		return ErrLock
	}
	if ix.closed {
		ix.mu.Unlock()
		return ErrClosed
	}
	return nil
}

// withLock runs fn under the index mutex. A panic in fn poisons the index,
// releases the mutex and continues unwinding.
func (ix *Index) withLock(fn func() error) error {
	if err := ix.lock(); err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			ix.poisoned = true
			ix.mu.Unlock()
			panic(r)
		}
		ix.mu.Unlock()
	}()
	return fn()
}

// ID returns the instance id used to tag log records.
func (ix *Index) ID() string { return ix.id }

// Dimension returns the vector dimension.
func (ix *Index) Dimension() int { return int(ix.cfg.Dimension) }

// Distance returns the distance metric.
func (ix *Index) Distance() distance.Metric { return ix.cfg.Distance }

// Config returns the effective config. For loaded indexes the graph parameters
// come from the image.
func (ix *Index) Config() Config { return ix.cfg }

func (ix *Index) checkDimension(v []float32) error {
	if len(v) != int(ix.cfg.Dimension) {
		return &DimensionMismatchError{Expected: int(ix.cfg.Dimension), Got: len(v)}
	}
	return nil
}

// Insert adds vector under id. Inserting an existing id adds a second point.
func (ix *Index) Insert(vector []float32, id uint64) error {
	start := time.Now()
	err := ix.insert(vector, id)
	ix.opts.metrics.RecordInsert(time.Since(start), err)
	ix.logger.LogInsert(context.Background(), id, err)
	return err
}

func (ix *Index) insert(vector []float32, id uint64) error {
	if err := ix.checkDimension(vector); err != nil {
		return err
	}
	return ix.withLock(func() error {
		return ix.engine.Insert(vector, id)
	})
}

// InsertBatch inserts vectors[i] under ids[i] using parallel workers. Every
// vector is validated before any is inserted; a bad element aborts the batch.
func (ix *Index) InsertBatch(vectors [][]float32, ids []uint64) error {
	start := time.Now()
	err := ix.insertBatch(vectors, ids)
	ix.opts.metrics.RecordBatchInsert(len(vectors), time.Since(start), err)
	ix.logger.LogBatchInsert(context.Background(), len(vectors), err)
	return err
}

func (ix *Index) insertBatch(vectors [][]float32, ids []uint64) error {
	if len(vectors) != len(ids) {
		return &IOError{Msg: fmt.Sprintf("%d vectors but %d ids", len(vectors), len(ids))}
	}
	for _, v := range vectors {
		if err := ix.checkDimension(v); err != nil {
			return err
		}
	}
	if len(vectors) == 0 {
		return nil
	}
	return ix.withLock(func() error {
		return ix.engine.ParallelInsert(vectors, ids, ix.opts.batchWorkers)
	})
}

// Search returns up to k nearest neighbors of query, nearest first. The
// candidate list holds max(efSearch, k) entries.
func (ix *Index) Search(query []float32, k, efSearch int) ([]SearchResult, error) {
	start := time.Now()
	results, err := ix.search(query, k, efSearch)
	ix.opts.metrics.RecordSearch(k, time.Since(start), err)
	ix.logger.LogSearch(context.Background(), k, len(results), err)
	return results, err
}

func (ix *Index) search(query []float32, k, efSearch int) ([]SearchResult, error) {
	if err := ix.checkDimension(query); err != nil {
		return nil, err
	}

	var neighbors []hnsw.Neighbor
	err := ix.withLock(func() error {
		if k <= 0 {
			return nil
		}
		var err error
		neighbors, err = ix.engine.Search(query, k, max(efSearch, k))
		return err
	})
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, len(neighbors))
	for i, n := range neighbors {
		results[i] = SearchResult{ID: n.ID, Distance: n.Distance}
	}
	return results, nil
}

// Len returns the number of points, counting duplicate ids separately.
func (ix *Index) Len() (int, error) {
	var n int
	err := ix.withLock(func() error {
		n = ix.engine.Len()
		return nil
	})
	return n, err
}

// IsEmpty reports whether the index holds no points.
func (ix *Index) IsEmpty() (bool, error) {
	n, err := ix.Len()
	return n == 0, err
}

// SetSearchingMode switches the graph to a read-optimized layout while
// enabled. Inserts remain allowed and search results do not change.
func (ix *Index) SetSearchingMode(enabled bool) error {
	return ix.withLock(func() error {
		ix.engine.SetSearchingMode(enabled)
		return nil
	})
}

// LevelStats describes one graph layer.
type LevelStats struct {
	Level int
	Nodes int
	Links int
}

// Stats is a point-in-time summary of an index.
type Stats struct {
	Points         int
	MaxLevel       int
	EntryPoint     uint32
	M              int
	MaxLayer       int
	EfConstruction int
	Levels         []LevelStats
	SearchingMode  bool
	// Mapped reports whether vectors are served from a memory-mapped image.
	Mapped      bool
	MappedBytes int
}

// Stats returns graph statistics.
func (ix *Index) Stats() (Stats, error) {
	var st Stats
	err := ix.withLock(func() error {
		gs := ix.engine.Stats()
		st = Stats{
			Points:         gs.Points,
			MaxLevel:       gs.MaxLevel,
			EntryPoint:     gs.EntryPoint,
			M:              gs.M,
			MaxLayer:       gs.MaxLayer,
			EfConstruction: gs.EfConstruction,
			SearchingMode:  gs.Searching,
			Mapped:         gs.Borrowed,
		}
		for _, l := range gs.Levels {
			st.Levels = append(st.Levels, LevelStats(l))
		}
		if ix.image != nil {
			st.MappedBytes = ix.image.mapped()
		}
		return nil
	})
	return st, err
}

package hnsw

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/hnswkit/distance"
	"github.com/hupe1980/hnswkit/internal/queue"
	"github.com/hupe1980/hnswkit/internal/vectorstore"
	"github.com/hupe1980/hnswkit/internal/visited"
)

const (
	// nodeSegmentBits sizes the fixed node segments. Segments never move, so
	// growing the graph does not copy node pointers readers may hold.
	nodeSegmentBits = 12
	nodeSegmentSize = 1 << nodeSegmentBits
	nodeSegmentMask = nodeSegmentSize - 1

	lockShards = 64

	minimumM = 2

	// MaxLayerLimit is the largest supported number of layers.
	MaxLayerLimit = 16
)

var (
	// ErrReleased is returned by operations on a released graph.
	ErrReleased = errors.New("hnsw: graph released")
	// ErrCorrupt is returned when a topology block does not describe a valid graph.
	ErrCorrupt = errors.New("hnsw: corrupt topology")
)

// DimensionError is returned when a vector's length differs from the graph dimension.
type DimensionError struct {
	Expected int
	Got      int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("hnsw: dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}

// Options configures a graph.
type Options struct {
	Dimension      int
	M              int
	MaxElements    uint64
	MaxLayer       int
	EfConstruction int
	RandomSeed     *int64
}

// Neighbor is a search hit.
type Neighbor struct {
	ID       uint64
	Distance float32
}

// Point is a stored vector with the id it was inserted under.
type Point struct {
	ID     uint64
	Vector []float32
}

type node struct {
	id    uint64
	level int
	links [][]uint32
}

type nodeSegment [nodeSegmentSize]atomic.Pointer[node]

type scratch struct {
	visited    *visited.Set
	candidates *queue.Queue
	results    *queue.Queue
	found      []queue.Candidate
	eps        []queue.Candidate
	links      []uint32
	selected   []queue.Candidate
	selVecs    [][]float32
}

// Graph is an HNSW graph over the space S.
type Graph[S distance.Space] struct {
	space   S
	dim     int
	m       int
	mmax0   int
	ml      float64
	opts    Options
	vectors *vectorstore.Store

	nodes   atomic.Pointer[[]*nodeSegment]
	nodesMu sync.Mutex
	locks   [lockShards]sync.RWMutex

	// entry packs (level+1)<<32 | id; zero means the graph is empty.
	entry atomic.Uint64
	count atomic.Int64
	rng   atomic.Uint64

	searching atomic.Bool
	frozen    atomic.Pointer[frozenLayer]
	freezeMu  sync.Mutex

	released atomic.Bool
	pool     sync.Pool
}

// New creates an empty graph with heap-backed vector storage.
func New[S distance.Space](opts Options) (*Graph[S], error) {
	opts, err := normalize(opts)
	if err != nil {
		return nil, err
	}
	return newGraph[S](opts, vectorstore.New(opts.Dimension, opts.MaxElements)), nil
}

func normalize(opts Options) (Options, error) {
	if opts.Dimension <= 0 {
		return opts, fmt.Errorf("hnsw: invalid dimension %d", opts.Dimension)
	}
	if opts.M < minimumM {
		opts.M = minimumM
	}
	opts.MaxLayer = min(max(opts.MaxLayer, 1), MaxLayerLimit)
	if opts.EfConstruction < 1 {
		opts.EfConstruction = 1
	}
	return opts, nil
}

func newGraph[S distance.Space](opts Options, vectors *vectorstore.Store) *Graph[S] {
	g := &Graph[S]{
		dim:     opts.Dimension,
		m:       opts.M,
		mmax0:   2 * opts.M,
		ml:      1 / math.Log(float64(opts.M)),
		opts:    opts,
		vectors: vectors,
	}

	var seed uint64
	if opts.RandomSeed != nil {
		seed = uint64(*opts.RandomSeed)
	} else {
		seed = uint64(time.Now().UnixNano())
	}
	g.rng.Store(seed)

	nseg := (opts.MaxElements + nodeSegmentSize - 1) / nodeSegmentSize
	segs := make([]*nodeSegment, 0, min(nseg, 1<<12))
	g.nodes.Store(&segs)

	g.pool.New = func() any {
		return &scratch{
			visited:    visited.New(int(g.count.Load()) + 1),
			candidates: queue.NewMin(opts.EfConstruction),
			results:    queue.NewMax(opts.EfConstruction),
		}
	}
	return g
}

// Dimension returns the vector dimension.
func (g *Graph[S]) Dimension() int { return g.dim }

// Metric returns the metric of the graph's space.
func (g *Graph[S]) Metric() distance.Metric { return g.space.Metric() }

// Options returns the options the graph was built with.
func (g *Graph[S]) Options() Options { return g.opts }

// Len returns the number of points.
func (g *Graph[S]) Len() int { return int(g.count.Load()) }

// entryPoint returns the entry point and the top level of the graph.
func (g *Graph[S]) entryPoint() (id uint32, level int, ok bool) {
	return unpackEntry(g.entry.Load())
}

// Borrowed reports whether point vectors alias an external buffer.
func (g *Graph[S]) Borrowed() bool { return g.vectors.IsBorrowed() }

func packEntry(id uint32, level int) uint64 {
	return uint64(level+1)<<32 | uint64(id)
}

func unpackEntry(v uint64) (uint32, int, bool) {
	if v == 0 {
		return 0, 0, false
	}
	return uint32(v), int(v>>32) - 1, true
}

func (g *Graph[S]) lockFor(id uint32) *sync.RWMutex {
	return &g.locks[id&(lockShards-1)]
}

func (g *Graph[S]) node(id uint32) *node {
	segs := g.nodes.Load()
	idx := int(id >> nodeSegmentBits)
	if segs == nil || idx >= len(*segs) {
		return nil
	}
	return (*segs)[idx][id&nodeSegmentMask].Load()
}

func (g *Graph[S]) setNode(id uint32, n *node) {
	idx := int(id >> nodeSegmentBits)

	segs := g.nodes.Load()
	if idx >= len(*segs) {
		g.nodesMu.Lock()
		segs = g.nodes.Load()
		if idx >= len(*segs) {
			grown := *segs
			for len(grown) <= idx {
				grown = append(grown, new(nodeSegment))
			}
			g.nodes.Store(&grown)
			segs = &grown
		}
		g.nodesMu.Unlock()
	}

	(*segs)[idx][id&nodeSegmentMask].Store(n)
}

func (g *Graph[S]) maxLinks(level int) int {
	if level == 0 {
		return g.mmax0
	}
	return g.m
}

func (g *Graph[S]) distanceTo(q []float32, id uint32) float32 {
	return g.space.Distance(q, g.vectors.MustGet(id))
}

func (g *Graph[S]) getScratch() *scratch {
	s := g.pool.Get().(*scratch)
	s.visited.EnsureCapacity(int(g.count.Load()) + 1)
	return s
}

func (g *Graph[S]) putScratch(s *scratch) {
	s.visited.Reset()
	g.pool.Put(s)
}

// Release drops the graph's nodes and vectors. After Release the graph holds no
// references into a borrowed vector buffer, which may then be unmapped.
func (g *Graph[S]) Release() {
	if g.released.Swap(true) {
		return
	}
	g.frozen.Store(nil)
	g.entry.Store(0)
	g.count.Store(0)

	g.nodesMu.Lock()
	empty := []*nodeSegment{}
	g.nodes.Store(&empty)
	g.nodesMu.Unlock()

	g.vectors.Release()
}

package hnsw

import (
	"errors"
	"math"
	"runtime"
	"slices"
	"sync/atomic"

	"github.com/hupe1980/hnswkit/internal/queue"
	"golang.org/x/sync/errgroup"
)

// Insert adds vec under id. Ids are not deduplicated; inserting an id twice
// stores two points.
func (g *Graph[S]) Insert(vec []float32, id uint64) error {
	if len(vec) != g.dim {
		return &DimensionError{Expected: g.dim, Got: len(vec)}
	}
	if g.released.Load() {
		return ErrReleased
	}

	g.thaw()

	internal, err := g.vectors.Append(vec)
	if err != nil {
		return err
	}

	level := g.randomLevel()
	n := &node{id: id, level: level, links: make([][]uint32, level+1)}
	g.setNode(internal, n)

	g.link(internal, n, g.vectors.MustGet(internal))
	g.count.Add(1)

	return nil
}

// ParallelInsert inserts vecs[i] under ids[i] using up to workers goroutines.
// The first error stops the remaining work; points inserted before it stay.
func (g *Graph[S]) ParallelInsert(vecs [][]float32, ids []uint64, workers int) error {
	if len(vecs) != len(ids) {
		return errors.New("hnsw: vectors and ids differ in length")
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	workers = min(workers, len(vecs))
	if workers <= 1 {
		for i := range vecs {
			if err := g.Insert(vecs[i], ids[i]); err != nil {
				return err
			}
		}
		return nil
	}

	var next atomic.Int64
	var eg errgroup.Group
	for range workers {
		eg.Go(func() error {
			for {
				i := int(next.Add(1) - 1)
				if i >= len(vecs) {
					return nil
				}
				if err := g.Insert(vecs[i], ids[i]); err != nil {
					return err
				}
			}
		})
	}
	return eg.Wait()
}

// randomLevel draws a level from the exponential distribution with scale 1/ln(M),
// capped at MaxLayer-1. The generator is a lock-free xorshift64*.
func (g *Graph[S]) randomLevel() int {
	seed := g.rng.Add(0x9E3779B97F4A7C15)
	seed ^= seed >> 12
	seed ^= seed << 25
	seed ^= seed >> 27
	r := float64(seed*0x2545F4914F6CDD1D>>11) / float64(1<<53)
	if r == 0 {
		r = math.SmallestNonzeroFloat64
	}
	level := int(math.Floor(-math.Log(r) * g.ml))
	return min(level, g.opts.MaxLayer-1)
}

func (g *Graph[S]) link(id uint32, n *node, vec []float32) {
	packed := g.entry.Load()
	if packed == 0 {
		if g.entry.CompareAndSwap(0, packEntry(id, n.level)) {
			return
		}
		packed = g.entry.Load()
	}
	epID, maxLevel, _ := unpackEntry(packed)

	s := g.getScratch()
	defer g.putScratch(s)

	cur := queue.Candidate{ID: epID, Distance: g.distanceTo(vec, epID)}
	for level := maxLevel; level > n.level; level-- {
		cur = g.greedy(s, vec, cur, level)
	}

	s.eps = append(s.eps[:0], cur)
	for level := min(n.level, maxLevel); level >= 0; level-- {
		g.searchLayer(s, vec, s.eps, g.opts.EfConstruction, level)
		s.found = s.results.DrainAscending(s.found[:0])
		s.eps = append(s.eps[:0], s.found...)

		selected := g.selectNeighbors(s, s.found, g.maxLinks(level))
		for _, c := range selected {
			if c.ID != id {
				g.addLink(id, c.ID, level)
			}
		}
		for _, c := range selected {
			if c.ID != id {
				g.addLink(c.ID, id, level)
			}
		}
	}

	g.promote(id, n.level)
}

// promote makes id the entry point if its level is above the current top.
func (g *Graph[S]) promote(id uint32, level int) {
	for {
		old := g.entry.Load()
		_, top, _ := unpackEntry(old)
		if level <= top {
			return
		}
		if g.entry.CompareAndSwap(old, packEntry(id, level)) {
			return
		}
	}
}

// addLink adds a link src -> target on level, pruning src's list with the
// neighbor heuristic when it overflows.
func (g *Graph[S]) addLink(src, target uint32, level int) {
	mu := g.lockFor(src)
	mu.Lock()
	defer mu.Unlock()

	n := g.node(src)
	if n == nil || level > n.level {
		return
	}

	links := n.links[level]
	if slices.Contains(links, target) {
		return
	}
	limit := g.maxLinks(level)
	if len(links) < limit {
		n.links[level] = append(links, target)
		return
	}

	srcVec := g.vectors.MustGet(src)
	cands := make([]queue.Candidate, 0, len(links)+1)
	for _, l := range links {
		cands = append(cands, queue.Candidate{ID: l, Distance: g.distanceTo(srcVec, l)})
	}
	cands = append(cands, queue.Candidate{ID: target, Distance: g.distanceTo(srcVec, target)})
	slices.SortFunc(cands, func(a, b queue.Candidate) int {
		switch {
		case a.Distance < b.Distance:
			return -1
		case a.Distance > b.Distance:
			return 1
		}
		return 0
	})

	var ps scratch
	selected := g.selectNeighbors(&ps, cands, limit)

	pruned := links[:0]
	for _, c := range selected {
		pruned = append(pruned, c.ID)
	}
	n.links[level] = pruned
}

// selectNeighbors picks up to m candidates from cands (sorted nearest-first)
// with the relative neighborhood heuristic: a candidate is kept only if it is
// closer to the base than to every candidate kept so far. Pruned candidates
// fill any remaining slots.
func (g *Graph[S]) selectNeighbors(s *scratch, cands []queue.Candidate, m int) []queue.Candidate {
	if len(cands) <= m {
		return cands
	}

	result := s.selected[:0]
	vecs := s.selVecs[:0]

	for _, c := range cands {
		if len(result) >= m {
			break
		}
		cv := g.vectors.MustGet(c.ID)
		good := true
		for _, rv := range vecs {
			if g.space.Distance(cv, rv) < c.Distance {
				good = false
				break
			}
		}
		if good {
			result = append(result, c)
			vecs = append(vecs, cv)
		}
	}

	for _, c := range cands {
		if len(result) >= m {
			break
		}
		if !slices.ContainsFunc(result, func(r queue.Candidate) bool { return r.ID == c.ID }) {
			result = append(result, c)
		}
	}

	s.selected = result
	clear(vecs)
	s.selVecs = vecs[:0]
	return result
}

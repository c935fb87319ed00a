package hnsw

import (
	"github.com/hupe1980/hnswkit/internal/queue"
)

// Search returns up to k nearest neighbors of q, nearest first.
// The candidate list holds max(ef, k) entries; an empty graph yields nil.
func (g *Graph[S]) Search(q []float32, k, ef int) ([]Neighbor, error) {
	if len(q) != g.dim {
		return nil, &DimensionError{Expected: g.dim, Got: len(q)}
	}
	if g.released.Load() {
		return nil, ErrReleased
	}
	if k <= 0 {
		return nil, nil
	}
	epID, maxLevel, ok := unpackEntry(g.entry.Load())
	if !ok {
		return nil, nil
	}

	if g.searching.Load() && g.frozen.Load() == nil {
		g.freeze()
	}

	s := g.getScratch()
	defer g.putScratch(s)

	cur := queue.Candidate{ID: epID, Distance: g.distanceTo(q, epID)}
	for level := maxLevel; level > 0; level-- {
		cur = g.greedy(s, q, cur, level)
	}

	s.eps = append(s.eps[:0], cur)
	g.searchLayer(s, q, s.eps, max(ef, k), 0)
	s.found = s.results.DrainAscending(s.found[:0])

	n := min(k, len(s.found))
	out := make([]Neighbor, n)
	for i, c := range s.found[:n] {
		out[i] = Neighbor{ID: g.node(c.ID).id, Distance: c.Distance}
	}
	return out, nil
}

// neighbors copies the links of id on level into buf. Layer 0 is served from the
// frozen table without locking when one is present.
func (g *Graph[S]) neighbors(id uint32, level int, buf []uint32) []uint32 {
	if level == 0 {
		if f := g.frozen.Load(); f != nil && int(id) < f.len() {
			return append(buf[:0], f.links(id)...)
		}
	}

	n := g.node(id)
	if n == nil || level > n.level {
		return buf[:0]
	}

	mu := g.lockFor(id)
	mu.RLock()
	buf = append(buf[:0], n.links[level]...)
	mu.RUnlock()
	return buf
}

// greedy walks level from cur towards q until no neighbor is closer.
func (g *Graph[S]) greedy(s *scratch, q []float32, cur queue.Candidate, level int) queue.Candidate {
	for changed := true; changed; {
		changed = false
		s.links = g.neighbors(cur.ID, level, s.links)
		for _, next := range s.links {
			if d := g.distanceTo(q, next); d < cur.Distance {
				cur = queue.Candidate{ID: next, Distance: d}
				changed = true
			}
		}
	}
	return cur
}

// searchLayer runs a best-first search on level starting from eps and leaves the
// ef closest nodes it finds in s.results.
func (g *Graph[S]) searchLayer(s *scratch, q []float32, eps []queue.Candidate, ef, level int) {
	s.visited.Reset()
	s.candidates.Reset()
	s.results.Reset()

	for _, ep := range eps {
		if !s.visited.Visit(ep.ID) {
			continue
		}
		s.candidates.Push(ep)
		s.results.Push(ep)
		if s.results.Len() > ef {
			s.results.Pop()
		}
	}

	for s.candidates.Len() > 0 {
		c, _ := s.candidates.Pop()
		if worst, _ := s.results.Top(); c.Distance > worst.Distance && s.results.Len() >= ef {
			break
		}

		s.links = g.neighbors(c.ID, level, s.links)
		for _, next := range s.links {
			if !s.visited.Visit(next) {
				continue
			}

			d := g.distanceTo(q, next)
			if s.results.Len() >= ef {
				if worst, _ := s.results.Top(); d >= worst.Distance {
					continue
				}
			}

			item := queue.Candidate{ID: next, Distance: d}
			s.candidates.Push(item)
			s.results.Push(item)
			if s.results.Len() > ef {
				s.results.Pop()
			}
		}
	}
}

package hnsw

import "iter"

// Points yields every stored point, layer by layer from the top down. Each point
// appears once; ids repeat only if they were inserted more than once. Vectors
// alias graph storage and must not be modified.
func (g *Graph[S]) Points() iter.Seq[Point] {
	return func(yield func(Point) bool) {
		_, top, ok := unpackEntry(g.entry.Load())
		if !ok {
			return
		}
		n := uint32(g.Len())
		for level := top; level >= 0; level-- {
			for id := uint32(0); id < n; id++ {
				nd := g.node(id)
				if nd == nil || nd.level != level {
					continue
				}
				if !yield(Point{ID: nd.id, Vector: g.vectors.MustGet(id)}) {
					return
				}
			}
		}
	}
}

// Point returns the point stored under the internal id.
func (g *Graph[S]) Point(id uint32) (Point, bool) {
	nd := g.node(id)
	if nd == nil {
		return Point{}, false
	}
	v, ok := g.vectors.Get(id)
	if !ok {
		return Point{}, false
	}
	return Point{ID: nd.id, Vector: v}, true
}

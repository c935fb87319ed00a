package hnsw

// frozenLayer is an immutable CSR copy of layer-0 adjacency.
type frozenLayer struct {
	offsets []int
	targets []uint32
}

func (f *frozenLayer) len() int { return len(f.offsets) - 1 }

func (f *frozenLayer) links(id uint32) []uint32 {
	return f.targets[f.offsets[id]:f.offsets[id+1]]
}

// SetSearchingMode toggles the search-optimized layout. While enabled, layer-0
// links are read from a contiguous table instead of per-node lists. Inserts drop
// the table and the next search rebuilds it. Results are the same in both modes.
func (g *Graph[S]) SetSearchingMode(enabled bool) {
	g.searching.Store(enabled)
	if enabled {
		g.freeze()
		return
	}
	g.frozen.Store(nil)
}

func (g *Graph[S]) searchingMode() bool { return g.searching.Load() }

// isFrozen reports whether the layer-0 table is currently built.
func (g *Graph[S]) isFrozen() bool { return g.frozen.Load() != nil }

func (g *Graph[S]) freeze() {
	g.freezeMu.Lock()
	defer g.freezeMu.Unlock()

	if g.frozen.Load() != nil || g.released.Load() {
		return
	}

	n := g.Len()
	f := &frozenLayer{
		offsets: make([]int, n+1),
		targets: make([]uint32, 0, n*g.m),
	}
	for i := 0; i < n; i++ {
		id := uint32(i)
		if nd := g.node(id); nd != nil {
			mu := g.lockFor(id)
			mu.RLock()
			f.targets = append(f.targets, nd.links[0]...)
			mu.RUnlock()
		}
		f.offsets[i+1] = len(f.targets)
	}
	g.frozen.Store(f)
}

func (g *Graph[S]) thaw() {
	if g.frozen.Load() != nil {
		g.frozen.Store(nil)
	}
}

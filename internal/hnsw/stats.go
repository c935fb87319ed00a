package hnsw

// LevelStats describes one layer of the graph.
type LevelStats struct {
	Level int
	Nodes int
	Links int
}

// Stats is a point-in-time summary of a graph.
type Stats struct {
	Points         int
	MaxLevel       int
	EntryPoint     uint32
	M              int
	MaxLayer       int
	EfConstruction int
	Levels         []LevelStats
	Searching      bool
	Frozen         bool
	Borrowed       bool
}

// Stats walks the graph and reports per-level node and link counts.
// A node counts towards every level up to its own.
func (g *Graph[S]) Stats() Stats {
	st := Stats{
		M:              g.opts.M,
		MaxLayer:       g.opts.MaxLayer,
		EfConstruction: g.opts.EfConstruction,
		Searching:      g.searchingMode(),
		Frozen:         g.isFrozen(),
		Borrowed:       g.Borrowed(),
	}

	ep, top, ok := g.entryPoint()
	if !ok {
		st.MaxLevel = -1
		return st
	}
	st.EntryPoint = ep
	st.MaxLevel = top
	st.Points = g.Len()
	st.Levels = make([]LevelStats, top+1)
	for i := range st.Levels {
		st.Levels[i].Level = i
	}

	for i := 0; i < st.Points; i++ {
		id := uint32(i)
		nd := g.node(id)
		if nd == nil {
			continue
		}
		mu := g.lockFor(id)
		mu.RLock()
		for level := 0; level <= nd.level && level <= top; level++ {
			st.Levels[level].Nodes++
			st.Levels[level].Links += len(nd.links[level])
		}
		mu.RUnlock()
	}
	return st
}

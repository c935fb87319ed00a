package hnswkit

import (
	"context"
	"fmt"
	"time"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

// Compact builds a new index holding one point per distinct id that is not in
// tombstones. When an id was inserted more than once, the first point the graph
// enumerates wins. The new graph is sized for max(cfg.MaxElements, survivors).
//
// The source index is locked while it is read and is not modified. The result
// is independent of it: its own graph, its own lock and no mapped image.
func (ix *Index) Compact(tombstones []uint64, cfg Config) (*Index, error) {
	start := time.Now()
	out, before, survivors, err := ix.compact(tombstones, cfg)

	removed := 0
	if err == nil {
		removed = before - survivors
	}
	ix.opts.metrics.RecordCompact(removed, survivors, time.Since(start), err)
	ix.logger.LogCompact(context.Background(), len(tombstones), survivors, err)
	return out, err
}

// compact returns the new index, the source point count and the survivor
// count. Both counts are taken under the same lock hold.
func (ix *Index) compact(tombstones []uint64, cfg Config) (*Index, int, int, error) {
	if cfg.Dimension != ix.cfg.Dimension {
		return nil, 0, 0, &DimensionMismatchError{Expected: int(ix.cfg.Dimension), Got: int(cfg.Dimension)}
	}
	if cfg.Distance != ix.cfg.Distance {
		return nil, 0, 0, &DistanceMismatchError{Expected: ix.cfg.Distance, Got: cfg.Distance}
	}
	if err := cfg.Validate(); err != nil {
		return nil, 0, 0, err
	}

	var (
		out       *Index
		before    int
		survivors int
	)
	err := ix.withLock(func() error {
		before = ix.engine.Len()
		if before == 0 {
			var err error
			out, err = newIndex(cfg, ix.opts)
			return err
		}

		dead := roaring64.New()
		for _, id := range tombstones {
			// Ids are addressed as uint; only 32-bit platforms can overflow.
			if uint64(uint(id)) != id {
				return &IOError{Msg: fmt.Sprintf("tombstone id %d exceeds the addressable range", id)}
			}
			dead.Add(id)
		}

		seen := roaring64.New()
		keep := func(id uint64) bool {
			return !dead.Contains(id) && seen.CheckedAdd(id)
		}

		for p := range ix.engine.Points() {
			if keep(p.ID) {
				survivors++
			}
		}

		sized := cfg
		sized.MaxElements = max(cfg.MaxElements, uint64(survivors))
		engine, err := newEngine(sized.Distance, sized.graphOptions(ix.opts.seed))
		if err != nil {
			return err
		}

		seen.Clear()
		for p := range ix.engine.Points() {
			if !keep(p.ID) {
				continue
			}
			if err := engine.Insert(p.Vector, p.ID); err != nil {
				engine.Release()
				return err
			}
		}

		out = wrapEngine(sized, ix.opts, engine, nil)
		return nil
	})
	if err != nil {
		return nil, 0, 0, err
	}
	return out, before, survivors, nil
}

package hnswkit

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/hupe1980/hnswkit/internal/persistence"
)

// loadedImage ties a graph to the mapped image its vectors point into. The
// graph is always released before the mapping is closed.
type loadedImage struct {
	engine graphEngine
	image  *persistence.Image
}

func (li *loadedImage) mapped() int { return li.image.Mapped() }

func (li *loadedImage) close() error {
	li.engine.Release()
	return li.image.Close()
}

func validateBase(base string) error {
	if base == "" || strings.ContainsAny(base, `/\`) || base == "." || base == ".." {
		return &IOError{Msg: fmt.Sprintf("invalid image basename %q", base)}
	}
	return nil
}

// Save writes the index as the image base in dir: <base>.hnsw.graph and
// <base>.hnsw.data. Both files are written under temporary names and renamed
// into place only after both were synced. The index is locked for the whole
// call.
func (ix *Index) Save(dir, base string) error {
	start := time.Now()
	var stats persistence.WriteStats
	err := ix.save(dir, base, &stats)
	ix.opts.metrics.RecordSave(stats.GraphBytes+stats.DataBytes, time.Since(start), err)
	ix.logger.LogSave(context.Background(), dir, base, stats.Points, err)
	return err
}

func (ix *Index) save(dir, base string, stats *persistence.WriteStats) error {
	if err := validateBase(base); err != nil {
		return err
	}
	return ix.withLock(func() error {
		if ix.engine.Len() == 0 {
			return ErrEmptyIndex
		}
		s, err := persistence.WriteImage(dir, base, ix.engine, persistence.WriteOptions{
			FS:          ix.opts.fs,
			Compression: ix.opts.compression,
			IOLimit:     ix.opts.ioLimit,
		})
		if err != nil {
			return &DumpError{Cause: err}
		}
		*stats = s
		return nil
	})
}

// Load opens the image base in dir. The data file is memory-mapped and the
// loaded graph reads its vectors from the mapping; Close releases both.
//
// The image's metric and dimension must match cfg. Graph parameters (M, max
// layer, ef construction) come from the image; cfg.MaxElements can raise the
// capacity hint.
func Load(dir, base string, cfg Config, optFns ...Option) (*Index, error) {
	o := applyOptions(optFns)
	start := time.Now()
	ix, err := load(dir, base, cfg, o)

	points := 0
	if ix != nil {
		points = ix.engine.Len()
	}
	o.metrics.RecordLoad(points, time.Since(start), err)
	logger := o.logger
	if ix != nil {
		logger = ix.logger
	}
	logger.LogLoad(context.Background(), dir, base, points, err)
	return ix, err
}

func load(dir, base string, cfg Config, o options) (*Index, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := validateBase(base); err != nil {
		return nil, err
	}

	img, err := persistence.Open(filepath.Clean(dir), base, persistence.OpenOptions{
		VerifyChecksums: o.verifyChecksums,
		Capacity:        cfg.MaxElements,
	})
	if err != nil {
		return nil, &ReloadError{Cause: err}
	}

	h := img.Header
	if h.Options.Dimension != int(cfg.Dimension) {
		_ = img.Close()
		return nil, &DimensionMismatchError{Expected: int(cfg.Dimension), Got: h.Options.Dimension}
	}
	if h.Metric != cfg.Distance {
		_ = img.Close()
		return nil, &DistanceMismatchError{Expected: cfg.Distance, Got: h.Metric}
	}

	img.Graph.Options.MaxElements = max(h.Options.MaxElements, cfg.MaxElements)
	img.Graph.Options.RandomSeed = o.seed

	engine, err := loadEngine(img.Graph)
	if err != nil {
		_ = img.Close()
		return nil, &ReloadError{Cause: err}
	}

	resolved := cfg
	resolved.MaxNbConnection = uint32(h.Options.M)
	resolved.MaxLayer = uint32(h.Options.MaxLayer)
	resolved.EfConstruction = uint32(h.Options.EfConstruction)
	resolved.MaxElements = img.Graph.Options.MaxElements

	return wrapEngine(resolved, o, engine, &loadedImage{engine: engine, image: img}), nil
}

// Close releases the graph and, for loaded indexes, unmaps the image
// afterwards. Close is idempotent and works on a poisoned index. Every other
// operation fails with ErrClosed once Close was called.
func (ix *Index) Close() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.closed {
		return nil
	}
	ix.closed = true

	if ix.image != nil {
		err := ix.image.close()
		ix.image = nil
		return err
	}
	ix.engine.Release()
	return nil
}

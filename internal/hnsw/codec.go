package hnsw

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/hupe1980/hnswkit/distance"
	"github.com/hupe1980/hnswkit/internal/vectorstore"
)

// Topology encoding, per node in internal id order:
//
//	level     u8
//	per layer 0..level:
//	  count   u32
//	  links   count x u32
//
// Origin ids and vectors are stored separately by the caller.

type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}

// EncodeTopology writes the link structure of every node to w.
// The graph must not be mutated concurrently.
func (g *Graph[S]) EncodeTopology(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	bw := bufio.NewWriterSize(cw, 64*1024)

	var buf [4]byte
	n := g.Len()
	for i := 0; i < n; i++ {
		nd := g.node(uint32(i))
		if nd == nil {
			return cw.n, fmt.Errorf("hnsw: missing node %d", i)
		}
		if err := bw.WriteByte(byte(nd.level)); err != nil {
			return cw.n, err
		}
		for level := 0; level <= nd.level; level++ {
			links := nd.links[level]
			binary.LittleEndian.PutUint32(buf[:], uint32(len(links)))
			if _, err := bw.Write(buf[:]); err != nil {
				return cw.n, err
			}
			for _, l := range links {
				binary.LittleEndian.PutUint32(buf[:], l)
				if _, err := bw.Write(buf[:]); err != nil {
					return cw.n, err
				}
			}
		}
	}

	if err := bw.Flush(); err != nil {
		return cw.n, err
	}
	return cw.n, nil
}

// Snapshot is the graph-level state a persisted image records besides the
// topology, origin ids and vectors.
type Snapshot struct {
	Options    Options
	Metric     distance.Metric
	EntryPoint uint32
	MaxLevel   int
	Count      int
}

// Snapshot captures the graph header. The graph must not be mutated concurrently.
func (g *Graph[S]) Snapshot() Snapshot {
	ep, level, ok := unpackEntry(g.entry.Load())
	if !ok {
		level = -1
	}
	return Snapshot{
		Options:    g.opts,
		Metric:     g.space.Metric(),
		EntryPoint: ep,
		MaxLevel:   level,
		Count:      g.Len(),
	}
}

// Image describes a persisted graph to restore.
type Image struct {
	Options    Options
	Metric     distance.Metric
	EntryPoint uint32
	MaxLevel   int
	// IDs holds the origin id of every node in internal id order.
	IDs []uint64
	// Vectors holds the node vectors in internal id order. It may borrow its
	// first region from a memory-mapped file.
	Vectors *vectorstore.Store
	// Topology is the output of EncodeTopology.
	Topology io.Reader
}

// FromImage rebuilds a graph from img. Vectors are used in place.
func FromImage[S distance.Space](img Image) (*Graph[S], error) {
	opts, err := normalize(img.Options)
	if err != nil {
		return nil, err
	}
	var space S
	if space.Metric() != img.Metric {
		return nil, fmt.Errorf("%w: metric %v, graph space %v", ErrCorrupt, img.Metric, space.Metric())
	}
	if img.Vectors == nil || img.Vectors.Dimension() != opts.Dimension {
		return nil, fmt.Errorf("%w: vector dimension does not match", ErrCorrupt)
	}

	n := len(img.IDs)
	if img.Vectors.Len() != n {
		return nil, fmt.Errorf("%w: %d ids for %d vectors", ErrCorrupt, n, img.Vectors.Len())
	}

	g := newGraph[S](opts, img.Vectors)
	if n == 0 {
		return g, nil
	}
	if int(img.EntryPoint) >= n || img.MaxLevel < 0 || img.MaxLevel >= opts.MaxLayer {
		return nil, fmt.Errorf("%w: entry point %d at level %d", ErrCorrupt, img.EntryPoint, img.MaxLevel)
	}

	br := bufio.NewReaderSize(img.Topology, 64*1024)
	var buf [4]byte
	readU32 := func() (uint32, error) {
		if _, err := io.ReadFull(br, buf[:]); err != nil {
			return 0, err
		}
		return binary.LittleEndian.Uint32(buf[:]), nil
	}

	for i := 0; i < n; i++ {
		lb, err := br.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("%w: node %d: %v", ErrCorrupt, i, err)
		}
		level := int(lb)
		if level > img.MaxLevel {
			return nil, fmt.Errorf("%w: node %d level %d above top %d", ErrCorrupt, i, level, img.MaxLevel)
		}

		nd := &node{id: img.IDs[i], level: level, links: make([][]uint32, level+1)}
		for l := 0; l <= level; l++ {
			count, err := readU32()
			if err != nil {
				return nil, fmt.Errorf("%w: node %d: %v", ErrCorrupt, i, err)
			}
			if int(count) > 2*g.maxLinks(l) {
				return nil, fmt.Errorf("%w: node %d has %d links on level %d", ErrCorrupt, i, count, l)
			}
			links := make([]uint32, count)
			for j := range links {
				if links[j], err = readU32(); err != nil {
					return nil, fmt.Errorf("%w: node %d: %v", ErrCorrupt, i, err)
				}
				if int(links[j]) >= n {
					return nil, fmt.Errorf("%w: node %d links to %d", ErrCorrupt, i, links[j])
				}
			}
			nd.links[l] = links
		}
		g.setNode(uint32(i), nd)
	}

	if _, err := br.ReadByte(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing bytes after %d nodes", ErrCorrupt, n)
	}
	if g.node(img.EntryPoint).level != img.MaxLevel {
		return nil, fmt.Errorf("%w: entry point %d is not on level %d", ErrCorrupt, img.EntryPoint, img.MaxLevel)
	}

	g.count.Store(int64(n))
	g.entry.Store(packEntry(img.EntryPoint, img.MaxLevel))
	return g, nil
}

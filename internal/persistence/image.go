package persistence

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/hupe1980/hnswkit/distance"
	"github.com/hupe1980/hnswkit/internal/fs"
	"github.com/hupe1980/hnswkit/internal/hnsw"
	"github.com/hupe1980/hnswkit/internal/mmap"
	"github.com/hupe1980/hnswkit/internal/vectorstore"
)

// Source is a graph that can be written as an image. It must not be mutated
// while WriteImage runs.
type Source interface {
	Snapshot() hnsw.Snapshot
	Point(id uint32) (hnsw.Point, bool)
	EncodeTopology(w io.Writer) (int64, error)
}

// WriteOptions configures WriteImage.
type WriteOptions struct {
	// FS defaults to fs.Default.
	FS          fs.FileSystem
	Compression Compression
	// IOLimit caps write throughput in bytes per second; zero is unlimited.
	IOLimit int64
}

// WriteStats reports what WriteImage wrote.
type WriteStats struct {
	Points      int
	GraphBytes  int64
	DataBytes   int64
	Compression Compression
}

// WriteImage atomically writes src as the image base in dir.
func WriteImage(dir, base string, src Source, opts WriteOptions) (WriteStats, error) {
	if err := checkPlatform(); err != nil {
		return WriteStats{}, err
	}
	if !opts.Compression.Valid() {
		return WriteStats{}, fmt.Errorf("persistence: unknown compression %d", uint8(opts.Compression))
	}

	snap := src.Snapshot()

	var topo bytes.Buffer
	if _, err := src.EncodeTopology(&topo); err != nil {
		return WriteStats{}, fmt.Errorf("persistence: encode topology: %w", err)
	}
	stored, codec, err := compress(opts.Compression, topo.Bytes())
	if err != nil {
		return WriteStats{}, fmt.Errorf("persistence: compress topology: %w", err)
	}

	gh := graphHeader{
		Magic:          graphMagic,
		Version:        FormatVersion,
		Compression:    uint8(codec),
		Metric:         uint8(snap.Metric),
		Dimension:      uint32(snap.Options.Dimension),
		M:              uint32(snap.Options.M),
		MaxLayer:       uint32(snap.Options.MaxLayer),
		EfConstruction: uint32(snap.Options.EfConstruction),
		MaxElements:    snap.Options.MaxElements,
		Count:          uint64(snap.Count),
		EntryPoint:     snap.EntryPoint,
		MaxLevel:       int32(snap.MaxLevel),
		RawSize:        uint64(topo.Len()),
		StoredSize:     uint64(len(stored)),
		Checksum:       CalculateChecksum(stored),
	}

	// The data file is written first; its checksum ties the graph file to it.
	files := []FileWriter{
		{
			Name: base + DataSuffix,
			Write: func(w io.Writer) error {
				sum, err := writeData(NewThrottledWriter(w, opts.IOLimit), src, snap)
				gh.DataChecksum = sum
				return err
			},
		},
		{
			Name: base + GraphSuffix,
			Write: func(w io.Writer) error {
				w = NewThrottledWriter(w, opts.IOLimit)
				if err := binary.Write(w, binary.LittleEndian, &gh); err != nil {
					return err
				}
				_, err := w.Write(stored)
				return err
			},
		},
	}

	sizes, err := AtomicSaveToDir(opts.FS, dir, files)
	if err != nil {
		return WriteStats{}, err
	}
	return WriteStats{
		Points:      snap.Count,
		DataBytes:   sizes[0],
		GraphBytes:  sizes[1],
		Compression: codec,
	}, nil
}

func writeData(w io.Writer, src Source, snap hnsw.Snapshot) (uint32, error) {
	dim := snap.Options.Dimension
	n := snap.Count

	dh := dataHeader{
		Magic:         dataMagic,
		Version:       FormatVersion,
		Dimension:     uint32(dim),
		Count:         uint64(n),
		IDsOffset:     dataHeaderSize,
		VectorsOffset: dataHeaderSize + 8*uint64(n),
	}
	if err := binary.Write(w, binary.LittleEndian, &dh); err != nil {
		return 0, err
	}

	cw := NewChecksumWriter(w)

	var buf [8]byte
	for i := 0; i < n; i++ {
		p, ok := src.Point(uint32(i))
		if !ok {
			return 0, fmt.Errorf("persistence: missing point %d", i)
		}
		binary.LittleEndian.PutUint64(buf[:], p.ID)
		if _, err := cw.Write(buf[:]); err != nil {
			return 0, err
		}
	}
	for i := 0; i < n; i++ {
		p, ok := src.Point(uint32(i))
		if !ok {
			return 0, fmt.Errorf("persistence: missing point %d", i)
		}
		if len(p.Vector) != dim {
			return 0, fmt.Errorf("persistence: point %d has dimension %d", i, len(p.Vector))
		}
		if _, err := cw.Write(float32Bytes(p.Vector)); err != nil {
			return 0, err
		}
	}

	sum := cw.Sum()
	binary.LittleEndian.PutUint32(buf[:4], sum)
	binary.LittleEndian.PutUint32(buf[4:], trailerMagic)
	_, err := w.Write(buf[:])
	return sum, err
}

// Header is the decoded graph header of an image.
type Header struct {
	Metric      distance.Metric
	Compression Compression
	Options     hnsw.Options
	Count       int
	EntryPoint  uint32
	MaxLevel    int

	// DataChecksum is the trailer checksum of the data file written with
	// this graph file.
	DataChecksum uint32
}

// OpenOptions configures Open.
type OpenOptions struct {
	// VerifyChecksums checks the CRC32 of the data region. The topology
	// checksum is always verified.
	VerifyChecksums bool
	// Capacity raises the vector capacity hint of the loaded store.
	Capacity uint64
}

// Image is an opened image. Graph.Vectors borrows from a read-only mapping of
// the data file, which stays valid until Close.
type Image struct {
	Header  Header
	Graph   hnsw.Image
	mapping *mmap.Mapping
}

// Mapped reports the size of the mapped data file.
func (img *Image) Mapped() int {
	if img.mapping == nil {
		return 0
	}
	return img.mapping.Size()
}

// Close unmaps the data file. Every graph built from the image must be
// released first.
func (img *Image) Close() error {
	if img.mapping == nil {
		return nil
	}
	return img.mapping.Close()
}

// Open reads the graph file of image base in dir and maps its data file.
func Open(dir, base string, opts OpenOptions) (*Image, error) {
	if err := checkPlatform(); err != nil {
		return nil, err
	}

	header, topology, err := readGraph(GraphPath(dir, base))
	if err != nil {
		return nil, err
	}

	path := DataPath(dir, base)
	m, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}

	img, err := openData(m, path, header, topology, opts)
	if err != nil {
		_ = m.Close()
		return nil, err
	}
	return img, nil
}

func readGraph(path string) (Header, []byte, error) {
	m, err := mmap.Open(path)
	if err != nil {
		return Header{}, nil, err
	}
	defer m.Close()

	data := m.Bytes()
	if len(data) < graphHeaderSize {
		return Header{}, nil, fmt.Errorf("%w: %s has %d bytes", ErrTruncated, path, len(data))
	}

	var gh graphHeader
	if err := binary.Read(bytes.NewReader(data[:graphHeaderSize]), binary.LittleEndian, &gh); err != nil {
		return Header{}, nil, err
	}
	if gh.Magic != graphMagic {
		return Header{}, nil, fmt.Errorf("%w: %s: got 0x%08x", ErrInvalidMagic, path, gh.Magic)
	}
	if gh.Version != FormatVersion {
		return Header{}, nil, fmt.Errorf("%w: %s: got %d", ErrInvalidVersion, path, gh.Version)
	}

	h := Header{
		Metric:      distance.Metric(gh.Metric),
		Compression: Compression(gh.Compression),
		Options: hnsw.Options{
			Dimension:      int(gh.Dimension),
			M:              int(gh.M),
			MaxElements:    gh.MaxElements,
			MaxLayer:       int(gh.MaxLayer),
			EfConstruction: int(gh.EfConstruction),
		},
		Count:        int(gh.Count),
		EntryPoint:   gh.EntryPoint,
		MaxLevel:     int(gh.MaxLevel),
		DataChecksum: gh.DataChecksum,
	}
	switch {
	case !h.Metric.Valid():
		return Header{}, nil, fmt.Errorf("%w: %s: unknown metric %d", ErrCorrupt, path, gh.Metric)
	case !h.Compression.Valid():
		return Header{}, nil, fmt.Errorf("%w: %s: unknown compression %d", ErrCorrupt, path, gh.Compression)
	case gh.Dimension == 0 || gh.M == 0 || gh.MaxLayer == 0 || gh.MaxLayer > hnsw.MaxLayerLimit:
		return Header{}, nil, fmt.Errorf("%w: %s: invalid graph parameters", ErrCorrupt, path)
	case gh.Count > 1<<32:
		return Header{}, nil, fmt.Errorf("%w: %s: %d points", ErrCorrupt, path, gh.Count)
	}

	body := data[graphHeaderSize:]
	if uint64(len(body)) != gh.StoredSize {
		return Header{}, nil, fmt.Errorf("%w: %s: topology has %d bytes, header says %d", ErrTruncated, path, len(body), gh.StoredSize)
	}
	if err := verifyChecksum(path, body, gh.Checksum); err != nil {
		return Header{}, nil, err
	}
	if gh.RawSize > 1<<40 {
		return Header{}, nil, fmt.Errorf("%w: %s: topology size %d", ErrCorrupt, path, gh.RawSize)
	}

	topology, err := decompress(h.Compression, body, int(gh.RawSize))
	if err != nil {
		return Header{}, nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
	}
	return h, topology, nil
}

func openData(m *mmap.Mapping, path string, h Header, topology []byte, opts OpenOptions) (*Image, error) {
	data := m.Bytes()
	if len(data) < dataHeaderSize+trailerSize {
		return nil, fmt.Errorf("%w: %s has %d bytes", ErrTruncated, path, len(data))
	}

	var dh dataHeader
	if err := binary.Read(bytes.NewReader(data[:dataHeaderSize]), binary.LittleEndian, &dh); err != nil {
		return nil, err
	}
	if dh.Magic != dataMagic {
		return nil, fmt.Errorf("%w: %s: got 0x%08x", ErrInvalidMagic, path, dh.Magic)
	}
	if dh.Version != FormatVersion {
		return nil, fmt.Errorf("%w: %s: got %d", ErrInvalidVersion, path, dh.Version)
	}
	if int(dh.Dimension) != h.Options.Dimension || dh.Count != uint64(h.Count) {
		return nil, fmt.Errorf("%w: %s does not match its graph file", ErrCorrupt, path)
	}

	n := uint64(h.Count)
	dim := uint64(h.Options.Dimension)
	if n > 0 && dim > math.MaxUint32/4 {
		return nil, fmt.Errorf("%w: %s: dimension %d", ErrCorrupt, path, dim)
	}
	idsEnd := dh.IDsOffset + 8*n
	vecEnd := dh.VectorsOffset + 4*n*dim
	if dh.IDsOffset != dataHeaderSize || dh.VectorsOffset != idsEnd {
		return nil, fmt.Errorf("%w: %s: unexpected region offsets", ErrCorrupt, path)
	}
	if vecEnd+trailerSize != uint64(len(data)) {
		return nil, fmt.Errorf("%w: %s: expected %d bytes, got %d", ErrTruncated, path, vecEnd+trailerSize, len(data))
	}

	trailer := data[vecEnd:]
	if binary.LittleEndian.Uint32(trailer[4:]) != trailerMagic {
		return nil, fmt.Errorf("%w: %s: missing trailer", ErrCorrupt, path)
	}
	if binary.LittleEndian.Uint32(trailer) != h.DataChecksum {
		return nil, fmt.Errorf("%w: %s does not match its graph file", ErrCorrupt, path)
	}
	if opts.VerifyChecksums {
		if err := verifyChecksum(path, data[dh.IDsOffset:vecEnd], binary.LittleEndian.Uint32(trailer)); err != nil {
			return nil, err
		}
	}

	ids, err := uint64View(data[dh.IDsOffset:idsEnd])
	if err != nil {
		return nil, err
	}
	vecs, err := float32View(data[dh.VectorsOffset:vecEnd])
	if err != nil {
		return nil, err
	}

	store, err := vectorstore.NewBorrowed(h.Options.Dimension, vecs, max(opts.Capacity, h.Options.MaxElements))
	if err != nil {
		return nil, err
	}

	// Graph traversal touches vectors in no particular order.
	_ = m.Advise(mmap.AccessRandom)

	return &Image{
		Header: h,
		Graph: hnsw.Image{
			Options:    h.Options,
			Metric:     h.Metric,
			EntryPoint: h.EntryPoint,
			MaxLevel:   h.MaxLevel,
			IDs:        ids,
			Vectors:    store,
			Topology:   bytes.NewReader(topology),
		},
		mapping: m,
	}, nil
}

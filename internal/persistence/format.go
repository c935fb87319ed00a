package persistence

import (
	"errors"
	"path/filepath"
)

const (
	graphMagic   uint32 = 0x4b574e48 // "HNWK"
	dataMagic    uint32 = 0x44574e48 // "HNWD"
	trailerMagic uint32 = 0x444e4548 // "HEND"

	// FormatVersion is the current image format version.
	FormatVersion uint16 = 1

	graphHeaderSize = 80
	dataHeaderSize  = 64
	trailerSize     = 8

	// GraphSuffix and DataSuffix name the two files of an image.
	GraphSuffix = ".hnsw.graph"
	DataSuffix  = ".hnsw.data"
)

var (
	ErrInvalidMagic   = errors.New("persistence: invalid magic number")
	ErrInvalidVersion = errors.New("persistence: unsupported format version")
	ErrTruncated      = errors.New("persistence: truncated file")
	ErrCorrupt        = errors.New("persistence: corrupt image")
)

// graphHeader is the fixed 80-byte header of the graph file, little-endian.
type graphHeader struct {
	Magic          uint32
	Version        uint16
	Compression    uint8
	Metric         uint8
	Dimension      uint32
	M              uint32
	MaxLayer       uint32
	EfConstruction uint32
	MaxElements    uint64
	Count          uint64
	EntryPoint     uint32
	MaxLevel       int32
	RawSize        uint64 // decoded topology length
	StoredSize     uint64 // topology length on disk
	Checksum       uint32 // CRC32 of the stored topology
	DataChecksum   uint32 // CRC32 trailer of the matching data file
	Reserved       [8]byte
}

// dataHeader is the fixed 64-byte header of the data file, little-endian.
//
// The data file continues with Count origin ids (u64) at IDsOffset, then
// Count*Dimension float32 values at VectorsOffset, then a trailer holding the
// CRC32 of both regions and trailerMagic.
type dataHeader struct {
	Magic         uint32
	Version       uint16
	Flags         uint16
	Dimension     uint32
	Reserved0     uint32
	Count         uint64
	IDsOffset     uint64
	VectorsOffset uint64
	Reserved      [24]byte
}

// GraphPath returns the path of the graph file of image base in dir.
func GraphPath(dir, base string) string { return filepath.Join(dir, base+GraphSuffix) }

// DataPath returns the path of the data file of image base in dir.
func DataPath(dir, base string) string { return filepath.Join(dir, base+DataSuffix) }

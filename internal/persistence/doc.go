// Package persistence reads and writes HNSW index images.
//
// An image is two files sharing a base name:
//
//	<base>.hnsw.graph  header, then the (optionally compressed) link topology
//	<base>.hnsw.data   header, origin ids, raw vectors, checksum trailer
//
// The data file is laid out so that a memory mapping of it can back the
// loaded graph directly: ids start at an 8-byte aligned offset and vectors
// are little-endian float32 values read in place. Writes go to temporary
// names and are renamed into place only after every file was synced.
package persistence

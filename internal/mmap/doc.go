// Package mmap maps index data files read-only into memory.
//
// A loaded index keeps its point vectors inside the mapping instead of copying them
// to the heap. The mapping therefore has to outlive every slice handed out from
// Bytes, and the owner closes it only after the graph that borrows from it has been
// released.
//
//	m, err := mmap.Open("docs.hnsw.data")
//	if err != nil { ... }
//	defer m.Close()
//	_ = m.Advise(mmap.AccessRandom)
//
// Unix uses mmap(2)/madvise(2) through golang.org/x/sys/unix; Windows uses
// CreateFileMapping/MapViewOfFile and treats Advise as a no-op.
package mmap

// Package hnsw implements Hierarchical Navigable Small World graphs.
//
// Graph is generic over a distance.Space, so each metric gets its own
// instantiation of one implementation. Point vectors live in a vectorstore.Store,
// which lets a graph restored from an image search vectors that stay inside a
// memory-mapped file.
//
// # Concurrency
//
// Insert and Search may run concurrently. Node links are guarded by sharded
// RW locks; the entry point is a packed atomic word. ParallelInsert uses this to
// build with several workers. Release must not overlap any other call.
//
// # Parameters
//
//   - M: max links per node on upper layers; layer 0 allows 2*M
//   - MaxLayer: number of layers, levels are drawn from [0, MaxLayer)
//   - EfConstruction: candidate list size while linking
//
// # Reference
//
// Malkov & Yashunin, "Efficient and robust approximate nearest neighbor search
// using Hierarchical Navigable Small World graphs", IEEE TPAMI 2018.
package hnsw

// Package hnswkit provides a thread-safe HNSW approximate nearest neighbor
// index over float32 vectors.
//
// # Quick Start
//
//	ix, _ := hnswkit.New(hnswkit.DefaultConfig(128, hnswkit.Cosine))
//	defer ix.Close()
//
//	_ = ix.Insert(vec, 42)
//	_ = ix.InsertBatch(vecs, ids)           // parallel workers, one lock hold
//	results, _ := ix.Search(query, 10, 64)  // nearest first
//
// # Persistence
//
// Save writes two files, <base>.hnsw.graph and <base>.hnsw.data, atomically.
// Load maps the data file and builds a graph whose vectors point into the
// mapping, so large indexes load without copying vector payloads:
//
//	_ = ix.Save("./data", "products")
//	loaded, _ := hnswkit.Load("./data", "products", cfg)
//	defer loaded.Close() // releases the graph, then unmaps
//
// Publish and Fetch move images through a blobstore.BlobStore (local disk,
// memory, S3 or MinIO).
//
// # Deletion
//
// The graph does not support removal. Compact rebuilds a new index without
// the given tombstoned ids and with duplicate ids collapsed:
//
//	compacted, _ := ix.Compact([]uint64{7, 9}, ix.Config())
//
// # Concurrency
//
// Every operation holds one mutex per index. InsertBatch is the only operation
// that inserts on several goroutines, inside that single lock hold. A panic in
// the graph engine poisons the index; later calls return ErrLock.
//
// # Distances
//
//   - L2: Euclidean distance
//   - L1: Manhattan distance
//   - Cosine: 1 - cos(a, b), or 1 when either vector is zero
//   - Dot: max(0, 1 - a·b), for normalized vectors
package hnswkit

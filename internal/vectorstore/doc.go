// Package vectorstore holds the point vectors of a graph.
//
// A store has two regions. The borrowed region is a read-only []float32 that aliases
// a memory-mapped data file; it is never copied and never written. The owned region
// grows in fixed-size heap segments as points are appended. Ids are dense: borrowed
// vectors occupy [0, Borrowed()) and appended vectors follow.
//
// Get is lock-free and safe to call concurrently with Append. Returned slices alias
// store memory and must be treated as immutable.
package vectorstore

// Package distance provides the float32 distance spaces an index can be built on.
//
// Kernels run on github.com/viterin/vek/vek32, which dispatches to AVX2 on x86-64
// and falls back to pure Go elsewhere.
//
// # Supported Metrics
//
//   - L2: Euclidean distance
//   - L1: Manhattan distance
//   - Cosine: 1 - cosine similarity
//   - Dot: 1 - inner product, clamped at zero (meant for normalized vectors)
//
// # Usage
//
//	var s distance.Cosine
//	d := s.Distance(a, b)
package distance

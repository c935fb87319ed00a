// Package testutil provides test helpers for hnswkit.
//
// It is intended for use in tests and benchmarks only: seeded vector generation,
// exact nearest neighbors as ground truth, and recall computation.
//
//	rng := testutil.NewRNG(42)
//	vecs := rng.UniformVectors(1000, 16)
//	truth := testutil.BruteForceSearch(distance.L2{}, vecs, nil, query, 10)
//	recall := testutil.ComputeRecall(truth, got)
package testutil

package hnswkit_test

import (
	"fmt"
	"log"

	"github.com/hupe1980/hnswkit"
)

func Example() {
	ix, err := hnswkit.New(hnswkit.DefaultConfig(3, hnswkit.L2), hnswkit.WithRandomSeed(1))
	if err != nil {
		log.Fatal(err)
	}
	defer ix.Close()

	points := [][]float32{{0, 0, 0}, {2, 0, 0}, {10, 10, 10}}
	if err := ix.InsertBatch(points, []uint64{1, 2, 3}); err != nil {
		log.Fatal(err)
	}

	results, err := ix.Search([]float32{0, 0, 0}, 2, 10)
	if err != nil {
		log.Fatal(err)
	}
	for _, r := range results {
		fmt.Printf("id=%d distance=%.1f\n", r.ID, r.Distance)
	}

	// Output:
	// id=1 distance=0.0
	// id=2 distance=2.0
}

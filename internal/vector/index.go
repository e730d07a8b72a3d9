// Package vector provides per-collection vector indexes and similarity search.
package vector

import "context"

// Index defines vector storage and similarity search for one collection.
type Index interface {
	Add(ctx context.Context, ids []int64, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]*Result, error)
	Remove(ctx context.Context, ids []int64) error
	Save(path string) error
	Load(path string) error
	Size() int
	Close() error
}

// Result is a single similarity hit against the index.
type Result struct {
	ID    int64
	Score float64
}

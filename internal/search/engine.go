// Package search provides similarity search over stored collections.
package search

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hyperjump/mieru/internal/config"
	"github.com/hyperjump/mieru/internal/embedding"
	"github.com/hyperjump/mieru/internal/models"
	"github.com/hyperjump/mieru/internal/storage"
	"github.com/hyperjump/mieru/internal/vector"
)

// Engine runs similarity search against per-collection vector indexes.
// Indexes are built lazily from storage and cached until invalidated.
type Engine struct {
	storage  storage.Storage
	embedder embedding.Embedder
	config   *config.SearchConfig

	mu      sync.Mutex
	indexes map[string]vector.Index
}

// NewEngine creates a search engine with the given dependencies.
func NewEngine(store storage.Storage, embedder embedding.Embedder, cfg *config.SearchConfig) *Engine {
	return &Engine{
		storage:  store,
		embedder: embedder,
		config:   cfg,
		indexes:  make(map[string]vector.Index),
	}
}

// Search resolves the query vector, runs top-k similarity search, and
// returns full records with scores.
func (e *Engine) Search(ctx context.Context, query *models.SimilarityQuery) (*models.SimilarityResponse, error) {
	startTime := time.Now()
	if err := query.Validate(); err != nil {
		return nil, err
	}
	if e.config != nil {
		if query.K <= 0 {
			query.K = e.config.DefaultLimit
		}
		if query.K > e.config.MaxLimit {
			query.K = e.config.MaxLimit
		}
	}

	col, err := e.storage.GetCollection(ctx, query.Collection)
	if err != nil {
		return nil, err
	}

	queryVector := query.Vector
	if queryVector == nil {
		if e.embedder == nil {
			return nil, fmt.Errorf("text query requires an embedder")
		}
		queryVector, err = e.embedder.Embed(ctx, query.Text)
		if err != nil {
			return nil, fmt.Errorf("embedding failed: %w", err)
		}
	}
	if len(queryVector) != col.Dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, collection %s expects %d",
			len(queryVector), col.Name, col.Dimensions)
	}

	idx, err := e.collectionIndex(ctx, col)
	if err != nil {
		return nil, err
	}

	hits, err := idx.Search(ctx, queryVector, query.K)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	results := make([]*models.SearchResult, 0, len(hits))
	for _, hit := range hits {
		rec, err := e.storage.GetVector(ctx, col.Name, hit.ID)
		if err != nil {
			// Record deleted since the index was built; skip it.
			continue
		}
		results = append(results, &models.SearchResult{
			ID:       rec.ID,
			Score:    hit.Score,
			Vector:   rec.Vector,
			Metadata: rec.Metadata,
		})
	}

	return &models.SimilarityResponse{
		Results:   results,
		Query:     queryVector,
		QueryTime: time.Since(startTime).Milliseconds(),
	}, nil
}

// Embed exposes the engine's embedder for callers that need a query vector
// without running a search.
func (e *Engine) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.embedder == nil {
		return nil, fmt.Errorf("no embedder configured")
	}
	return e.embedder.Embed(ctx, text)
}

// Invalidate drops the cached index for a collection so the next search
// rebuilds it from storage. Called after inserts and deletes.
func (e *Engine) Invalidate(collection string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if idx, ok := e.indexes[collection]; ok {
		_ = idx.Close()
		delete(e.indexes, collection)
	}
}

// IndexSize returns the number of vectors in the cached index for a
// collection, or 0 when no index is cached.
func (e *Engine) IndexSize(collection string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if idx, ok := e.indexes[collection]; ok {
		return idx.Size()
	}
	return 0
}

// Close releases all cached indexes.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for name, idx := range e.indexes {
		_ = idx.Close()
		delete(e.indexes, name)
	}
	return nil
}

// collectionIndex returns the cached index for col, building it from
// storage on first use.
func (e *Engine) collectionIndex(ctx context.Context, col *models.Collection) (vector.Index, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if idx, ok := e.indexes[col.Name]; ok {
		return idx, nil
	}

	distance, err := vector.ParseDistance(col.Distance)
	if err != nil {
		return nil, err
	}
	idx, err := vector.NewIndex("memory", col.Dimensions, distance)
	if err != nil {
		return nil, err
	}

	recs, err := e.storage.ListVectors(ctx, col.Name, 0, 0)
	if err != nil {
		_ = idx.Close()
		return nil, fmt.Errorf("load collection %s: %w", col.Name, err)
	}
	ids := make([]int64, len(recs))
	vectors := make([][]float32, len(recs))
	for i, rec := range recs {
		ids[i] = rec.ID
		vectors[i] = rec.Vector
	}
	if err := idx.Add(ctx, ids, vectors); err != nil {
		_ = idx.Close()
		return nil, fmt.Errorf("build index for %s: %w", col.Name, err)
	}

	e.indexes[col.Name] = idx
	return idx, nil
}

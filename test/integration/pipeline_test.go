// Package integration wires storage, keyword index, importer, search and
// projection together the way the server does, against real on-disk indices.
package integration

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hyperjump/mieru/internal/config"
	"github.com/hyperjump/mieru/internal/embedding"
	"github.com/hyperjump/mieru/internal/extract"
	"github.com/hyperjump/mieru/internal/importer"
	"github.com/hyperjump/mieru/internal/keyword"
	"github.com/hyperjump/mieru/internal/models"
	"github.com/hyperjump/mieru/internal/projection"
	"github.com/hyperjump/mieru/internal/search"
	"github.com/hyperjump/mieru/internal/storage"
)

func TestIntegration_ImportSearchProject(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		Storage: config.StorageConfig{
			DatabasePath:   filepath.Join(dir, "db.sqlite"),
			BleveIndexPath: filepath.Join(dir, "bleve"),
		},
		Embedding: config.EmbeddingConfig{Dimensions: 4, MaxTokens: 32, CacheSize: 100},
		Search:    config.SearchConfig{DefaultLimit: 10, MaxLimit: 100},
		Import:    config.ImportConfig{Collection: "documents", ChunkSize: 32, ChunkOverlap: 4},
		Viz:       config.VizConfig{Iterations: 30},
	}

	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	embedder := embedding.NewMockEmbedder(cfg.Embedding.Dimensions)
	defer embedder.Close()

	kwIndex, err := keyword.NewBleveIndex(cfg.Storage.BleveIndexPath)
	if err != nil {
		t.Fatal(err)
	}
	defer kwIndex.Close()

	engine := search.NewEngine(store, embedder, &cfg.Search)
	defer engine.Close()

	imp := importer.New(store, embedder, kwIndex, extract.NewExtractor(), &cfg.Import,
		importer.WithInvalidator(engine.Invalidate))
	ctx := context.Background()

	mlIDs, err := imp.ImportDocument(ctx, "ML", "Machine learning algorithms learn from data.", nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := imp.ImportDocument(ctx, "Search", "Semantic search uses embeddings to find similar content.", nil); err != nil {
		t.Fatal(err)
	}

	// The mock embedder is deterministic, so the exact chunk text must come
	// back as the top hit.
	resp, err := engine.Search(ctx, &models.SimilarityQuery{
		Collection: "documents",
		Text:       "Machine learning algorithms learn from data.",
		K:          5,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) == 0 {
		t.Fatal("expected at least one result")
	}
	if resp.Results[0].ID != mlIDs[0] {
		t.Errorf("top hit = record %d, want %d", resp.Results[0].ID, mlIDs[0])
	}

	records, err := store.ListVectors(ctx, "documents", 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	vectors := make([][]float32, len(records))
	for i, rec := range records {
		vectors[i] = rec.Vector
	}
	result := projection.NewEngine(projection.WithIterations(cfg.Viz.Iterations)).Project(vectors, resp.Query)
	if len(result.Points) != len(records) {
		t.Errorf("projected %d points for %d records", len(result.Points), len(records))
	}
	if result.QueryPoint == nil {
		t.Error("expected a projected query point")
	}
}

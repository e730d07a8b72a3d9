package search

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hyperjump/mieru/internal/config"
	"github.com/hyperjump/mieru/internal/embedding"
	"github.com/hyperjump/mieru/internal/models"
	"github.com/hyperjump/mieru/internal/storage"
)

func newTestEngine(t *testing.T) (*Engine, storage.Storage) {
	t.Helper()
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	emb := embedding.NewMockEmbedder(4)
	cfg := &config.SearchConfig{DefaultLimit: 10, MaxLimit: 100}
	engine := NewEngine(store, emb, cfg)
	t.Cleanup(func() { engine.Close() })
	return engine, store
}

func seedCollection(t *testing.T, store storage.Storage) []int64 {
	t.Helper()
	ctx := context.Background()
	if err := store.CreateCollection(ctx, &models.Collection{Name: "docs", Dimensions: 4}); err != nil {
		t.Fatal(err)
	}
	ids, err := store.BatchInsertVectors(ctx, "docs", []*models.VectorRecord{
		{Vector: []float32{1, 0, 0, 0}, Metadata: map[string]interface{}{"title": "x-axis"}},
		{Vector: []float32{0, 1, 0, 0}, Metadata: map[string]interface{}{"title": "y-axis"}},
		{Vector: []float32{0.9, 0.1, 0, 0}, Metadata: map[string]interface{}{"title": "near-x"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	return ids
}

func TestEngine_SearchByVector(t *testing.T) {
	engine, store := newTestEngine(t)
	ids := seedCollection(t, store)
	ctx := context.Background()

	resp, err := engine.Search(ctx, &models.SimilarityQuery{
		Collection: "docs",
		Vector:     []float32{1, 0, 0, 0},
		K:          2,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("got %d results, want 2", len(resp.Results))
	}
	if resp.Results[0].ID != ids[0] {
		t.Errorf("top hit=%d, want %d", resp.Results[0].ID, ids[0])
	}
	if resp.Results[1].ID != ids[2] {
		t.Errorf("second hit=%d, want %d", resp.Results[1].ID, ids[2])
	}
	if resp.Results[0].Score < resp.Results[1].Score {
		t.Error("results not ordered by descending score")
	}
	if len(resp.Results[0].Vector) != 4 {
		t.Error("results should carry the full stored vector")
	}
	if resp.Results[0].Metadata["title"] != "x-axis" {
		t.Errorf("metadata not carried: %v", resp.Results[0].Metadata)
	}
}

func TestEngine_SearchByText(t *testing.T) {
	engine, store := newTestEngine(t)
	seedCollection(t, store)
	ctx := context.Background()

	resp, err := engine.Search(ctx, &models.SimilarityQuery{
		Collection: "docs",
		Text:       "some query",
		K:          3,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) != 3 {
		t.Fatalf("got %d results, want 3", len(resp.Results))
	}
	if len(resp.Query) != 4 {
		t.Errorf("response should carry the resolved query vector, got %v", resp.Query)
	}
	if resp.QueryTime < 0 {
		t.Errorf("query time = %d", resp.QueryTime)
	}
}

func TestEngine_SearchValidation(t *testing.T) {
	engine, store := newTestEngine(t)
	seedCollection(t, store)
	ctx := context.Background()

	if _, err := engine.Search(ctx, &models.SimilarityQuery{Collection: "docs"}); err == nil {
		t.Error("expected error for query with neither vector nor text")
	}
	if _, err := engine.Search(ctx, &models.SimilarityQuery{Vector: []float32{1, 0, 0, 0}}); err == nil {
		t.Error("expected error for missing collection")
	}
	if _, err := engine.Search(ctx, &models.SimilarityQuery{
		Collection: "missing", Vector: []float32{1, 0, 0, 0},
	}); err == nil {
		t.Error("expected error for unknown collection")
	}
	if _, err := engine.Search(ctx, &models.SimilarityQuery{
		Collection: "docs", Vector: []float32{1, 0},
	}); err == nil {
		t.Error("expected error for dimension mismatch")
	}
}

func TestEngine_IndexCacheAndInvalidate(t *testing.T) {
	engine, store := newTestEngine(t)
	ids := seedCollection(t, store)
	ctx := context.Background()

	if got := engine.IndexSize("docs"); got != 0 {
		t.Errorf("IndexSize before first search = %d, want 0", got)
	}
	if _, err := engine.Search(ctx, &models.SimilarityQuery{
		Collection: "docs", Vector: []float32{1, 0, 0, 0}, K: 1,
	}); err != nil {
		t.Fatal(err)
	}
	if got := engine.IndexSize("docs"); got != 3 {
		t.Errorf("IndexSize after search = %d, want 3", got)
	}

	// New insert is invisible until the cache is invalidated.
	newID, err := store.InsertVector(ctx, "docs", &models.VectorRecord{Vector: []float32{0, 0, 1, 0}})
	if err != nil {
		t.Fatal(err)
	}
	resp, _ := engine.Search(ctx, &models.SimilarityQuery{
		Collection: "docs", Vector: []float32{0, 0, 1, 0}, K: 10,
	})
	for _, r := range resp.Results {
		if r.ID == newID {
			t.Fatal("stale cache should not contain the new record")
		}
	}

	engine.Invalidate("docs")
	if got := engine.IndexSize("docs"); got != 0 {
		t.Errorf("IndexSize after invalidate = %d, want 0", got)
	}
	resp, err = engine.Search(ctx, &models.SimilarityQuery{
		Collection: "docs", Vector: []float32{0, 0, 1, 0}, K: 1,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) != 1 || resp.Results[0].ID != newID {
		t.Errorf("after invalidate, top hit=%+v, want id %d", resp.Results, newID)
	}
	_ = ids
}

func TestEngine_DeletedRecordSkipped(t *testing.T) {
	engine, store := newTestEngine(t)
	ids := seedCollection(t, store)
	ctx := context.Background()

	// Warm the cache, then delete a record behind the engine's back.
	if _, err := engine.Search(ctx, &models.SimilarityQuery{
		Collection: "docs", Vector: []float32{1, 0, 0, 0}, K: 1,
	}); err != nil {
		t.Fatal(err)
	}
	if err := store.DeleteVector(ctx, "docs", ids[0]); err != nil {
		t.Fatal(err)
	}

	resp, err := engine.Search(ctx, &models.SimilarityQuery{
		Collection: "docs", Vector: []float32{1, 0, 0, 0}, K: 3,
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range resp.Results {
		if r.ID == ids[0] {
			t.Error("deleted record should be skipped in results")
		}
	}
}

func TestEngine_KDefaultsAndCap(t *testing.T) {
	engine, store := newTestEngine(t)
	seedCollection(t, store)
	ctx := context.Background()

	q := &models.SimilarityQuery{Collection: "docs", Vector: []float32{1, 0, 0, 0}}
	if _, err := engine.Search(ctx, q); err != nil {
		t.Fatal(err)
	}
	if q.K != 10 {
		t.Errorf("K should default to config limit 10, got %d", q.K)
	}

	q2 := &models.SimilarityQuery{Collection: "docs", Vector: []float32{1, 0, 0, 0}, K: 500}
	if _, err := engine.Search(ctx, q2); err != nil {
		t.Fatal(err)
	}
	if q2.K != 100 {
		t.Errorf("K should be capped at 100, got %d", q2.K)
	}
}

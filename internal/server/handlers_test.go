package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/mieru/internal/config"
	"github.com/hyperjump/mieru/internal/embedding"
	"github.com/hyperjump/mieru/internal/keyword"
	"github.com/hyperjump/mieru/internal/metrics"
	"github.com/hyperjump/mieru/internal/models"
	"github.com/hyperjump/mieru/internal/projection"
	"github.com/hyperjump/mieru/internal/search"
	"github.com/hyperjump/mieru/internal/storage"
)

func newTestServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewSQLiteStorage(filepath.Join(dir, "db.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	kwIdx, err := keyword.NewBleveIndex(filepath.Join(dir, "bleve"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { kwIdx.Close() })

	rec, err := metrics.NewRecorder(filepath.Join(dir, "metrics.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { rec.Close() })

	embedder := embedding.NewMockEmbedder(4)
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Storage.DatabasePath = filepath.Join(dir, "db.sqlite")
	cfg.Storage.MetricsPath = filepath.Join(dir, "metrics.db")
	cfg.Storage.BleveIndexPath = filepath.Join(dir, "bleve")
	engine := search.NewEngine(store, embedder, &cfg.Search)
	t.Cleanup(func() { engine.Close() })

	srv := NewServer(store, engine, projection.NewEngine(), cfg, zap.NewNop(),
		WithKeywordIndex(kwIdx), WithMetrics(rec))
	return srv, srv.Router()
}

func doJSON(t *testing.T, router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v\n%s", err, w.Body.String())
	}
}

func createTestCollection(t *testing.T, router http.Handler) {
	t.Helper()
	w := doJSON(t, router, http.MethodPost, "/api/v1/collections",
		&models.Collection{Name: "docs", Dimensions: 4})
	if w.Code != http.StatusCreated {
		t.Fatalf("create collection: status %d: %s", w.Code, w.Body.String())
	}
}

func insertTestRecord(t *testing.T, router http.Handler, vec []float32, meta map[string]interface{}) int64 {
	t.Helper()
	w := doJSON(t, router, http.MethodPost, "/api/v1/collections/docs/records",
		&models.RecordInput{Vector: vec, Metadata: meta})
	if w.Code != http.StatusCreated {
		t.Fatalf("insert record: status %d: %s", w.Code, w.Body.String())
	}
	var out struct {
		ID         int64 `json:"id"`
		Dimensions int   `json:"dimensions"`
	}
	decodeBody(t, w, &out)
	if out.Dimensions != len(vec) {
		t.Errorf("insert response dimensions = %d, want %d", out.Dimensions, len(vec))
	}
	return out.ID
}

func TestHandleCollections_CRUD(t *testing.T) {
	_, router := newTestServer(t)
	createTestCollection(t, router)

	// Duplicate name is rejected.
	if w := doJSON(t, router, http.MethodPost, "/api/v1/collections",
		&models.Collection{Name: "docs", Dimensions: 4}); w.Code != http.StatusBadRequest {
		t.Errorf("duplicate create: status %d", w.Code)
	}
	// Missing name is rejected.
	if w := doJSON(t, router, http.MethodPost, "/api/v1/collections",
		&models.Collection{Dimensions: 4}); w.Code != http.StatusBadRequest {
		t.Errorf("nameless create: status %d", w.Code)
	}

	w := doJSON(t, router, http.MethodGet, "/api/v1/collections/docs", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get collection: status %d", w.Code)
	}
	var col models.Collection
	decodeBody(t, w, &col)
	if col.Name != "docs" || col.Dimensions != 4 || col.Distance != "cosine" {
		t.Errorf("collection = %+v", col)
	}

	if w := doJSON(t, router, http.MethodGet, "/api/v1/collections/missing", nil); w.Code != http.StatusNotFound {
		t.Errorf("get missing collection: status %d", w.Code)
	}

	if w := doJSON(t, router, http.MethodDelete, "/api/v1/collections/docs", nil); w.Code != http.StatusOK {
		t.Errorf("delete collection: status %d", w.Code)
	}
	if w := doJSON(t, router, http.MethodDelete, "/api/v1/collections/docs", nil); w.Code != http.StatusNotFound {
		t.Errorf("delete missing collection: status %d", w.Code)
	}
}

func TestHandleListCollections_withCounts(t *testing.T) {
	_, router := newTestServer(t)
	createTestCollection(t, router)
	insertTestRecord(t, router, []float32{1, 0, 0, 0}, nil)
	insertTestRecord(t, router, []float32{0, 1, 0, 0}, nil)

	w := doJSON(t, router, http.MethodGet, "/api/v1/collections", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	var out struct {
		Collections []struct {
			Name    string `json:"name"`
			Records int64  `json:"records"`
		} `json:"collections"`
	}
	decodeBody(t, w, &out)
	if len(out.Collections) != 1 {
		t.Fatalf("got %d collections", len(out.Collections))
	}
	if out.Collections[0].Name != "docs" || out.Collections[0].Records != 2 {
		t.Errorf("listing = %+v", out.Collections[0])
	}
}

func TestHandleRecords_CRUD(t *testing.T) {
	_, router := newTestServer(t)
	createTestCollection(t, router)
	id := insertTestRecord(t, router, []float32{1, 0, 0, 0}, map[string]interface{}{"title": "first"})

	// Dimension mismatch is a client error.
	if w := doJSON(t, router, http.MethodPost, "/api/v1/collections/docs/records",
		&models.RecordInput{Vector: []float32{1, 0}}); w.Code != http.StatusBadRequest {
		t.Errorf("dim mismatch insert: status %d", w.Code)
	}
	// Empty vector is rejected.
	if w := doJSON(t, router, http.MethodPost, "/api/v1/collections/docs/records",
		&models.RecordInput{}); w.Code != http.StatusBadRequest {
		t.Errorf("empty insert: status %d", w.Code)
	}

	w := doJSON(t, router, http.MethodGet, "/api/v1/collections/docs/records/"+itoa(id), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get record: status %d", w.Code)
	}
	var rec models.VectorRecord
	decodeBody(t, w, &rec)
	if rec.ID != id || rec.Metadata["title"] != "first" {
		t.Errorf("record = %+v", rec)
	}

	if w := doJSON(t, router, http.MethodDelete, "/api/v1/collections/docs/records/"+itoa(id), nil); w.Code != http.StatusOK {
		t.Errorf("delete record: status %d", w.Code)
	}
	if w := doJSON(t, router, http.MethodGet, "/api/v1/collections/docs/records/"+itoa(id), nil); w.Code != http.StatusNotFound {
		t.Errorf("get deleted record: status %d", w.Code)
	}
	if w := doJSON(t, router, http.MethodGet, "/api/v1/collections/docs/records/abc", nil); w.Code != http.StatusBadRequest {
		t.Errorf("non-numeric id: status %d", w.Code)
	}
}

func TestHandleListRecords_paginationAndFilter(t *testing.T) {
	_, router := newTestServer(t)
	createTestCollection(t, router)
	insertTestRecord(t, router, []float32{1, 0, 0, 0}, map[string]interface{}{"title": "solar telescope"})
	insertTestRecord(t, router, []float32{0, 1, 0, 0}, map[string]interface{}{"title": "radio antenna"})
	insertTestRecord(t, router, []float32{0, 0, 1, 0}, map[string]interface{}{"title": "lunar rover"})

	w := doJSON(t, router, http.MethodGet, "/api/v1/collections/docs/records?offset=1&limit=2", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	var out struct {
		Records []*models.VectorRecord `json:"records"`
		Total   int64                  `json:"total"`
	}
	decodeBody(t, w, &out)
	if len(out.Records) != 2 || out.Total != 3 {
		t.Errorf("got %d records, total %d", len(out.Records), out.Total)
	}

	w = doJSON(t, router, http.MethodGet, "/api/v1/collections/docs/records?filter=telescope", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("filter status %d: %s", w.Code, w.Body.String())
	}
	decodeBody(t, w, &out)
	if len(out.Records) != 1 || out.Records[0].Metadata["title"] != "solar telescope" {
		t.Errorf("filtered records = %+v", out.Records)
	}

	if w := doJSON(t, router, http.MethodGet, "/api/v1/collections/missing/records", nil); w.Code != http.StatusNotFound {
		t.Errorf("records of missing collection: status %d", w.Code)
	}
}

func TestHandleSearch(t *testing.T) {
	_, router := newTestServer(t)
	createTestCollection(t, router)
	a := insertTestRecord(t, router, []float32{1, 0, 0, 0}, map[string]interface{}{"title": "x"})
	insertTestRecord(t, router, []float32{0, 1, 0, 0}, nil)

	w := doJSON(t, router, http.MethodPost, "/api/v1/search",
		&models.SimilarityQuery{Collection: "docs", Vector: []float32{1, 0, 0, 0}, K: 1})
	if w.Code != http.StatusOK {
		t.Fatalf("search: status %d: %s", w.Code, w.Body.String())
	}
	var resp models.SimilarityResponse
	decodeBody(t, w, &resp)
	if len(resp.Results) != 1 || resp.Results[0].ID != a {
		t.Errorf("results = %+v, want top hit %d", resp.Results, a)
	}

	if w := doJSON(t, router, http.MethodPost, "/api/v1/search",
		&models.SimilarityQuery{Collection: "docs"}); w.Code != http.StatusBadRequest {
		t.Errorf("invalid query: status %d", w.Code)
	}
}

func TestHandleProjection(t *testing.T) {
	_, router := newTestServer(t)
	createTestCollection(t, router)
	insertTestRecord(t, router, []float32{1, 0, 0, 0}, nil)
	insertTestRecord(t, router, []float32{0, 1, 0, 0}, nil)
	insertTestRecord(t, router, []float32{0.5, 0.5, 0, 0}, nil)

	w := doJSON(t, router, http.MethodPost, "/api/v1/projection",
		&projectionRequest{Collection: "docs", Query: []float32{1, 0, 0, 0}})
	if w.Code != http.StatusOK {
		t.Fatalf("projection: status %d: %s", w.Code, w.Body.String())
	}
	var out struct {
		Points []projectedPoint `json:"points"`
		Query  *struct {
			X float64 `json:"x"`
			Y float64 `json:"y"`
		} `json:"query_point"`
		Count int `json:"count"`
	}
	decodeBody(t, w, &out)
	if out.Count != 3 || len(out.Points) != 3 {
		t.Fatalf("count = %d, points = %d", out.Count, len(out.Points))
	}
	if out.Query == nil {
		t.Error("query point missing from response")
	}
	for _, p := range out.Points {
		if p.ID == 0 {
			t.Errorf("point without record id: %+v", p)
		}
	}

	if w := doJSON(t, router, http.MethodPost, "/api/v1/projection",
		&projectionRequest{Collection: "missing"}); w.Code != http.StatusNotFound {
		t.Errorf("projection of missing collection: status %d", w.Code)
	}
	if w := doJSON(t, router, http.MethodPost, "/api/v1/projection",
		&projectionRequest{}); w.Code != http.StatusBadRequest {
		t.Errorf("projection without collection: status %d", w.Code)
	}
}

func TestHandleProjection_queryDimensionMismatch(t *testing.T) {
	_, router := newTestServer(t)
	if w := doJSON(t, router, http.MethodPost, "/api/v1/collections",
		&models.Collection{Name: "pairs", Dimensions: 2}); w.Code != http.StatusCreated {
		t.Fatalf("create collection: status %d", w.Code)
	}
	for _, vec := range [][]float32{{1, 2}, {3, 4}, {5, 6}} {
		if w := doJSON(t, router, http.MethodPost, "/api/v1/collections/pairs/records",
			&models.RecordInput{Vector: vec}); w.Code != http.StatusCreated {
			t.Fatalf("insert record: status %d: %s", w.Code, w.Body.String())
		}
	}

	// A query longer than the collection's dimension must be rejected up
	// front, not handed to the projector.
	w := doJSON(t, router, http.MethodPost, "/api/v1/projection",
		&projectionRequest{Collection: "pairs", Query: []float32{1, 2, 3}})
	if w.Code != http.StatusBadRequest {
		t.Errorf("oversized query: status %d, want %d", w.Code, http.StatusBadRequest)
	}

	w = doJSON(t, router, http.MethodPost, "/api/v1/projection",
		&projectionRequest{Collection: "pairs", Query: []float32{1}})
	if w.Code != http.StatusBadRequest {
		t.Errorf("undersized query: status %d, want %d", w.Code, http.StatusBadRequest)
	}

	// Without a query the projection still works.
	w = doJSON(t, router, http.MethodPost, "/api/v1/projection",
		&projectionRequest{Collection: "pairs"})
	if w.Code != http.StatusOK {
		t.Errorf("query-less projection: status %d: %s", w.Code, w.Body.String())
	}
}

func TestHandleStatus(t *testing.T) {
	_, router := newTestServer(t)
	createTestCollection(t, router)
	insertTestRecord(t, router, []float32{1, 0, 0, 0}, nil)

	w := doJSON(t, router, http.MethodGet, "/api/v1/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: %d", w.Code)
	}
	var out map[string]interface{}
	decodeBody(t, w, &out)
	if out["collections"] != float64(1) || out["records"] != float64(1) {
		t.Errorf("counts = %v / %v", out["collections"], out["records"])
	}
	cfgInfo, ok := out["config"].(map[string]interface{})
	if !ok {
		t.Fatalf("config section missing: %v", out)
	}
	if cfgInfo["embedding_dimensions"] != float64(384) {
		t.Errorf("embedding_dimensions = %v", cfgInfo["embedding_dimensions"])
	}
}

func TestHandleMetrics(t *testing.T) {
	_, router := newTestServer(t)
	createTestCollection(t, router)
	insertTestRecord(t, router, []float32{1, 0, 0, 0}, nil)
	if w := doJSON(t, router, http.MethodPost, "/api/v1/search",
		&models.SimilarityQuery{Collection: "docs", Vector: []float32{1, 0, 0, 0}}); w.Code != http.StatusOK {
		t.Fatalf("search: status %d", w.Code)
	}

	w := doJSON(t, router, http.MethodGet, "/api/v1/metrics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("metrics: status %d", w.Code)
	}
	var recent struct {
		Metrics []*metrics.Metric `json:"metrics"`
	}
	decodeBody(t, w, &recent)
	if len(recent.Metrics) != 2 {
		t.Fatalf("got %d metrics, want insert_vector and vector_search", len(recent.Metrics))
	}
	if recent.Metrics[0].Operation != "vector_search" {
		t.Errorf("newest metric = %s, want vector_search", recent.Metrics[0].Operation)
	}

	w = doJSON(t, router, http.MethodGet, "/api/v1/metrics/stats", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("metrics stats: status %d", w.Code)
	}
	var stats struct {
		Stats []*metrics.OperationStats `json:"stats"`
	}
	decodeBody(t, w, &stats)
	if len(stats.Stats) != 2 {
		t.Errorf("got %d operations in stats", len(stats.Stats))
	}
}

func TestHandleMetricsConnections(t *testing.T) {
	srv, router := newTestServer(t)
	ctx := context.Background()
	if err := srv.recorder.RecordConnection(ctx, "/data/alpha.db"); err != nil {
		t.Fatal(err)
	}
	if err := srv.recorder.RecordConnection(ctx, "/data/beta.db"); err != nil {
		t.Fatal(err)
	}

	w := doJSON(t, router, http.MethodGet, "/api/v1/metrics/connections", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("connections: status %d", w.Code)
	}
	var out struct {
		Connections []*metrics.Connection `json:"connections"`
	}
	decodeBody(t, w, &out)
	if len(out.Connections) != 2 {
		t.Fatalf("got %d connections, want 2", len(out.Connections))
	}
	if out.Connections[0].Path != "/data/beta.db" {
		t.Errorf("most recent first: got %s", out.Connections[0].Path)
	}
}

func TestHandleWatch_notEnabled(t *testing.T) {
	_, router := newTestServer(t)
	if w := doJSON(t, router, http.MethodGet, "/api/v1/watch/directories", nil); w.Code != http.StatusNotImplemented {
		t.Errorf("watch list without watcher: status %d", w.Code)
	}
}

func TestHandleHealth(t *testing.T) {
	_, router := newTestServer(t)
	w := doJSON(t, router, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("health: status %d", w.Code)
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/mieru/internal/config"
	"github.com/hyperjump/mieru/internal/keyword"
	"github.com/hyperjump/mieru/internal/models"
	"github.com/hyperjump/mieru/internal/storage"
)

func (s *Server) handleCreateCollection(w http.ResponseWriter, r *http.Request) {
	var col models.Collection
	if err := json.NewDecoder(r.Body).Decode(&col); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if col.Name == "" {
		s.respondError(w, http.StatusBadRequest, "name is required")
		return
	}
	s.logger.Debug("create collection request",
		zap.String("name", col.Name), zap.Int("dimensions", col.Dimensions))
	if err := s.storage.CreateCollection(r.Context(), &col); err != nil {
		s.logger.Error("create collection failed", zap.Error(err))
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, &col)
}

func (s *Server) handleListCollections(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	collections, err := s.storage.ListCollections(ctx)
	if err != nil {
		s.logger.Error("list collections failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	type entry struct {
		*models.Collection
		Records int64 `json:"records"`
	}
	entries := make([]entry, len(collections))
	for i, col := range collections {
		count, err := s.storage.CountVectors(ctx, col.Name)
		if err != nil {
			s.logger.Error("count vectors failed", zap.String("collection", col.Name), zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		entries[i] = entry{Collection: col, Records: count}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"collections": entries})
}

func (s *Server) handleGetCollection(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	col, err := s.storage.GetCollection(r.Context(), name)
	if err != nil {
		s.respondError(w, http.StatusNotFound, "collection not found")
		return
	}
	s.respondJSON(w, http.StatusOK, col)
}

func (s *Server) handleDeleteCollection(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	s.logger.Debug("delete collection request", zap.String("name", name))
	if err := s.storage.DeleteCollection(r.Context(), name); err != nil {
		s.respondError(w, http.StatusNotFound, err.Error())
		return
	}
	s.engine.Invalidate(name)
	s.respondJSON(w, http.StatusOK, map[string]string{"name": name, "status": "deleted"})
}

func (s *Server) handleInsertRecord(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	name := chi.URLParam(r, "name")
	var input models.RecordInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(input.Vector) == 0 {
		s.respondError(w, http.StatusBadRequest, "vector is required")
		return
	}
	rec := &models.VectorRecord{Vector: input.Vector, Metadata: input.Metadata}
	id, err := s.storage.InsertVector(r.Context(), name, rec)
	if err != nil {
		s.logger.Error("insert record failed", zap.String("collection", name), zap.Error(err))
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if s.keywordIndex != nil && len(rec.Metadata) > 0 {
		if err := s.keywordIndex.Index(r.Context(), id, rec.Metadata); err != nil {
			s.logger.Warn("keyword indexing failed", zap.Int64("id", id), zap.Error(err))
		}
	}
	s.engine.Invalidate(name)
	s.record(r.Context(), name, "insert_vector", start)
	s.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"id":         id,
		"dimensions": len(input.Vector),
	})
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := chi.URLParam(r, "name")
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 100
	}

	if _, err := s.storage.GetCollection(ctx, name); err != nil {
		s.respondError(w, http.StatusNotFound, "collection not found")
		return
	}

	if filter := r.URL.Query().Get("filter"); filter != "" {
		s.handleListRecordsFiltered(w, r, name, filter, limit)
		return
	}

	recs, err := s.storage.ListVectors(ctx, name, offset, limit)
	if err != nil {
		s.logger.Error("list records failed", zap.String("collection", name), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	total, err := s.storage.CountVectors(ctx, name)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"records": recs,
		"total":   total,
	})
}

// handleListRecordsFiltered narrows the listing to records whose metadata
// matches the filter term via the keyword index.
func (s *Server) handleListRecordsFiltered(w http.ResponseWriter, r *http.Request, name, filter string, limit int) {
	if s.keywordIndex == nil {
		s.respondError(w, http.StatusNotImplemented, "metadata filtering not enabled")
		return
	}
	ctx := r.Context()
	hits, err := s.keywordIndex.Search(ctx, filter, limit, &keyword.SearchOptions{FuzzyEnabled: true, Fuzziness: 1})
	if err != nil {
		s.logger.Error("metadata filter failed", zap.String("filter", filter), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	recs := make([]*models.VectorRecord, 0, len(hits))
	for _, hit := range hits {
		rec, err := s.storage.GetVector(ctx, name, hit.ID)
		if err != nil {
			// Hit belongs to another collection or was deleted; skip it.
			continue
		}
		recs = append(recs, rec)
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"records": recs,
		"total":   int64(len(recs)),
		"filter":  filter,
	})
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid record id")
		return
	}
	rec, err := s.storage.GetVector(r.Context(), name, id)
	if err != nil {
		s.respondError(w, http.StatusNotFound, "record not found")
		return
	}
	s.respondJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid record id")
		return
	}
	s.logger.Debug("delete record request", zap.String("collection", name), zap.Int64("id", id))
	if err := s.storage.DeleteVector(r.Context(), name, id); err != nil {
		s.respondError(w, http.StatusNotFound, err.Error())
		return
	}
	if s.keywordIndex != nil {
		if err := s.keywordIndex.Delete(r.Context(), id); err != nil {
			s.logger.Warn("keyword delete failed", zap.Int64("id", id), zap.Error(err))
		}
	}
	s.engine.Invalidate(name)
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var query models.SimilarityQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("search request",
		zap.String("collection", query.Collection), zap.Int("k", query.K))
	response, err := s.engine.Search(r.Context(), &query)
	if err != nil {
		s.logger.Error("search failed", zap.Error(err))
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.record(r.Context(), query.Collection, "vector_search", start)
	s.respondJSON(w, http.StatusOK, response)
}

type projectionRequest struct {
	Collection string    `json:"collection"`
	Query      []float32 `json:"query,omitempty"`
	Text       string    `json:"text,omitempty"`
	Limit      int       `json:"limit,omitempty"`
}

type projectedPoint struct {
	ID int64   `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

func (s *Server) handleProjection(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	var req projectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Collection == "" {
		s.respondError(w, http.StatusBadRequest, "collection is required")
		return
	}
	col, err := s.storage.GetCollection(ctx, req.Collection)
	if err != nil {
		s.respondError(w, http.StatusNotFound, "collection not found")
		return
	}

	query := req.Query
	if len(query) == 0 {
		query = nil
	}
	if query == nil && req.Text != "" {
		vec, err := s.engine.Embed(ctx, req.Text)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		query = vec
	}
	if len(query) > 0 && len(query) != col.Dimensions {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf(
			"query has %d dimensions, collection %q has %d", len(query), col.Name, col.Dimensions))
		return
	}

	recs, err := s.storage.ListVectors(ctx, req.Collection, 0, req.Limit)
	if err != nil {
		s.logger.Error("projection load failed", zap.String("collection", req.Collection), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	vectors := make([][]float32, len(recs))
	for i, rec := range recs {
		vectors[i] = rec.Vector
	}
	result := s.projector.Project(vectors, query)

	points := make([]projectedPoint, len(recs))
	for i, rec := range recs {
		points[i] = projectedPoint{ID: rec.ID, X: result.Points[i].X, Y: result.Points[i].Y}
	}
	s.record(ctx, req.Collection, "projection", start)
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"points":      points,
		"query_point": result.QueryPoint,
		"count":       len(points),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	collectionCount, err := s.storage.CountCollections(ctx)
	if err != nil {
		s.logger.Error("status: count collections failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	collections, err := s.storage.ListCollections(ctx)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	var recordCount int64
	for _, col := range collections {
		n, err := s.storage.CountVectors(ctx, col.Name)
		if err != nil {
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		recordCount += n
	}
	resp := map[string]interface{}{
		"collections": collectionCount,
		"records":     recordCount,
	}

	configInfo := map[string]interface{}{
		"embedding_provider":   s.config.Embedding.Provider,
		"embedding_dimensions": s.config.Embedding.Dimensions,
		"database_path":        s.config.Storage.DatabasePath,
		"bleve_index_path":     s.config.Storage.BleveIndexPath,
	}
	diskBytes, err := storage.DiskUsageBytes(
		s.config.Storage.DatabasePath,
		s.config.Storage.MetricsPath,
		s.config.Storage.BleveIndexPath,
		s.config.Storage.VectorIndexPath,
	)
	if err == nil {
		resp["disk_usage_bytes"] = diskBytes
	}
	resp["config"] = configInfo
	if s.watch != nil {
		resp["watch_directories"] = s.watch.Directories()
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMetricsRecent(w http.ResponseWriter, r *http.Request) {
	if s.recorder == nil {
		s.respondError(w, http.StatusNotImplemented, "metrics not enabled")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	recent, err := s.recorder.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("metrics query failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"metrics": recent})
}

func (s *Server) handleMetricsStats(w http.ResponseWriter, r *http.Request) {
	if s.recorder == nil {
		s.respondError(w, http.StatusNotImplemented, "metrics not enabled")
		return
	}
	stats, err := s.recorder.Stats(r.Context())
	if err != nil {
		s.logger.Error("metrics stats failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"stats": stats})
}

func (s *Server) handleMetricsConnections(w http.ResponseWriter, r *http.Request) {
	if s.recorder == nil {
		s.respondError(w, http.StatusNotImplemented, "metrics not enabled")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	conns, err := s.recorder.ConnectionHistory(r.Context(), limit)
	if err != nil {
		s.logger.Error("connection history failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"connections": conns})
}

func (s *Server) handleWatchDirectoriesList(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"directories": s.watch.Directories()})
}

type watchAddRequest struct {
	Path string `json:"path"`
	Sync *bool  `json:"sync,omitempty"`
}

func (s *Server) handleWatchDirectoriesAdd(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	var req watchAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	abs, err := filepath.Abs(req.Path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			s.respondError(w, http.StatusNotFound, "directory not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !info.IsDir() {
		s.respondError(w, http.StatusBadRequest, "path is not a directory")
		return
	}
	syncExisting := true
	if req.Sync != nil {
		syncExisting = *req.Sync
	}
	s.logger.Debug("watch add directory request",
		zap.String("path", abs), zap.Bool("sync_existing", syncExisting))
	if err := s.watch.AddDirectory(abs, syncExisting); err != nil {
		s.logger.Error("watch add directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusCreated, map[string]string{"path": abs, "status": "added"})
}

func (s *Server) handleWatchDirectoriesRemove(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		var body struct {
			Path string `json:"path"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil && body.Path != "" {
			path = body.Path
		}
	}
	if path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required (query or body)")
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	s.logger.Debug("watch remove directory request", zap.String("path", abs))
	if err := s.watch.RemoveDirectory(abs); err != nil {
		s.logger.Error("watch remove directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusOK, map[string]string{"path": abs, "status": "removed"})
}

func (s *Server) persistWatchDirectories() {
	if s.configPath == "" || s.config == nil {
		return
	}
	s.configMu.Lock()
	s.config.Watch.Directories = s.watch.Directories()
	err := config.Save(s.configPath, s.config)
	s.configMu.Unlock()
	if err != nil {
		s.logger.Warn("failed to persist watch config", zap.Error(err))
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

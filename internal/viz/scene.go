package viz

import (
	"github.com/hyperjump/mieru/internal/models"
	"github.com/hyperjump/mieru/internal/projection"
)

// ProjectedPoint is a displayable 2D point derived from one VectorRecord.
// The slice holding these is rebuilt wholesale on every recompute, never
// mutated in place.
type ProjectedPoint struct {
	X              float64
	Y              float64
	ID             int64
	Metadata       map[string]interface{}
	IsSearchResult bool
	Score          float64
	Vector         []float32
}

// Scene owns the projected layout for one collection view. Projection is
// recomputed only through Recompute, which runs only when one of the three
// triggers changed the inputs (records, search results, query). Pan, zoom,
// and hover never reach the projection engine.
type Scene struct {
	engine *projection.Engine

	records []*models.VectorRecord
	results []*models.SearchResult
	query   []float32

	Points     []ProjectedPoint
	QueryPoint *projection.Point

	dirty      bool
	onActivate func(*models.VectorRecord)
}

// NewScene creates a scene around the given projection engine.
func NewScene(engine *projection.Engine) *Scene {
	return &Scene{engine: engine}
}

// OnActivate registers the callback invoked with the VectorRecord of an
// activated (clicked) point. The scene only emits; it never calls back into
// list views directly.
func (s *Scene) OnActivate(fn func(*models.VectorRecord)) {
	s.onActivate = fn
}

// SetRecords replaces the record batch and marks the projection dirty.
func (s *Scene) SetRecords(records []*models.VectorRecord) {
	s.records = records
	s.dirty = true
}

// SetResults replaces the highlighted search-result set and marks the
// projection dirty.
func (s *Scene) SetResults(results []*models.SearchResult) {
	s.results = results
	s.dirty = true
}

// SetQuery replaces the query vector (nil clears it) and marks the
// projection dirty.
func (s *Scene) SetQuery(query []float32) {
	s.query = query
	s.dirty = true
}

// Records returns the current record batch.
func (s *Scene) Records() []*models.VectorRecord {
	return s.records
}

// Recompute reprojects the batch if any input changed since the last call.
// Returns true when a new layout was produced.
func (s *Scene) Recompute() bool {
	if !s.dirty {
		return false
	}
	s.dirty = false

	vectors := make([][]float32, len(s.records))
	for i, r := range s.records {
		vectors[i] = r.Vector
	}
	res := s.engine.Project(vectors, s.query)
	s.QueryPoint = res.QueryPoint

	// Result ids not present in the batch are ignored for highlighting.
	scores := make(map[int64]float64, len(s.results))
	for _, r := range s.results {
		scores[r.ID] = r.Score
	}

	points := make([]ProjectedPoint, len(s.records))
	for i, r := range s.records {
		p := ProjectedPoint{
			X:        res.Points[i].X,
			Y:        res.Points[i].Y,
			ID:       r.ID,
			Metadata: r.Metadata,
			Vector:   r.Vector,
		}
		if score, ok := scores[r.ID]; ok {
			p.IsSearchResult = true
			p.Score = score
		}
		points[i] = p
	}
	s.Points = points
	return true
}

// Activate emits the point-activated event for the point at index i.
func (s *Scene) Activate(i int) {
	if s.onActivate == nil || i < 0 || i >= len(s.records) {
		return
	}
	s.onActivate(s.records[i])
}

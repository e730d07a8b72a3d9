// Package projection reduces batches of high-dimensional vectors to 2D
// points for display, using mean centering and two rounds of power iteration.
package projection

import (
	"math/rand"
	"time"

	"github.com/hyperjump/mieru/internal/linalg"
)

const (
	// defaultIterations is the number of power-iteration steps per axis.
	defaultIterations = 50
	// normEps guards renormalization: when an iterate's norm falls below
	// this, the previous direction is kept for that step.
	normEps = 1e-10
)

// Point is a projected 2D coordinate in data space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Result holds the projected points in input order, plus the query point
// when a query vector was supplied. Axis1 and Axis2 are the unit directions
// the points were projected onto; their sign is arbitrary.
type Result struct {
	Points     []Point   `json:"points"`
	QueryPoint *Point    `json:"query_point,omitempty"`
	Axis1      []float32 `json:"-"`
	Axis2      []float32 `json:"-"`
}

// Engine projects vector batches onto two approximately orthogonal
// directions of maximal variance. The method is approximate: convergence
// depends on the spectral gap, which is acceptable because the consumer
// only needs a stable layout, not exact principal components.
type Engine struct {
	iterations int
	rng        *rand.Rand
}

// Option configures an Engine.
type Option func(*Engine)

// WithIterations overrides the per-axis power-iteration count.
func WithIterations(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.iterations = n
		}
	}
}

// WithRand sets a deterministic random source for axis initialization.
// Axis sign is arbitrary either way; only relative point geometry is stable.
func WithRand(rng *rand.Rand) Option {
	return func(e *Engine) { e.rng = rng }
}

// NewEngine creates a projection engine. Without WithRand, axes are
// initialized from a time-seeded source, matching fresh-seed-per-call
// behavior.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{iterations: defaultIterations}
	for _, opt := range opts {
		opt(e)
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return e
}

// Project maps vectors (and query, when non-nil) to 2D. The query takes
// part in the centering and basis computation but is returned separately
// as QueryPoint rather than in Points. Points preserve input order.
//
// Degenerate batches (single vector, identical vectors) center to all
// zeros and collapse to the origin; that is valid output, not an error.
func (e *Engine) Project(vectors [][]float32, query []float32) Result {
	if len(vectors) == 0 {
		return Result{Points: []Point{}}
	}

	working := make([][]float32, 0, len(vectors)+1)
	for _, v := range vectors {
		row := make([]float32, len(v))
		copy(row, v)
		working = append(working, row)
	}
	if query != nil {
		row := make([]float32, len(query))
		copy(row, query)
		working = append(working, row)
	}

	mean := linalg.Mean(working)
	for _, row := range working {
		linalg.Sub(row, mean)
	}

	dim := len(working[0])
	axis1 := e.powerIterate(working, dim, nil)
	axis2 := e.powerIterate(working, dim, axis1)

	points := make([]Point, len(working))
	for i, row := range working {
		points[i] = Point{X: linalg.Dot(row, axis1), Y: linalg.Dot(row, axis2)}
	}

	res := Result{Points: points, Axis1: axis1, Axis2: axis2}
	if query != nil {
		q := points[len(points)-1]
		res.QueryPoint = &q
		res.Points = points[:len(points)-1]
	}
	return res
}

// powerIterate approximates the dominant direction of variance of the
// centered rows. When deflate is non-nil, the iterate is re-orthogonalized
// against it before every renormalization, yielding the next axis.
func (e *Engine) powerIterate(rows [][]float32, dim int, deflate []float32) []float32 {
	v := e.randomDirection(dim)
	if deflate != nil {
		orthogonalize(v, deflate)
		linalg.Normalize(v, normEps)
	}

	next := make([]float32, dim)
	for iter := 0; iter < e.iterations; iter++ {
		for i := range next {
			next[i] = 0
		}
		// Apply the implicit covariance operator: sum over rows of
		// row * (row . v).
		for _, row := range rows {
			linalg.MulAdd(next, row, linalg.Dot(row, v))
		}
		if deflate != nil {
			orthogonalize(next, deflate)
		}
		if linalg.Norm(next) < normEps {
			// Zero-variance direction; keep the previous iterate.
			continue
		}
		copy(v, next)
		linalg.Normalize(v, normEps)
	}
	return v
}

// randomDirection returns a unit vector with components drawn uniformly
// from [-0.5, 0.5).
func (e *Engine) randomDirection(dim int) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = float32(e.rng.Float64() - 0.5)
	}
	if !linalg.Normalize(v, normEps) {
		// Astronomically unlikely all-zero draw; fall back to a basis vector.
		v[0] = 1
	}
	return v
}

// orthogonalize removes from v its component along the unit vector axis.
func orthogonalize(v, axis []float32) {
	linalg.MulAdd(v, axis, -linalg.Dot(v, axis))
}

package projection

import (
	"math"
	"math/rand"
	"testing"

	"github.com/hyperjump/mieru/internal/linalg"
)

// testEngine returns an engine with a fixed seed so axes are reproducible.
func testEngine(seed int64) *Engine {
	return NewEngine(WithRand(rand.New(rand.NewSource(seed))))
}

// spreadBatch is a small batch with clearly separated variance directions.
func spreadBatch() [][]float32 {
	return [][]float32{
		{10, 0, 1, 0.5},
		{-10, 0, -1, 0.2},
		{8, 1, 0.5, -0.1},
		{-9, -1, -0.5, 0.3},
		{0, 3, 0, 0},
		{0, -3, 0.2, -0.4},
	}
}

func TestProject_Empty(t *testing.T) {
	res := testEngine(1).Project(nil, nil)
	if len(res.Points) != 0 {
		t.Errorf("empty input: got %d points, want 0", len(res.Points))
	}
	if res.QueryPoint != nil {
		t.Error("empty input: QueryPoint should be nil")
	}
}

func TestProject_PointCountMatchesInput(t *testing.T) {
	batch := spreadBatch()
	res := testEngine(1).Project(batch, nil)
	if len(res.Points) != len(batch) {
		t.Fatalf("got %d points, want %d", len(res.Points), len(batch))
	}

	q := []float32{1, 1, 1, 1}
	res = testEngine(1).Project(batch, q)
	if len(res.Points) != len(batch) {
		t.Fatalf("with query: got %d points, want %d (query excluded)", len(res.Points), len(batch))
	}
	if res.QueryPoint == nil {
		t.Fatal("with query: QueryPoint is nil")
	}
}

func TestProject_AxesUnitAndOrthogonal(t *testing.T) {
	res := testEngine(42).Project(spreadBatch(), nil)
	if n := linalg.Norm(res.Axis1); math.Abs(n-1) > 1e-6 {
		t.Errorf("‖axis1‖=%v, want 1", n)
	}
	if n := linalg.Norm(res.Axis2); math.Abs(n-1) > 1e-6 {
		t.Errorf("‖axis2‖=%v, want 1", n)
	}
	if d := math.Abs(linalg.Dot(res.Axis1, res.Axis2)); d > 1e-4 {
		t.Errorf("|axis1·axis2|=%v, want < 1e-4", d)
	}
}

func TestProject_DominantVarianceOnFirstAxis(t *testing.T) {
	// The batch varies mostly along dimension 0, so axis1 should be close
	// to ±e0 and points should spread much wider in X than in Y.
	res := testEngine(7).Project(spreadBatch(), nil)
	if a := math.Abs(float64(res.Axis1[0])); a < 0.9 {
		t.Errorf("axis1[0]=%v, want |axis1[0]| > 0.9", a)
	}
	var spreadX, spreadY float64
	for _, p := range res.Points {
		spreadX += p.X * p.X
		spreadY += p.Y * p.Y
	}
	if spreadX <= spreadY {
		t.Errorf("X variance %v not greater than Y variance %v", spreadX, spreadY)
	}
}

func TestProject_Centering(t *testing.T) {
	// Projected points of a centered working set must average to ~0 on
	// both axes: projection is linear and the centered rows sum to zero.
	res := testEngine(3).Project(spreadBatch(), nil)
	var sumX, sumY float64
	for _, p := range res.Points {
		sumX += p.X
		sumY += p.Y
	}
	n := float64(len(res.Points))
	if math.Abs(sumX/n) > 1e-4 || math.Abs(sumY/n) > 1e-4 {
		t.Errorf("projected mean=(%v,%v), want ~(0,0)", sumX/n, sumY/n)
	}
}

func TestProject_DegenerateCollapsesToOrigin(t *testing.T) {
	tests := []struct {
		name  string
		batch [][]float32
	}{
		{"single vector", [][]float32{{1, 2, 3}}},
		{"identical vectors", [][]float32{{4, 4, 4}, {4, 4, 4}, {4, 4, 4}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := testEngine(5).Project(tt.batch, nil)
			for i, p := range res.Points {
				if math.Abs(p.X) > 1e-6 || math.Abs(p.Y) > 1e-6 {
					t.Errorf("point %d = (%v,%v), want origin", i, p.X, p.Y)
				}
			}
		})
	}
}

func TestProject_QueryConsistency(t *testing.T) {
	batch := spreadBatch()[:5]
	extra := []float32{2, -1, 0.5, 0.1}

	asQuery := testEngine(99).Project(batch, extra)
	asMember := testEngine(99).Project(append(append([][]float32{}, batch...), extra), nil)

	if asQuery.QueryPoint == nil {
		t.Fatal("QueryPoint is nil")
	}
	member := asMember.Points[len(asMember.Points)-1]
	if math.Abs(asQuery.QueryPoint.X-member.X) > 1e-6 ||
		math.Abs(asQuery.QueryPoint.Y-member.Y) > 1e-6 {
		t.Errorf("query point (%v,%v) differs from member projection (%v,%v)",
			asQuery.QueryPoint.X, asQuery.QueryPoint.Y, member.X, member.Y)
	}
}

func TestProject_InputNotMutated(t *testing.T) {
	batch := [][]float32{{1, 2}, {3, 4}}
	orig := [][]float32{{1, 2}, {3, 4}}
	testEngine(1).Project(batch, nil)
	for i := range batch {
		for j := range batch[i] {
			if batch[i][j] != orig[i][j] {
				t.Fatalf("input vector %d was mutated", i)
			}
		}
	}
}

func TestProject_DeterministicWithSeed(t *testing.T) {
	a := testEngine(123).Project(spreadBatch(), nil)
	b := testEngine(123).Project(spreadBatch(), nil)
	for i := range a.Points {
		if a.Points[i] != b.Points[i] {
			t.Fatalf("point %d differs across runs with same seed", i)
		}
	}
}

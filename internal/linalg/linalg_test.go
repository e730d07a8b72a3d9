package linalg

import (
	"math"
	"testing"
)

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestDot(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"parallel", []float32{1, 2, 3}, []float32{1, 2, 3}, 14},
		{"mismatched lengths", []float32{1, 2}, []float32{1}, 0},
		{"empty", nil, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Dot(tt.a, tt.b); !almostEqual(got, tt.want, 1e-9) {
				t.Errorf("Dot=%v, want %v", got, tt.want)
			}
		})
	}
}

func TestNorm(t *testing.T) {
	if got := Norm([]float32{3, 4}); !almostEqual(got, 5, 1e-9) {
		t.Errorf("Norm=%v, want 5", got)
	}
	if got := Norm(nil); got != 0 {
		t.Errorf("Norm(nil)=%v, want 0", got)
	}
}

func TestNormalize(t *testing.T) {
	v := []float32{3, 4}
	if !Normalize(v, 1e-10) {
		t.Fatal("Normalize returned false for non-degenerate input")
	}
	if got := Norm(v); !almostEqual(got, 1, 1e-6) {
		t.Errorf("norm after Normalize=%v, want 1", got)
	}

	zero := []float32{0, 0, 0}
	if Normalize(zero, 1e-10) {
		t.Error("Normalize returned true for zero vector")
	}
	for _, v := range zero {
		if v != 0 {
			t.Error("zero vector was modified")
		}
	}
}

func TestMulAddSub(t *testing.T) {
	x := []float32{1, 1}
	MulAdd(x, []float32{2, 4}, 0.5)
	if x[0] != 2 || x[1] != 3 {
		t.Errorf("MulAdd result=%v, want [2 3]", x)
	}
	Sub(x, []float32{1, 1})
	if x[0] != 1 || x[1] != 2 {
		t.Errorf("Sub result=%v, want [1 2]", x)
	}
}

func TestMean(t *testing.T) {
	rows := [][]float32{{1, 2}, {3, 4}, {5, 6}}
	mean := Mean(rows)
	if !almostEqual(float64(mean[0]), 3, 1e-6) || !almostEqual(float64(mean[1]), 4, 1e-6) {
		t.Errorf("Mean=%v, want [3 4]", mean)
	}
	if Mean(nil) != nil {
		t.Error("Mean(nil) should be nil")
	}
}

func TestCosineSimilarity(t *testing.T) {
	if got := CosineSimilarity([]float32{1, 0}, []float32{1, 0}); !almostEqual(got, 1, 1e-6) {
		t.Errorf("identical vectors: got %v, want 1", got)
	}
	if got := CosineSimilarity([]float32{1, 0}, []float32{0, 1}); !almostEqual(got, 0, 1e-6) {
		t.Errorf("orthogonal vectors: got %v, want 0", got)
	}
	if got := CosineSimilarity([]float32{0, 0}, []float32{1, 0}); got != 0 {
		t.Errorf("zero vector: got %v, want 0", got)
	}
}

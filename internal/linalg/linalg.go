// Package linalg provides the small set of vector operations used by the
// projection engine and the similarity index.
package linalg

import "math"

// Dot returns the inner product of two vectors.
// Mismatched or empty inputs yield 0.
func Dot(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

// Norm returns the L2 norm of a vector.
func Norm(x []float32) float64 {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

// Normalize scales x in place to unit L2 norm.
// If the norm is below eps, x is left unchanged and false is returned.
func Normalize(x []float32, eps float64) bool {
	n := Norm(x)
	if n < eps {
		return false
	}
	inv := float32(1.0 / n)
	for i := range x {
		x[i] *= inv
	}
	return true
}

// Scale multiplies x in place by s.
func Scale(x []float32, s float64) {
	f := float32(s)
	for i := range x {
		x[i] *= f
	}
}

// MulAdd adds s*y to x in place. Slices must have equal length.
func MulAdd(x, y []float32, s float64) {
	f := float32(s)
	for i := range x {
		x[i] += f * y[i]
	}
}

// Sub subtracts y from x in place. Slices must have equal length.
func Sub(x, y []float32) {
	for i := range x {
		x[i] -= y[i]
	}
}

// Mean returns the component-wise mean of rows. All rows must share the
// same length; an empty input returns nil.
func Mean(rows [][]float32) []float32 {
	if len(rows) == 0 {
		return nil
	}
	dim := len(rows[0])
	mean := make([]float32, dim)
	for _, row := range rows {
		for j, v := range row {
			mean[j] += v
		}
	}
	inv := float32(1.0 / float64(len(rows)))
	for j := range mean {
		mean[j] *= inv
	}
	return mean
}

// CosineSimilarity returns the cosine similarity of two vectors, clamped to [0, 1]
// for normalized inputs.
func CosineSimilarity(a, b []float32) float64 {
	na, nb := Norm(a), Norm(b)
	if na == 0 || nb == 0 {
		return 0
	}
	return math.Max(0, math.Min(1, Dot(a, b)/(na*nb)))
}

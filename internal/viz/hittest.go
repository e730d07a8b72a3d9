package viz

import "math"

// DefaultHitRadius is the hit-test distance threshold at zoom 1, in device
// units. The effective threshold scales with zoom.
const DefaultHitRadius = 20.0

// HitTest returns the index of the point closest to the device-space
// pointer position, or -1 when no point lies within hitRadius*zoom. It is
// an arg-min under threshold: equidistant candidates resolve to the first
// in input order.
func HitTest(px, py float64, points []ProjectedPoint, t Transform, hitRadius float64) int {
	if hitRadius <= 0 {
		hitRadius = DefaultHitRadius
	}
	threshold := hitRadius * t.View.Zoom

	best := -1
	bestDist := math.Inf(1)
	for i := range points {
		dx, dy := t.ToDevice(points[i].X, points[i].Y)
		d := math.Hypot(dx-px, dy-py)
		if d < bestDist && d <= threshold {
			bestDist = d
			best = i
		}
	}
	return best
}

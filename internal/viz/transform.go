// Package viz provides the view transform, interaction state, hit-testing,
// and layered rendering for the 2D embedding plot.
package viz

import "github.com/hyperjump/mieru/internal/projection"

const (
	// ZoomMin and ZoomMax bound the zoom factor.
	ZoomMin = 0.2
	ZoomMax = 5.0
	// DefaultPadding is the padding between the data bounding box and the
	// viewport edge, in device units.
	DefaultPadding = 40.0
)

// ViewState holds the current zoom and pan. It is owned by the interaction
// layer and read-only to rendering.
type ViewState struct {
	Zoom float64
	PanX float64
	PanY float64
}

// NewViewState returns the initial view: zoom 1, no pan.
func NewViewState() ViewState {
	return ViewState{Zoom: 1}
}

// Reset restores zoom 1 and pan (0,0).
func (v *ViewState) Reset() {
	*v = NewViewState()
}

func clampZoom(z float64) float64 {
	if z < ZoomMin {
		return ZoomMin
	}
	if z > ZoomMax {
		return ZoomMax
	}
	return z
}

// Bounds is the data-space bounding box of the current point set.
type Bounds struct {
	MinX, MaxX float64
	MinY, MaxY float64
}

// BoundsOf computes the bounding box over points plus the query point when
// present. An empty input yields the zero box.
func BoundsOf(points []ProjectedPoint, query *projection.Point) Bounds {
	var b Bounds
	first := true
	extend := func(x, y float64) {
		if first {
			b = Bounds{MinX: x, MaxX: x, MinY: y, MaxY: y}
			first = false
			return
		}
		if x < b.MinX {
			b.MinX = x
		}
		if x > b.MaxX {
			b.MaxX = x
		}
		if y < b.MinY {
			b.MinY = y
		}
		if y > b.MaxY {
			b.MaxY = y
		}
	}
	for _, p := range points {
		extend(p.X, p.Y)
	}
	if query != nil {
		extend(query.X, query.Y)
	}
	return b
}

// Transform maps data-space coordinates to device coordinates for one
// viewport. It is a pure value; ToDevice has no side effects.
type Transform struct {
	Bounds  Bounds
	Width   float64
	Height  float64
	Padding float64
	View    ViewState
}

// ToDevice maps a data-space point to device space: normalize into the
// padded box (Y inverted so greater data-y renders higher), then apply
// zoom about the viewport center and additive pan.
func (t Transform) ToDevice(x, y float64) (float64, float64) {
	rangeX := t.Bounds.MaxX - t.Bounds.MinX
	if rangeX == 0 {
		rangeX = 1
	}
	rangeY := t.Bounds.MaxY - t.Bounds.MinY
	if rangeY == 0 {
		rangeY = 1
	}

	tx := ((x-t.Bounds.MinX)/rangeX)*(t.Width-2*t.Padding) + t.Padding
	ty := t.Height - (((y-t.Bounds.MinY)/rangeY)*(t.Height-2*t.Padding) + t.Padding)

	cx, cy := t.Width/2, t.Height/2
	return (tx-cx)*t.View.Zoom + cx + t.View.PanX,
		(ty-cy)*t.View.Zoom + cy + t.View.PanY
}

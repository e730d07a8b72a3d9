package viz

// DragState is the interaction state machine: Idle (hover hit-testing) or
// Dragging (panning).
type DragState int

const (
	// Idle means pointer moves hit-test instead of panning.
	Idle DragState = iota
	// Dragging means pointer moves recompute the pan.
	Dragging
)

// Interaction owns the view state and the pointer drag state machine.
// All coordinates are device-space pointer positions.
type Interaction struct {
	State DragState
	View  ViewState

	// HitRadius is the hit-test threshold at zoom 1, in device units.
	HitRadius float64

	anchorX float64
	anchorY float64
}

// NewInteraction returns an interaction layer with the initial view.
func NewInteraction() *Interaction {
	return &Interaction{View: NewViewState(), HitRadius: DefaultHitRadius}
}

// PointerDown enters Dragging and records the drag anchor so the current
// pan is preserved when the drag starts.
func (in *Interaction) PointerDown(x, y float64) {
	in.State = Dragging
	in.anchorX = x - in.View.PanX
	in.anchorY = y - in.View.PanY
}

// PointerMove updates the pan while Dragging and reports whether the view
// changed. While Idle the caller should hit-test instead.
func (in *Interaction) PointerMove(x, y float64) bool {
	if in.State != Dragging {
		return false
	}
	in.View.PanX = x - in.anchorX
	in.View.PanY = y - in.anchorY
	return true
}

// PointerUp ends a drag.
func (in *Interaction) PointerUp() {
	in.State = Idle
}

// PointerLeave ends a drag when the pointer exits the viewport.
func (in *Interaction) PointerLeave() {
	in.State = Idle
}

// WheelZoom applies a wheel step: up multiplies zoom by 1.1, down by 0.9.
func (in *Interaction) WheelZoom(up bool) {
	if up {
		in.View.Zoom = clampZoom(in.View.Zoom * 1.1)
	} else {
		in.View.Zoom = clampZoom(in.View.Zoom * 0.9)
	}
}

// ZoomIn applies the explicit zoom-in control (×1.2).
func (in *Interaction) ZoomIn() {
	in.View.Zoom = clampZoom(in.View.Zoom * 1.2)
}

// ZoomOut applies the explicit zoom-out control (÷1.2).
func (in *Interaction) ZoomOut() {
	in.View.Zoom = clampZoom(in.View.Zoom / 1.2)
}

// Reset restores zoom 1 and pan (0,0) and ends any drag.
func (in *Interaction) Reset() {
	in.View.Reset()
	in.State = Idle
}

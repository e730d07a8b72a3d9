package viz

// Layer identifies the paint pass a drawing call belongs to, so canvas
// implementations can style each pass independently.
type Layer int

const (
	LayerGrid Layer = iota
	LayerPoint
	LayerHighlight
	LayerHalo
	LayerQuery
	LayerHover
	LayerLabel
	LayerLegend
)

// Canvas is the drawing surface the render layer paints to. Coordinates
// are device-space cells; implementations clip out-of-range calls.
type Canvas interface {
	// Size returns the viewport width and height in cells.
	Size() (w, h int)
	// Clear resets the surface to the background.
	Clear()
	// Plot draws a single glyph.
	Plot(x, y int, glyph rune, layer Layer)
	// Text draws a string starting at (x, y), left to right.
	Text(x, y int, s string, layer Layer)
}

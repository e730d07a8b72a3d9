package tui

import (
	"strings"

	"github.com/hyperjump/mieru/internal/viz"
)

// CellCanvas is a terminal cell implementation of viz.Canvas. Device units
// are character cells; out-of-range draws are clipped.
type CellCanvas struct {
	width  int
	height int
	glyphs [][]rune
	layers [][]viz.Layer
}

// NewCellCanvas creates a canvas of the given size in cells.
func NewCellCanvas(width, height int) *CellCanvas {
	c := &CellCanvas{}
	c.Resize(width, height)
	return c
}

// Resize reallocates the cell buffers. Contents are cleared.
func (c *CellCanvas) Resize(width, height int) {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	c.width = width
	c.height = height
	c.glyphs = make([][]rune, height)
	c.layers = make([][]viz.Layer, height)
	for y := range c.glyphs {
		c.glyphs[y] = make([]rune, width)
		c.layers[y] = make([]viz.Layer, width)
	}
	c.Clear()
}

// Size returns the viewport dimensions in cells.
func (c *CellCanvas) Size() (w, h int) {
	return c.width, c.height
}

// Clear resets every cell to the background.
func (c *CellCanvas) Clear() {
	for y := range c.glyphs {
		for x := range c.glyphs[y] {
			c.glyphs[y][x] = ' '
			c.layers[y][x] = viz.LayerGrid
		}
	}
}

// Plot draws a single glyph. Later plots overwrite earlier ones, so the
// renderer's paint order decides what wins.
func (c *CellCanvas) Plot(x, y int, glyph rune, layer viz.Layer) {
	if x < 0 || x >= c.width || y < 0 || y >= c.height {
		return
	}
	c.glyphs[y][x] = glyph
	c.layers[y][x] = layer
}

// Text draws a string left to right starting at (x, y).
func (c *CellCanvas) Text(x, y int, s string, layer viz.Layer) {
	for i, r := range []rune(s) {
		c.Plot(x+i, y, r, layer)
	}
}

// View renders the canvas to a styled string, one line per row. Adjacent
// cells on the same layer are styled as a single run.
func (c *CellCanvas) View(styles Styles) string {
	var b strings.Builder
	for y := 0; y < c.height; y++ {
		x := 0
		for x < c.width {
			layer := c.layers[y][x]
			start := x
			for x < c.width && c.layers[y][x] == layer {
				x++
			}
			run := string(c.glyphs[y][start:x])
			if strings.TrimSpace(run) == "" {
				b.WriteString(run)
				continue
			}
			b.WriteString(styles.layerStyle(layer).Render(run))
		}
		if y < c.height-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

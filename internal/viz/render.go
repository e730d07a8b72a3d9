package viz

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode/utf8"
)

// Marker glyphs for each point kind.
const (
	glyphPoint     = '•'
	glyphHighlight = '●'
	glyphHalo      = '░'
	glyphQuery     = '◆'
	glyphHover     = '◌'
	glyphGrid      = '·'
)

// gridLines is the number of reference grid divisions per axis.
const gridLines = 10

// metadataPreviewLen caps the metadata line in the hover panel.
const metadataPreviewLen = 40

// Renderer paints the scene to a canvas in a fixed layer order: background,
// grid, ordinary points, highlighted results, query marker, hover details,
// legend. Each pass only reads already-computed device coordinates.
type Renderer struct{}

// Render paints everything. hover is the index of the hovered point in
// scene.Points, or -1 for none.
func (r *Renderer) Render(c Canvas, scene *Scene, t Transform, hover int) {
	c.Clear()
	r.drawGrid(c, t)
	r.drawPoints(c, scene, t)
	r.drawHighlights(c, scene, t)
	r.drawQuery(c, scene, t)
	r.drawHover(c, scene, t, hover)
	r.drawLegend(c)
}

// drawGrid draws uniform reference lines across the padded box. The grid is
// anchored to the viewport, independent of zoom and pan.
func (r *Renderer) drawGrid(c Canvas, t Transform) {
	left, right := t.Padding, t.Width-t.Padding
	top, bottom := t.Padding, t.Height-t.Padding
	if right <= left || bottom <= top {
		return
	}
	for i := 0; i <= gridLines; i++ {
		frac := float64(i) / gridLines
		x := left + frac*(right-left)
		for y := top; y <= bottom; y++ {
			c.Plot(round(x), round(y), glyphGrid, LayerGrid)
		}
		y := top + frac*(bottom-top)
		for x := left; x <= right; x++ {
			c.Plot(round(x), round(y), glyphGrid, LayerGrid)
		}
	}
}

func (r *Renderer) drawPoints(c Canvas, scene *Scene, t Transform) {
	for i := range scene.Points {
		p := &scene.Points[i]
		if p.IsSearchResult {
			continue
		}
		dx, dy := t.ToDevice(p.X, p.Y)
		c.Plot(round(dx), round(dy), glyphPoint, LayerPoint)
	}
}

func (r *Renderer) drawHighlights(c Canvas, scene *Scene, t Transform) {
	for i := range scene.Points {
		p := &scene.Points[i]
		if !p.IsSearchResult {
			continue
		}
		dx, dy := t.ToDevice(p.X, p.Y)
		x, y := round(dx), round(dy)
		for _, off := range haloOffsets {
			c.Plot(x+off[0], y+off[1], glyphHalo, LayerHalo)
		}
		c.Plot(x, y, glyphHighlight, LayerHighlight)
		c.Text(x+2, y, fmt.Sprintf("%.3f", p.Score), LayerLabel)
	}
}

// haloOffsets are the cells surrounding a highlighted marker.
var haloOffsets = [][2]int{
	{-1, -1}, {0, -1}, {1, -1},
	{-1, 0}, {1, 0},
	{-1, 1}, {0, 1}, {1, 1},
}

func (r *Renderer) drawQuery(c Canvas, scene *Scene, t Transform) {
	if scene.QueryPoint == nil {
		return
	}
	dx, dy := t.ToDevice(scene.QueryPoint.X, scene.QueryPoint.Y)
	x, y := round(dx), round(dy)
	c.Plot(x, y, glyphQuery, LayerQuery)
	c.Text(x+2, y, "query", LayerLabel)
}

func (r *Renderer) drawHover(c Canvas, scene *Scene, t Transform, hover int) {
	if hover < 0 || hover >= len(scene.Points) {
		return
	}
	p := &scene.Points[hover]
	dx, dy := t.ToDevice(p.X, p.Y)
	x, y := round(dx), round(dy)
	for _, off := range haloOffsets {
		c.Plot(x+off[0], y+off[1], glyphHover, LayerHover)
	}

	lines := hoverPanelLines(p)
	panelW := 0
	for _, l := range lines {
		if len(l) > panelW {
			panelW = len(l)
		}
	}

	// Anchor the panel beside the point, clamped inside the viewport.
	w, h := c.Size()
	px, py := x+3, y-1
	if px+panelW > w {
		px = x - 3 - panelW
	}
	if px < 0 {
		px = 0
	}
	if py+len(lines) > h {
		py = h - len(lines)
	}
	if py < 0 {
		py = 0
	}
	for i, l := range lines {
		c.Text(px, py+i, l, LayerLabel)
	}
}

// hoverPanelLines builds the info panel: id, dimension count, truncated
// metadata, and the score for highlighted results.
func hoverPanelLines(p *ProjectedPoint) []string {
	lines := []string{
		fmt.Sprintf("id: %d", p.ID),
		fmt.Sprintf("dims: %d", len(p.Vector)),
	}
	if p.IsSearchResult {
		lines = append(lines, fmt.Sprintf("score: %.4f", p.Score))
	}
	if len(p.Metadata) > 0 {
		keys := make([]string, 0, len(p.Metadata))
		for k := range p.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = fmt.Sprintf("%s=%v", k, p.Metadata[k])
		}
		meta := strings.Join(parts, " ")
		if len(meta) > metadataPreviewLen {
			cut := metadataPreviewLen
			// Back up to a rune boundary.
			for cut > 0 && !utf8.RuneStart(meta[cut]) {
				cut--
			}
			meta = meta[:cut] + "…"
		}
		lines = append(lines, meta)
	}
	return lines
}

func (r *Renderer) drawLegend(c Canvas) {
	legend := []string{
		string(glyphPoint) + " vector",
		string(glyphHighlight) + " match",
		string(glyphQuery) + " query",
	}
	for i, l := range legend {
		c.Text(1, 1+i, l, LayerLegend)
	}
}

func round(f float64) int {
	return int(math.Round(f))
}

package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/hyperjump/mieru/internal/viz"
)

// Styles holds the TUI styling definitions, one per canvas layer plus the
// chrome around the plot.
type Styles struct {
	// Canvas layers
	Grid      lipgloss.Style
	Point     lipgloss.Style
	Highlight lipgloss.Style
	Halo      lipgloss.Style
	Query     lipgloss.Style
	Hover     lipgloss.Style
	Label     lipgloss.Style
	Legend    lipgloss.Style

	// Chrome
	StatusBar lipgloss.Style
	Title     lipgloss.Style
	InputHint lipgloss.Style
	Error     lipgloss.Style
	Detail    lipgloss.Style
}

// DefaultStyles creates the default style set using the default renderer.
func DefaultStyles() Styles {
	return NewStyles(lipgloss.DefaultRenderer())
}

// NewStyles creates the style set using the given renderer.
func NewStyles(r *lipgloss.Renderer) Styles {
	return Styles{
		Grid: r.NewStyle().
			Foreground(lipgloss.Color("238")),
		Point: r.NewStyle().
			Foreground(lipgloss.Color("75")),
		Highlight: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212")),
		Halo: r.NewStyle().
			Foreground(lipgloss.Color("96")),
		Query: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("220")),
		Hover: r.NewStyle().
			Foreground(lipgloss.Color("255")),
		Label: r.NewStyle().
			Foreground(lipgloss.Color("252")),
		Legend: r.NewStyle().
			Foreground(lipgloss.Color("245")),

		StatusBar: r.NewStyle().
			Foreground(lipgloss.Color("252")).
			Background(lipgloss.Color("236")).
			Padding(0, 1),
		Title: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("213")),
		InputHint: r.NewStyle().
			Foreground(lipgloss.Color("245")),
		Error: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196")),
		Detail: r.NewStyle().
			Foreground(lipgloss.Color("252")),
	}
}

// layerStyle maps a canvas layer to its style.
func (s Styles) layerStyle(l viz.Layer) lipgloss.Style {
	switch l {
	case viz.LayerGrid:
		return s.Grid
	case viz.LayerPoint:
		return s.Point
	case viz.LayerHighlight:
		return s.Highlight
	case viz.LayerHalo:
		return s.Halo
	case viz.LayerQuery:
		return s.Query
	case viz.LayerHover:
		return s.Hover
	case viz.LayerLabel:
		return s.Label
	case viz.LayerLegend:
		return s.Legend
	default:
		return s.Label
	}
}

package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/hyperjump/mieru/internal/config"
	"github.com/hyperjump/mieru/internal/projection"
	"github.com/hyperjump/mieru/internal/search"
	"github.com/hyperjump/mieru/internal/storage"
	"github.com/hyperjump/mieru/internal/viz"
)

// pixelsPerCell approximates how many device pixels a terminal cell covers.
// The viz config expresses padding and hit radius in pixels; the cell
// canvas needs them in cells.
const pixelsPerCell = 10.0

// Run starts the interactive collection explorer and blocks until it exits.
func Run(store storage.Storage, engine *search.Engine, cfg *config.Config, collection string) error {
	projector := projection.NewEngine(projection.WithIterations(cfg.Viz.Iterations))
	scene := viz.NewScene(projector)

	model := NewModel(ModelConfig{
		Storage:    store,
		Engine:     engine,
		Scene:      scene,
		Collection: collection,
		Padding:    cfg.Viz.Padding / pixelsPerCell,
		HitRadius:  cfg.Viz.HitRadius / pixelsPerCell,
	})

	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("explorer error: %w", err)
	}
	return nil
}

package tui

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hyperjump/mieru/internal/models"
	"github.com/hyperjump/mieru/internal/search"
	"github.com/hyperjump/mieru/internal/storage"
	"github.com/hyperjump/mieru/internal/viz"
)

// arrowPanStep is the pan distance per arrow key press, in cells.
const arrowPanStep = 2.0

// metadataValueLen caps a metadata value in the detail panel.
const metadataValueLen = 32

// ModelConfig holds the dependencies and tuning for the explorer model.
type ModelConfig struct {
	Storage    storage.Storage
	Engine     *search.Engine
	Scene      *viz.Scene
	Collection string
	// Padding and HitRadius are in cells. The config file expresses them in
	// device pixels; Run scales them down before constructing the model.
	Padding   float64
	HitRadius float64
	// Renderer is the Lip Gloss renderer to use for styling. If nil, the
	// default renderer (local terminal) is used.
	Renderer *lipgloss.Renderer
}

// selection is shared across model copies so the scene's activation
// callback can reach the current model value.
type selection struct {
	rec *models.VectorRecord
}

// Model is the root Bubble Tea model for the collection explorer.
type Model struct {
	config      ModelConfig
	styles      Styles
	scene       *viz.Scene
	interaction *viz.Interaction
	renderer    *viz.Renderer
	canvas      *CellCanvas
	input       textinput.Model
	sel         *selection

	width  int
	height int
	hover  int

	// Pointer state for click-vs-drag disambiguation.
	pressed bool
	moved   bool

	searching    bool
	resultCount  int
	inputFocused bool
	quitting     bool
	err          error
}

// NewModel creates the explorer model around an already-loaded scene.
func NewModel(config ModelConfig) Model {
	r := config.Renderer
	if r == nil {
		r = lipgloss.DefaultRenderer()
	}
	styles := NewStyles(r)

	ti := textinput.New()
	ti.Placeholder = "similarity query..."
	ti.CharLimit = 256
	ti.Prompt = "/ "

	interaction := viz.NewInteraction()
	if config.HitRadius > 0 {
		interaction.HitRadius = config.HitRadius
	}

	sel := &selection{}
	config.Scene.OnActivate(func(rec *models.VectorRecord) {
		sel.rec = rec
	})

	return Model{
		config:      config,
		styles:      styles,
		scene:       config.Scene,
		interaction: interaction,
		renderer:    &viz.Renderer{},
		canvas:      NewCellCanvas(80, 24),
		input:       ti,
		sel:         sel,
		hover:       -1,
	}
}

type recordsLoadedMsg struct {
	records []*models.VectorRecord
}

type searchDoneMsg struct {
	response *models.SimilarityResponse
}

type errMsg struct {
	err error
}

// Init loads the collection.
func (m Model) Init() tea.Cmd {
	return m.loadRecordsCmd()
}

func (m Model) loadRecordsCmd() tea.Cmd {
	store, collection := m.config.Storage, m.config.Collection
	return func() tea.Msg {
		recs, err := store.ListVectors(context.Background(), collection, 0, 0)
		if err != nil {
			return errMsg{err}
		}
		return recordsLoadedMsg{records: recs}
	}
}

func (m Model) searchCmd(text string) tea.Cmd {
	engine, collection := m.config.Engine, m.config.Collection
	return func() tea.Msg {
		resp, err := engine.Search(context.Background(), &models.SimilarityQuery{
			Collection: collection,
			Text:       text,
		})
		if err != nil {
			return errMsg{err}
		}
		return searchDoneMsg{response: resp}
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.canvas.Resize(m.width, m.canvasHeight())
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		return m.handleMouse(msg)

	case recordsLoadedMsg:
		m.err = nil
		m.scene.SetRecords(msg.records)
		m.scene.Recompute()
		m.hover = -1
		return m, nil

	case searchDoneMsg:
		m.searching = false
		m.err = nil
		m.resultCount = len(msg.response.Results)
		m.scene.SetResults(msg.response.Results)
		m.scene.SetQuery(msg.response.Query)
		m.scene.Recompute()
		return m, nil

	case errMsg:
		m.searching = false
		m.err = msg.err
		return m, nil
	}

	if m.inputFocused {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.inputFocused {
		switch msg.String() {
		case "enter":
			text := strings.TrimSpace(m.input.Value())
			m.inputFocused = false
			m.input.Blur()
			if text == "" {
				return m, nil
			}
			m.searching = true
			return m, m.searchCmd(text)
		case "esc":
			m.inputFocused = false
			m.input.Blur()
			return m, nil
		default:
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			return m, cmd
		}
	}

	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "/":
		m.inputFocused = true
		m.input.Focus()
		return m, textinput.Blink

	case "esc":
		// Clear selection first, then search state.
		if m.sel.rec != nil {
			m.sel.rec = nil
			return m, nil
		}
		m.resultCount = 0
		m.input.Reset()
		m.scene.SetResults(nil)
		m.scene.SetQuery(nil)
		m.scene.Recompute()
		return m, nil

	case "+", "=":
		m.interaction.ZoomIn()
	case "-":
		m.interaction.ZoomOut()
	case "r":
		m.interaction.Reset()
	case "left":
		m.interaction.View.PanX += arrowPanStep
	case "right":
		m.interaction.View.PanX -= arrowPanStep
	case "up":
		m.interaction.View.PanY += arrowPanStep
	case "down":
		m.interaction.View.PanY -= arrowPanStep
	}
	return m, nil
}

func (m Model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	x, y := float64(msg.X), float64(msg.Y)
	if msg.Y >= m.canvasHeight() {
		// Below the plot; end any drag so the pan doesn't jump later.
		m.interaction.PointerLeave()
		m.pressed = false
		return m, nil
	}

	switch msg.Button {
	case tea.MouseButtonWheelUp:
		m.interaction.WheelZoom(true)
		return m, nil
	case tea.MouseButtonWheelDown:
		m.interaction.WheelZoom(false)
		return m, nil
	}

	switch msg.Action {
	case tea.MouseActionPress:
		if msg.Button == tea.MouseButtonLeft {
			m.pressed = true
			m.moved = false
			m.interaction.PointerDown(x, y)
		}

	case tea.MouseActionMotion:
		if m.interaction.PointerMove(x, y) {
			m.moved = true
		} else {
			m.hover = viz.HitTest(x, y, m.scene.Points, m.transform(), m.interaction.HitRadius)
		}

	case tea.MouseActionRelease:
		m.interaction.PointerUp()
		if m.pressed && !m.moved {
			if hit := viz.HitTest(x, y, m.scene.Points, m.transform(), m.interaction.HitRadius); hit >= 0 {
				m.scene.Activate(hit)
			}
		}
		m.pressed = false
	}
	return m, nil
}

// canvasHeight is the plot area height: everything except the input line
// and the status bar.
func (m Model) canvasHeight() int {
	h := m.height - 2
	if h < 1 {
		h = 1
	}
	return h
}

func (m Model) transform() viz.Transform {
	w, h := m.canvas.Size()
	padding := m.config.Padding
	if padding <= 0 {
		padding = 3
	}
	return viz.Transform{
		Bounds:  viz.BoundsOf(m.scene.Points, m.scene.QueryPoint),
		Width:   float64(w),
		Height:  float64(h),
		Padding: padding,
		View:    m.interaction.View,
	}
}

// View renders the plot, the query input line, and the status bar.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	m.renderer.Render(m.canvas, m.scene, m.transform(), m.hover)
	if m.sel.rec != nil {
		m.drawDetail(m.sel.rec)
	}
	plot := m.canvas.View(m.styles)

	var inputLine string
	if m.inputFocused {
		inputLine = m.input.View()
	} else {
		inputLine = m.styles.InputHint.Render(
			"/ search   +/- zoom   arrows pan   r reset   esc clear   q quit")
	}

	return lipgloss.JoinVertical(lipgloss.Left, plot, inputLine, m.statusLine())
}

// drawDetail paints the activated record's panel into the top-right corner
// of the canvas, over the plot.
func (m Model) drawDetail(rec *models.VectorRecord) {
	lines := []string{
		fmt.Sprintf("record %d", rec.ID),
		fmt.Sprintf("dims %d", len(rec.Vector)),
	}
	for _, kv := range metadataLines(rec.Metadata, 4) {
		lines = append(lines, kv)
	}
	lines = append(lines, "esc to close")

	w, _ := m.canvas.Size()
	panelW := 0
	for _, l := range lines {
		if len(l) > panelW {
			panelW = len(l)
		}
	}
	x := w - panelW - 1
	if x < 0 {
		x = 0
	}
	for i, l := range lines {
		m.canvas.Text(x, 1+i, l, viz.LayerLabel)
	}
}

func (m Model) statusLine() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %d records  zoom %.1fx",
		m.config.Collection, len(m.scene.Points), m.interaction.View.Zoom)
	if m.searching {
		b.WriteString("  searching...")
	} else if m.resultCount > 0 {
		fmt.Fprintf(&b, "  %d matches", m.resultCount)
	}
	if m.hover >= 0 && m.hover < len(m.scene.Points) {
		fmt.Fprintf(&b, "  hover id %d", m.scene.Points[m.hover].ID)
	}
	if m.err != nil {
		return m.styles.StatusBar.Width(m.width).Render(
			m.styles.Error.Render("error: "+m.err.Error()) + "  " + b.String())
	}
	return m.styles.StatusBar.Width(m.width).Render(b.String())
}

// metadataLines formats up to max metadata entries as key=value lines.
func metadataLines(meta map[string]interface{}, max int) []string {
	if len(meta) == 0 {
		return nil
	}
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) > max {
		keys = keys[:max]
	}
	lines := make([]string, len(keys))
	for i, k := range keys {
		v := fmt.Sprintf("%v", meta[k])
		if len(v) > metadataValueLen {
			cut := metadataValueLen
			// Back up to a rune boundary.
			for cut > 0 && !utf8.RuneStart(v[cut]) {
				cut--
			}
			v = v[:cut] + "…"
		}
		lines[i] = k + "=" + v
	}
	return lines
}

// Package plot draws a live spike raster in the terminal.
package plot

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/exp/slices"

	"spikeplot.dev/spikeplot/client"
	"spikeplot.dev/spikeplot/config"
	"spikeplot.dev/spikeplot/raster"
)

const defaultWidth = 80

// Options configure a Model.
type Options struct {
	Title  string
	Addr   string
	Names  []string
	Window int
	Rate   int
	// ShowCounts adds the latest count next to each label.
	ShowCounts bool
	// Live freezes the raster while the proxy is away instead of quitting.
	Live  bool
	Style *config.PlotStyle
}

// tickMsg advances the animation.
type tickMsg time.Time

// Model implements tea.Model.
type Model struct {
	opts   Options
	styles styles
	raster *raster.Raster

	state client.State
	width int
	err   error
	done  bool
}

var _ tea.Model = Model{}

// New builds a Model. Until the proxy sends a header the rows are the
// requested names.
func New(opts Options) (Model, error) {
	if opts.Style == nil {
		opts.Style = &config.PlotStyle{}
		opts.Style.ApplyDefaults()
	}
	st, err := newStyles(opts.Style)
	if err != nil {
		return Model{}, err
	}
	return Model{
		opts:   opts,
		styles: st,
		raster: raster.New(opts.Names, opts.Window, opts.Rate),
		state:  client.Waiting,
		width:  defaultWidth,
	}, nil
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(time.Second/time.Duration(m.raster.Rate), func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Init implements the tea.Model interface
func (m Model) Init() tea.Cmd {
	return m.tick()
}

// Update implements the tea.Model interface and runs the animation loop
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.raster.Step()
		return m, m.tick()
	case client.HeaderMsg:
		if !slices.Equal(msg.Names, m.names()) {
			m.raster = raster.New(msg.Names, m.raster.Window, m.raster.Rate)
		}
		return m, nil
	case client.FrameMsg:
		m.raster.Update(msg.Counts)
		return m, nil
	case client.StatusMsg:
		m.state = msg.State
		switch msg.State {
		case client.Connected:
			m.raster.Freeze(false)
		case client.Disconnected:
			if !m.opts.Live {
				m.done = true
				return m, tea.Quit
			}
			m.raster.Freeze(true)
		}
		return m, nil
	case client.ErrMsg:
		m.err = msg.Err
		m.done = true
		return m, tea.Quit
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, tea.ClearScreen
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.done = true
			return m, tea.Quit
		case "c":
			m.raster.Reset()
			return m, nil
		}
	}
	return m, nil
}

// Err returns the error that ended the plot, if any.
func (m Model) Err() error {
	return m.err
}

// Done reports whether the plot asked to quit.
func (m Model) Done() bool {
	return m.done
}

func (m Model) names() []string {
	out := make([]string, len(m.raster.Trains))
	for i, t := range m.raster.Trains {
		out[i] = t.Name
	}
	return out
}

func (m Model) labelWidth() int {
	w := 0
	for _, t := range m.raster.Trains {
		if l := lipgloss.Width(t.Name); l > w {
			w = l
		}
	}
	return w
}

// columns is the number of raster cells that fit next to the labels.
func (m Model) columns(labelWidth int) int {
	w := m.width - labelWidth - 4
	if m.opts.ShowCounts {
		w -= 4
	}
	if w > m.raster.Window {
		w = m.raster.Window
	}
	if w < 1 {
		w = 1
	}
	return w
}

// row renders one train; glyphs are left unstyled when plain is set.
func (m Model) row(t *raster.Train, labelWidth, width int, plain bool) string {
	var b strings.Builder
	for _, on := range m.raster.Columns(t, width) {
		if on {
			b.WriteString(m.styles.glyph)
		} else {
			b.WriteByte(' ')
		}
	}
	label := fmt.Sprintf("%*s", labelWidth, t.Name)
	count := ""
	if m.opts.ShowCounts {
		count = fmt.Sprintf(" %3d", t.Count)
	}
	cells := b.String()
	if !plain {
		label = m.styles.label.Render(label)
		count = m.styles.count.Render(count)
		cells = m.styles.spike.Render(cells)
	}
	return label + count + " │" + cells
}

func (m Model) statusLine() string {
	switch {
	case m.err != nil:
		return m.err.Error()
	case m.state == client.Waiting:
		return fmt.Sprintf("waiting for server %s to start", m.opts.Addr)
	case m.state == client.Connected:
		return fmt.Sprintf("connected to %s", m.opts.Addr)
	case m.raster.Frozen():
		return fmt.Sprintf("server %s quit, waiting for it to restart", m.opts.Addr)
	default:
		return fmt.Sprintf("disconnected from %s", m.opts.Addr)
	}
}

func (m Model) render(plain bool) string {
	lw := m.labelWidth()
	width := m.columns(lw)
	title := m.opts.Title
	if !plain {
		title = m.styles.title.Render(title)
	}
	lines := []string{title, ""}
	for i, t := range m.raster.Trains {
		if i > 0 {
			for j := 0; j < m.styles.spacing; j++ {
				lines = append(lines, "")
			}
		}
		lines = append(lines, m.row(t, lw, width, plain))
	}
	axis := fmt.Sprintf("%*s └%s", lw, "", strings.Repeat("─", width))
	window := fmt.Sprintf("%*s  %s", lw, "", m.raster.WindowLabel())
	status := m.statusLine()
	if !plain {
		switch {
		case m.err != nil:
			status = errorStyle.Render(status)
		case m.raster.Frozen():
			status = frozenStyle.Render(status)
		default:
			status = m.styles.status.Render(status)
		}
	}
	lines = append(lines, axis, window, "", status)
	return strings.Join(lines, "\n")
}

// View renders the UI with the data contained in model
func (m Model) View() string {
	return frameStyle.Render(m.render(false))
}

// Plain renders the raster without colors for non-terminal output.
func (m Model) Plain() string {
	return m.render(true)
}

package plot

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"
	"gopkg.in/go-playground/colors.v1"

	"spikeplot.dev/spikeplot/config"
)

// These colors are from the gruvbox vim theme
// https://github.com/morhetz/gruvbox
var fg = lipgloss.AdaptiveColor{
	Light: "#3c3836",
	Dark:  "#ebdbb2",
}
var red = lipgloss.Color("#cc241d")
var orange = lipgloss.Color("#d65d0e")

var baseStyle = lipgloss.NewStyle().
	Foreground(fg)

var frameStyle = lipgloss.
	NewStyle().
	MarginLeft(2).
	MarginTop(1)

var errorStyle = baseStyle.
	Foreground(red).
	Bold(true)

var frozenStyle = baseStyle.
	Foreground(orange).
	Italic(true)

type styles struct {
	title  lipgloss.Style
	spike  lipgloss.Style
	label  lipgloss.Style
	count  lipgloss.Style
	status lipgloss.Style

	glyph   string
	spacing int
}

// color converts any notation understood by go-playground/colors into a
// lipgloss color.
func color(name, value string) (lipgloss.Color, error) {
	c, err := colors.Parse(value)
	if err != nil {
		return "", errors.Wrapf(err, "style %s: bad color %q", name, value)
	}
	return lipgloss.Color(c.ToHEX().String()), nil
}

func newStyles(s *config.PlotStyle) (styles, error) {
	out := styles{glyph: s.Glyph, spacing: s.Spacing}
	if out.spacing < 0 {
		out.spacing = 0
	}
	for _, c := range []struct {
		name  string
		value string
		dst   *lipgloss.Style
		bold  bool
	}{
		{"title", s.Title, &out.title, true},
		{"spike", s.Spike, &out.spike, false},
		{"label", s.Label, &out.label, true},
		{"count", s.Count, &out.count, false},
		{"status", s.Status, &out.status, false},
	} {
		col, err := color(c.name, c.value)
		if err != nil {
			return styles{}, err
		}
		*c.dst = baseStyle.Foreground(col).Bold(c.bold)
	}
	return out, nil
}

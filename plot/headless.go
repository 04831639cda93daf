package plot

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
)

// Interactive reports whether f is a terminal the TUI can draw on.
func Interactive(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Headless drives a Model without a terminal and prints a plain snapshot of
// the raster every interval. It implements client.Sink.
type Headless struct {
	model    Model
	out      io.Writer
	interval time.Duration

	msgs chan tea.Msg
	done chan struct{}
}

// NewHeadless returns a driver for m writing to out.
func NewHeadless(m Model, out io.Writer, interval time.Duration) *Headless {
	if interval <= 0 {
		interval = time.Second
	}
	return &Headless{
		model:    m,
		out:      out,
		interval: interval,
		msgs:     make(chan tea.Msg, 64),
		done:     make(chan struct{}),
	}
}

// Send queues msg for the model. Messages sent after Run returned are
// discarded.
func (h *Headless) Send(msg tea.Msg) {
	select {
	case h.msgs <- msg:
	case <-h.done:
	}
}

// Run animates the model until it quits or ctx is done, and returns the
// final model.
func (h *Headless) Run(ctx context.Context) (Model, error) {
	defer close(h.done)
	step := time.NewTicker(time.Second / time.Duration(h.model.raster.Rate))
	defer step.Stop()
	snapshot := time.NewTicker(h.interval)
	defer snapshot.Stop()
	for {
		select {
		case <-ctx.Done():
			return h.model, nil
		case t := <-step.C:
			h.update(tickMsg(t))
		case <-snapshot.C:
			if _, err := fmt.Fprintf(h.out, "%s\n\n", h.model.Plain()); err != nil {
				return h.model, err
			}
		case msg := <-h.msgs:
			h.update(msg)
		}
		if h.model.Done() {
			fmt.Fprintf(h.out, "%s\n", h.model.Plain())
			return h.model, nil
		}
	}
}

// update applies msg, dropping the returned command: ticks come from Run.
func (h *Headless) update(msg tea.Msg) {
	m, _ := h.model.Update(msg)
	h.model = m.(Model)
}

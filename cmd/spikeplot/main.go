package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"spikeplot.dev/spikeplot/client"
	"spikeplot.dev/spikeplot/common"
	"spikeplot.dev/spikeplot/flags"
	"spikeplot.dev/spikeplot/plot"
	"spikeplot.dev/spikeplot/wire"
)

func main() {
	os.Exit(run())
}

func run() int {
	f, err := flags.ParsePlotArgs(os.Args)
	if err != nil {
		logrus.Error(err)
		return 2
	}
	common.ConfigureLogging(f.Verbose)

	style, err := flags.LoadPlotStyleFromFlags(f)
	if err != nil {
		logrus.Errorf("error loading style: %s", err)
		return 1
	}

	interactive := plot.Interactive(os.Stdout)
	if interactive {
		// the TUI owns the terminal
		closeLog, err := common.RedirectLogging()
		if err != nil {
			logrus.Error(err)
			return 1
		}
		defer closeLog()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := &client.Client{Addr: f.Addr(), Names: f.Names(), Live: f.Live}

	m, err := plot.New(plot.Options{
		Title:      f.Title,
		Addr:       c.Addr,
		Names:      f.Names(),
		Window:     f.Window,
		Rate:       f.Rate,
		ShowCounts: f.Display,
		Live:       f.Live,
		Style:      style,
	})
	if err != nil {
		logrus.Error(err)
		return 1
	}

	var sink client.Sink
	var p *tea.Program
	var h *plot.Headless
	if interactive {
		p = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
		sink = p
	} else {
		h = plot.NewHeadless(m, os.Stdout, time.Second)
		sink = h
	}

	// Without -n nothing is drawn until the proxy answered.
	if !f.NonBlocking {
		fmt.Fprintf(os.Stderr, "waiting for server %s to start\n", c.Addr)
	}
	if _, err := c.Start(ctx, f.NonBlocking, sink); err != nil {
		return report(err)
	}

	var final plot.Model
	if interactive {
		out, err := p.Run()
		if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			logrus.Error(err)
			return 1
		}
		final, _ = out.(plot.Model)
	} else {
		final, err = h.Run(ctx)
		if err != nil {
			logrus.Error(err)
			return 1
		}
	}
	if err := final.Err(); err != nil {
		return report(err)
	}
	return 0
}

// report prints why the plotter gives up.
func report(err error) int {
	if errors.Is(err, context.Canceled) {
		return 0
	}
	var refused *wire.RemoteError
	if errors.As(err, &refused) {
		fmt.Fprintf(os.Stderr, "%s; quitting\n", refused.Reason)
		return 1
	}
	fmt.Fprintf(os.Stderr, "%s\n", err)
	return 1
}

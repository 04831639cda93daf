package flags

import (
	"flag"

	"github.com/pkg/errors"

	"spikeplot.dev/spikeplot/common"
	"spikeplot.dev/spikeplot/config"
	"spikeplot.dev/spikeplot/core"
	"spikeplot.dev/spikeplot/neurons"
)

// PlotFlags holds CLI args for spikeplot. The letters match spikeplot.py so
// existing launch scripts keep working.
type PlotFlags struct {
	StylePath string

	Host        string
	Port        int
	IDs         string
	NonBlocking bool
	Window      int
	Live        bool
	Display     bool
	Title       string
	Rate        int
	Verbose     bool
}

func definePlotFlags(fs *flag.FlagSet, f *PlotFlags) {
	fs.StringVar(&f.Host, "a", common.DefaultProxyHost, "proxy address")
	fs.IntVar(&f.Port, "p", common.DefaultProxyPort, "proxy port")
	fs.StringVar(&f.IDs, "i", neurons.SelectAll, "comma separated neuron names to plot, or all")
	fs.BoolVar(&f.NonBlocking, "n", false, "open the display at once and connect in the background")
	fs.IntVar(&f.Window, "s", common.DefaultWindow, "window size in ticks")
	fs.BoolVar(&f.Live, "l", false, "keep running and reconnect when the proxy restarts")
	fs.BoolVar(&f.Display, "d", false, "display spike counts next to neuron names")
	fs.StringVar(&f.Title, "t", "Spikes", "plot title")
	fs.IntVar(&f.Rate, "r", common.DefaultTickRate, "animation ticks per second")
	fs.StringVar(&f.StylePath, "C", "", "path to plot style (uses ~/.spikeplot/plot.toml when unspecified)")
	fs.BoolVar(&f.Verbose, "V", false, "display verbose log messages")
}

// ParsePlotArgs defines and parses the flags from the command line for
// spikeplot
func ParsePlotArgs(args []string) (*PlotFlags, error) {
	f := new(PlotFlags)
	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)
	definePlotFlags(fs, f)

	if err := fs.Parse(args[1:]); err != nil {
		return nil, err
	}
	if err := noArgs(fs.Args()); err != nil {
		return nil, err
	}
	if f.Port < 1 || f.Port > 65535 {
		return nil, errors.Errorf("invalid port %d", f.Port)
	}
	if f.Window < 1 {
		return nil, errors.Errorf("window must be positive, got %d", f.Window)
	}
	if f.Rate < 1 {
		return nil, errors.Errorf("rate must be positive, got %d", f.Rate)
	}
	return f, nil
}

// Addr returns the proxy address as host:port.
func (f *PlotFlags) Addr() string {
	return core.ServerAddress(f.Host, f.Port)
}

// Names returns the requested neuron names, or nil for all of them.
func (f *PlotFlags) Names() []string {
	return neurons.SplitRequest(f.IDs)
}

// LoadPlotStyleFromFlags reads the style named by the flags (or the default).
func LoadPlotStyleFromFlags(f *PlotFlags) (*config.PlotStyle, error) {
	return config.LoadPlotStyle(f.StylePath)
}

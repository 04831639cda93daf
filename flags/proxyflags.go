package flags

import (
	"flag"

	"github.com/pkg/errors"

	"spikeplot.dev/spikeplot/config"
)

// ProxyFlags holds CLI args for spikeproxy.
type ProxyFlags struct {
	ConfigPath string

	Listen      string
	Source      string
	NeuronCount int
	Network     string
	Channels    []string
	Status      string
	Legacy      string
	Verbose     bool
}

func defineProxyFlags(fs *flag.FlagSet, f *ProxyFlags) {
	fs.StringVar(&f.ConfigPath, "C", "", "path to proxy config (uses ~/.spikeplot/proxy.toml when unspecified)")
	fs.StringVar(&f.Listen, "l", "", "address plotters connect to (default localhost:5000)")
	fs.StringVar(&f.Source, "source", "", "where frames come from: tcp://host:port, listen://host:port, serial:///dev/tty?baud=N, rfcomm://MAC/channel or sim://")
	fs.IntVar(&f.NeuronCount, "n", 0, "number of neurons, named n0..n<count-1>")
	fs.StringVar(&f.Network, "f", "", "network description (JSON or YAML) naming the neurons")
	fs.Func("c", "channel `name`, repeat for each channel", func(s string) error {
		if s == "" {
			return errors.New("empty channel name")
		}
		f.Channels = append(f.Channels, s)
		return nil
	})
	fs.StringVar(&f.Status, "status", "", "serve HTTP status on this address")
	fs.StringVar(&f.Legacy, "legacy", "", "forward raw frames to unmodified plotters on this address")
	fs.BoolVar(&f.Verbose, "V", false, "display verbose log messages")
}

// ParseProxyArgs defines and parses the flags from the cmd line for spikeproxy
func ParseProxyArgs(args []string) (*ProxyFlags, error) {
	f := new(ProxyFlags)
	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)
	defineProxyFlags(fs, f)

	if err := fs.Parse(args[1:]); err != nil {
		return nil, err
	}
	if err := noArgs(fs.Args()); err != nil {
		return nil, err
	}
	return f, nil
}

// mergeProxyFlagsAndConfig lets every flag that was given override the file.
// Channel names, a network or a neuron count on the command line replace any
// channel list from the file.
func mergeProxyFlagsAndConfig(f *ProxyFlags, pc *config.ProxyConfig) {
	if f.Listen != "" {
		pc.ListenAddress = f.Listen
	}
	if f.Source != "" {
		pc.Source = f.Source
	}
	if f.Network != "" {
		pc.Channels = nil
		pc.Network = f.Network
		pc.NeuronCount = 0
	}
	if f.NeuronCount > 0 {
		pc.Channels = nil
		pc.Network = ""
		pc.NeuronCount = f.NeuronCount
	}
	if len(f.Channels) > 0 {
		pc.Channels = f.Channels
		pc.Network = ""
		pc.NeuronCount = 0
	}
	if f.Status != "" {
		pc.StatusAddress = f.Status
	}
	if f.Legacy != "" {
		pc.LegacyAddress = f.Legacy
	}
}

// LoadProxyConfigFromFlags follows the config path provided in flags (or
// default) and applies the flag overrides.
func LoadProxyConfigFromFlags(f *ProxyFlags) (*config.ProxyConfig, error) {
	pc, err := config.LoadProxyConfig(f.ConfigPath)
	if err != nil {
		return nil, err
	}
	mergeProxyFlagsAndConfig(f, pc)
	if err := pc.Validate(); err != nil {
		return nil, err
	}
	return pc, nil
}

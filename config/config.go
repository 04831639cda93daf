// Package config contains structures for parsing spikeplot proxy and plotter
// configurations.
package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"spikeplot.dev/spikeplot/common"
	"spikeplot.dev/spikeplot/core"
	"spikeplot.dev/spikeplot/neurons"
	"spikeplot.dev/spikeplot/pkg/combinators"
	"spikeplot.dev/spikeplot/pkg/thunks"
)

// Duration is a time.Duration that decodes from TOML strings such as "250ms".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// ProxyConfig represents a parsed proxy configuration.
type ProxyConfig struct {
	ListenAddress string `toml:"listen_address"`
	LegacyAddress string `toml:"legacy_address"`
	StatusAddress string `toml:"status_address"`

	Source string `toml:"source"`

	// Channel naming. Channels wins over Network, which wins over
	// NeuronCount.
	Channels      []string `toml:"channels"`
	Network       string   `toml:"network"`
	NeuronCount   int      `toml:"neuron_count"`
	ChannelPrefix string   `toml:"channel_prefix"`

	DialRetry        Duration `toml:"dial_retry"`
	HandshakeTimeout Duration `toml:"handshake_timeout"`
	FrameInterval    Duration `toml:"frame_interval"`
	ClientQueue      int      `toml:"client_queue"`
}

// PlotStyle holds the colors used by the plotter. Any color understood by
// go-playground/colors is accepted: "#458588", "rgb(69,133,136)", ...
type PlotStyle struct {
	Title   string `toml:"title"`
	Spike   string `toml:"spike"`
	Label   string `toml:"label"`
	Count   string `toml:"count"`
	Status  string `toml:"status"`
	Glyph   string `toml:"glyph"`
	Spacing int    `toml:"spacing"`
}

// ApplyDefaults fills every unset field of the proxy configuration.
func (c *ProxyConfig) ApplyDefaults() {
	c.ListenAddress = combinators.StringOr(c.ListenAddress, core.ServerAddress(common.DefaultProxyHost, common.DefaultProxyPort))
	c.Source = combinators.StringOr(c.Source, common.DefaultSource)
	c.ChannelPrefix = combinators.StringOr(c.ChannelPrefix, common.DefaultChannelPrefix)
	c.DialRetry.Duration = combinators.Or(c.DialRetry.Duration, common.DialRetryInterval)
	c.HandshakeTimeout.Duration = combinators.Or(c.HandshakeTimeout.Duration, common.HandshakeTimeout)
	c.FrameInterval.Duration = combinators.Or(c.FrameInterval.Duration, common.DefaultFrameInterval)
	c.ClientQueue = combinators.Or(c.ClientQueue, common.DefaultClientQueue)
	if len(c.Channels) == 0 && c.Network == "" {
		c.NeuronCount = combinators.Or(c.NeuronCount, common.DefaultNeuronCount)
	}
}

// Validate checks the proxy configuration after defaults were applied.
func (c *ProxyConfig) Validate() error {
	if _, err := core.ParseSource(c.Source); err != nil {
		return errors.Wrap(err, "invalid source")
	}
	if c.NeuronCount < 0 {
		return errors.Errorf("neuron_count must not be negative, got %d", c.NeuronCount)
	}
	if c.ClientQueue < 1 {
		return errors.Errorf("client_queue must be positive, got %d", c.ClientQueue)
	}
	if c.LegacyAddress != "" {
		s, _ := core.ParseSource(c.Source)
		if s.Scheme != core.SchemeTCP {
			return errors.Errorf("legacy_address needs a tcp:// source, have %s", s.Scheme)
		}
	}
	return nil
}

// ChannelSet builds the channel names the proxy serves.
func (c *ProxyConfig) ChannelSet() (*neurons.Set, error) {
	switch {
	case len(c.Channels) > 0:
		return neurons.NewSet(c.Channels)
	case c.Network != "":
		fd, err := fileSystem.Open(c.Network)
		if err != nil {
			return nil, errors.Wrap(err, "opening network")
		}
		defer fd.Close()
		n, err := neurons.DecodeNetwork(fd, c.Network)
		if err != nil {
			return nil, err
		}
		ids, err := n.Aliases()
		if err != nil {
			return nil, err
		}
		return neurons.NewSet(neurons.Names(c.ChannelPrefix, ids))
	default:
		return neurons.NewSet(neurons.Names(c.ChannelPrefix, neurons.Count(c.NeuronCount)))
	}
}

// ApplyDefaults fills every unset field of the style with the gruvbox
// palette.
func (s *PlotStyle) ApplyDefaults() {
	s.Title = combinators.StringOr(s.Title, "#d79921")
	s.Spike = combinators.StringOr(s.Spike, "#ebdbb2")
	s.Label = combinators.StringOr(s.Label, "#458588")
	s.Count = combinators.StringOr(s.Count, "#98971a")
	s.Status = combinators.StringOr(s.Status, "#928374")
	s.Glyph = combinators.StringOr(s.Glyph, "┃")
}

func decodeFile(path string, out any) error {
	b, err := readFile(path)
	if err != nil {
		return errors.Wrapf(err, "config load failed (%s)", path)
	}
	md, err := toml.Decode(string(b), out)
	if err != nil {
		return errors.Wrapf(err, "config parse failed (%s)", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return errors.Errorf("config parse failed (%s): unknown setting %q", path, undecoded[0].String())
	}
	return nil
}

// LoadProxyConfig reads the proxy configuration at path. An empty path reads
// the default location and tolerates its absence.
func LoadProxyConfig(path string) (*ProxyConfig, error) {
	c := new(ProxyConfig)
	optional := path == ""
	if optional {
		path = filepath.Join(UserDirectory(), common.ProxyConfigFile)
	}
	if err := decodeFile(path, c); err != nil {
		if !optional || !isNotExist(err) {
			return nil, err
		}
	}
	c.ApplyDefaults()
	return c, nil
}

// LoadPlotStyle reads the plot style at path. An empty path reads the default
// location and tolerates its absence.
func LoadPlotStyle(path string) (*PlotStyle, error) {
	s := new(PlotStyle)
	optional := path == ""
	if optional {
		path = filepath.Join(UserDirectory(), common.PlotStyleFile)
	}
	if err := decodeFile(path, s); err != nil {
		if !optional || !isNotExist(err) {
			return nil, err
		}
	}
	s.ApplyDefaults()
	return s, nil
}

var userDirectory string
var userDirectoryOnce sync.Once

func locateUserDirectory() {
	home, err := thunks.UserHomeDir()
	if err != nil {
		userDirectory = ""
		return
	}
	userDirectory = filepath.Join(home, common.UserConfigDirectory)
}

// UserDirectory returns the path to the spikeplot configuration directory for
// the current user.
func UserDirectory() string {
	userDirectoryOnce.Do(locateUserDirectory)
	return userDirectory
}

package common

import "time"

const (
	// UserConfigDirectory is the dirname of the directory holding the user
	// configuration for the spikeplot tools.
	UserConfigDirectory = ".spikeplot"

	// ProxyConfigFile is the name of the proxy configuration file inside the
	// UserConfigDirectory.
	ProxyConfigFile = "proxy.toml"

	// PlotStyleFile is the name of the plotter style file inside the
	// UserConfigDirectory.
	PlotStyleFile = "plot.toml"

	// DefaultProxyHost is the host the proxy listens on for plotters.
	DefaultProxyHost = "localhost"

	// DefaultProxyPort is the port the proxy listens on for plotters.
	DefaultProxyPort = 5000

	// DefaultSourcePort is the port the simulator serves raw frames on.
	DefaultSourcePort = 8100

	// DefaultSource is the upstream the proxy dials when nothing is configured.
	DefaultSource = "tcp://localhost:8100"

	// DefaultChannelPrefix is prepended to neuron ids to form channel names.
	DefaultChannelPrefix = "n"

	// DefaultNeuronCount is the number of channels the proxy exposes when no
	// network file, count, or channel list is configured.
	DefaultNeuronCount = 8

	// DefaultTickRate is the number of animation ticks per second.
	DefaultTickRate = 100

	// DefaultWindow is the raster width in ticks (one second at the default
	// rate).
	DefaultWindow = 100

	// DefaultSerialBaud is the baud rate used for serial sources.
	DefaultSerialBaud = 115200

	// DefaultRFCOMMChannel is the Bluetooth RFCOMM channel dialed when a
	// source names only a device address.
	DefaultRFCOMMChannel = 1
)

const (
	// DialRetryInterval is the pause between connection attempts to a server
	// that is not up yet.
	DialRetryInterval = time.Second

	// HandshakeTimeout bounds how long the proxy waits for a Subscribe.
	HandshakeTimeout = 5 * time.Second

	// DefaultFrameInterval is the publish period for serial and synthetic
	// sources.
	DefaultFrameInterval = 100 * time.Millisecond

	// DefaultClientQueue is the number of frames buffered per subscriber.
	DefaultClientQueue = 64

	// DefaultStopGrace is how long background processes get between SIGTERM
	// and SIGKILL.
	DefaultStopGrace = 3 * time.Second

	// DefaultReadyTimeout bounds a readiness wait in the launcher.
	DefaultReadyTimeout = 10 * time.Second
)

// Environment variables understood by every command.
const (
	EnvLogLevel = "SPIKEPLOT_LOG_LEVEL"
	EnvLogFile  = "SPIKEPLOT_LOG_FILE"
)

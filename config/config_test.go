package config

import (
	"testing"
	"testing/fstest"
	"time"

	"gotest.tools/assert"

	"spikeplot.dev/spikeplot/common"
)

const proxyToml = `listen_address = "127.0.0.1:5001"
status_address = "127.0.0.1:5002"
source = "tcp://sim.local:8100"
legacy_address = "127.0.0.1:8200"

network = "net.json"
channel_prefix = "neuron"

dial_retry = "250ms"
client_queue = 8`

const networkJSON = `{"Nodes": [{"id": 4}, {"id": 1}]}`

func withFS(t *testing.T, files map[string]string) {
	m := fstest.MapFS{}
	for name, data := range files {
		m[name] = &fstest.MapFile{Data: []byte(data)}
	}
	old := fileSystem
	fileSystem = m
	t.Cleanup(func() { fileSystem = old })
}

func TestLoadProxyConfig(t *testing.T) {
	withFS(t, map[string]string{
		"proxy.toml": proxyToml,
		"net.json":   networkJSON,
	})

	c, err := LoadProxyConfig("proxy.toml")
	assert.NilError(t, err)
	assert.NilError(t, c.Validate())

	assert.Equal(t, c.ListenAddress, "127.0.0.1:5001")
	assert.Equal(t, c.StatusAddress, "127.0.0.1:5002")
	assert.Equal(t, c.DialRetry.Duration, 250*time.Millisecond)
	assert.Equal(t, c.HandshakeTimeout.Duration, common.HandshakeTimeout)
	assert.Equal(t, c.ClientQueue, 8)
	assert.Equal(t, c.NeuronCount, 0)

	set, err := c.ChannelSet()
	assert.NilError(t, err)
	assert.DeepEqual(t, set.Names(), []string{"neuron1", "neuron4"})
}

func TestProxyDefaults(t *testing.T) {
	withFS(t, map[string]string{})

	c, err := LoadProxyConfig("")
	assert.NilError(t, err)
	assert.NilError(t, c.Validate())
	assert.Equal(t, c.ListenAddress, "localhost:5000")
	assert.Equal(t, c.Source, common.DefaultSource)

	set, err := c.ChannelSet()
	assert.NilError(t, err)
	assert.Equal(t, set.Len(), common.DefaultNeuronCount)
	_, ok := set.Index("n3")
	assert.Assert(t, ok)
}

func TestExplicitPathMustExist(t *testing.T) {
	withFS(t, map[string]string{})
	_, err := LoadProxyConfig("missing.toml")
	assert.ErrorContains(t, err, "config load failed (missing.toml)")
}

func TestUnknownSetting(t *testing.T) {
	withFS(t, map[string]string{"proxy.toml": `sorce = "sim://"`})
	_, err := LoadProxyConfig("proxy.toml")
	assert.ErrorContains(t, err, `unknown setting "sorce"`)
}

func TestValidate(t *testing.T) {
	c := &ProxyConfig{Source: "serial:///dev/ttyACM0", LegacyAddress: ":8200"}
	c.ApplyDefaults()
	assert.ErrorContains(t, c.Validate(), "legacy_address needs a tcp:// source")

	c = &ProxyConfig{Source: "ftp://x"}
	c.ApplyDefaults()
	assert.ErrorContains(t, c.Validate(), "invalid source")
}

func TestExplicitChannels(t *testing.T) {
	c := &ProxyConfig{Channels: []string{"left", "right"}}
	c.ApplyDefaults()
	assert.Equal(t, c.NeuronCount, 0)
	set, err := c.ChannelSet()
	assert.NilError(t, err)
	assert.DeepEqual(t, set.Names(), []string{"left", "right"})
}

func TestLargeNeuronCount(t *testing.T) {
	c := &ProxyConfig{NeuronCount: 300}
	c.ApplyDefaults()
	set, err := c.ChannelSet()
	assert.NilError(t, err)
	assert.Equal(t, set.Len(), 300)
}

func TestLoadPlotStyle(t *testing.T) {
	withFS(t, map[string]string{"plot.toml": "spike = \"rgb(255,0,0)\"\nglyph = \"|\"\n"})
	s, err := LoadPlotStyle("plot.toml")
	assert.NilError(t, err)
	assert.Equal(t, s.Spike, "rgb(255,0,0)")
	assert.Equal(t, s.Glyph, "|")
	assert.Equal(t, s.Label, "#458588")
}

package core

import (
	"fmt"
	"testing"

	"gotest.tools/assert"
	"gotest.tools/assert/cmp"
)

type sourceTestInput struct {
	raw     string
	scheme  string
	address string
	path    string
	e       bool
}

var inputs = []sourceTestInput{
	{
		raw:     "tcp://sim.local:8100",
		scheme:  SchemeTCP,
		address: "sim.local:8100",
	},
	{
		raw:     "localhost:9000",
		scheme:  SchemeTCP,
		address: "localhost:9000",
	},
	{
		raw:     "tcp://",
		scheme:  SchemeTCP,
		address: "localhost:8100",
	},
	{
		raw:     "listen://:8101",
		scheme:  SchemeListen,
		address: ":8101",
	},
	{
		raw:    "serial:///dev/ttyACM0?baud=9600",
		scheme: SchemeSerial,
		path:   "/dev/ttyACM0",
	},
	{
		raw:    "sim://?seed=4",
		scheme: SchemeSim,
	},
	{raw: "listen://localhost", e: true},
	{raw: "serial://", e: true},
	{raw: "udp://localhost:1", e: true},
	{raw: "tcp://user@host:1", e: true},
	{raw: "tcp://host:1/path", e: true},
}

func TestParseSource(t *testing.T) {
	for i, in := range inputs {
		in := in
		t.Run(fmt.Sprintf("%d", i), func(t *testing.T) {
			s, err := ParseSource(in.raw)
			if in.e {
				assert.Assert(t, err != nil)
				return
			}
			assert.NilError(t, err)
			assert.Check(t, cmp.Equal(in.scheme, s.Scheme))
			assert.Check(t, cmp.Equal(in.address, s.Address()))
			assert.Check(t, cmp.Equal(in.path, s.Path))
		})
	}
}

func TestIntParam(t *testing.T) {
	s, err := ParseSource("serial:///dev/ttyUSB0?baud=9600&bad=x")
	assert.NilError(t, err)

	baud, err := s.IntParam("baud", 115200)
	assert.NilError(t, err)
	assert.Equal(t, baud, 9600)

	def, err := s.IntParam("missing", 7)
	assert.NilError(t, err)
	assert.Equal(t, def, 7)

	_, err = s.IntParam("bad", 0)
	assert.ErrorContains(t, err, "not an integer")
}

func TestServerAddress(t *testing.T) {
	assert.Equal(t, ServerAddress("", 5000), "localhost:5000")
	assert.Equal(t, ServerAddress("::1", 5000), "[::1]:5000")
}

func TestSourceString(t *testing.T) {
	for raw, want := range map[string]string{
		"localhost:9000":        "tcp://localhost:9000",
		"sim://?seed=4":         "sim://?seed=4",
		"sim://":                "sim://",
		"serial:///dev/ttyACM0": "serial:///dev/ttyACM0",
	} {
		s, err := ParseSource(raw)
		assert.NilError(t, err)
		assert.Equal(t, s.String(), want)
	}
}

func TestParseRFCOMM(t *testing.T) {
	s, err := ParseSource("rfcomm://00:1a:7d:da:71:13/5")
	assert.NilError(t, err)
	assert.Equal(t, s.Scheme, SchemeRFCOMM)
	assert.Equal(t, s.Host, "00:1A:7D:DA:71:13")
	assert.Equal(t, s.Port, "5")
	assert.Assert(t, !s.IsNetwork())

	// A bare device address dials the default channel, as -a did.
	s, err = ParseSource("00:1A:7D:DA:71:13")
	assert.NilError(t, err)
	assert.Equal(t, s.Scheme, SchemeRFCOMM)
	assert.Equal(t, s.Port, "1")
	assert.Equal(t, s.String(), "rfcomm://00:1A:7D:DA:71:13/1")

	s, err = ParseSource("rfcomm://00:1A:7D:DA:71:13/3?x=1")
	assert.NilError(t, err)
	assert.Equal(t, s.String(), "rfcomm://00:1A:7D:DA:71:13/3?x=1")

	_, err = ParseSource("rfcomm://not-a-mac/1")
	assert.ErrorContains(t, err, "bluetooth device address")
	_, err = ParseSource("rfcomm://00:1A:7D:DA:71:13/31")
	assert.ErrorContains(t, err, "within 1..30")

	// Host and port pairs are still tcp.
	s, err = ParseSource("localhost:8100")
	assert.NilError(t, err)
	assert.Equal(t, s.Scheme, SchemeTCP)
}

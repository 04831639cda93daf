package proxy

import (
	"net"

	"github.com/pkg/errors"
)

// bdaddr converts a Bluetooth device address into the little-endian byte
// order the kernel expects.
func bdaddr(mac string) ([6]byte, error) {
	var out [6]byte
	hw, err := net.ParseMAC(mac)
	if err != nil || len(hw) != len(out) {
		return out, errors.Errorf("bad bluetooth device address %q", mac)
	}
	for i := range out {
		out[i] = hw[len(hw)-1-i]
	}
	return out, nil
}

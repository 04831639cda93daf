//go:build !linux

package proxy

import (
	"io"

	"github.com/pkg/errors"
)

func openSerial(path string, baud int) (io.ReadCloser, error) {
	return nil, errors.New("serial sources are only supported on linux")
}

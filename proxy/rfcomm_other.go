//go:build !linux

package proxy

import (
	"context"
	"io"

	"github.com/pkg/errors"
)

func dialRFCOMM(ctx context.Context, addr [6]byte, channel int) (io.ReadCloser, error) {
	return nil, errors.New("rfcomm sources are only supported on linux")
}

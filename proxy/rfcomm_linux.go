//go:build linux

package proxy

import (
	"context"
	"io"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// dialRFCOMM connects a Bluetooth RFCOMM stream socket. The descriptor stays
// non-blocking so that closing the file interrupts a pending read.
func dialRFCOMM(ctx context.Context, addr [6]byte, channel int) (io.ReadCloser, error) {
	fd, err := unix.Socket(unix.AF_BLUETOOTH, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.BTPROTO_RFCOMM)
	if err != nil {
		return nil, errors.Wrap(err, "opening bluetooth socket")
	}
	err = unix.Connect(fd, &unix.SockaddrRFCOMM{Addr: addr, Channel: uint8(channel)})
	if err == unix.EINPROGRESS {
		err = waitConnected(ctx, fd)
	}
	if err != nil {
		unix.Close(fd)
		return nil, errors.Wrapf(err, "connecting rfcomm channel %d", channel)
	}
	return os.NewFile(uintptr(fd), "rfcomm"), nil
}

// waitConnected polls a pending non-blocking connect until it completes or
// ctx is done.
func waitConnected(ctx context.Context, fd int) error {
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLOUT}}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := unix.Poll(fds, 100)
		if err == unix.EINTR || (err == nil && n == 0) {
			continue
		}
		if err != nil {
			return err
		}
		soErr, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
		if err != nil {
			return err
		}
		if soErr != 0 {
			return unix.Errno(soErr)
		}
		return nil
	}
}

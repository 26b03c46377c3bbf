//go:build linux

package bluetooth

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// parseAddress turns "AA:BB:CC:DD:EE:FF" into the little-endian bdaddr the kernel wants.
func parseAddress(address string) ([6]uint8, error) {
	var out [6]uint8
	parts := strings.Split(address, ":")
	if len(parts) != 6 {
		return out, fmt.Errorf("invalid bluetooth address %q", address)
	}
	for i, p := range parts {
		b, err := strconv.ParseUint(p, 16, 8)
		if err != nil {
			return out, fmt.Errorf("invalid bluetooth address %q", address)
		}
		out[5-i] = uint8(b)
	}
	return out, nil
}

func dialRFCOMM(ctx context.Context, address string, channel int) (io.ReadWriteCloser, error) {
	bdaddr, err := parseAddress(address)
	if err != nil {
		return nil, err
	}

	fd, err := unix.Socket(unix.AF_BLUETOOTH, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, unix.BTPROTO_RFCOMM)
	if err != nil {
		return nil, fmt.Errorf("rfcomm socket: %w", err)
	}

	// connect(2) blocks; shutting the socket down is the only way to abort it
	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			unix.Shutdown(fd, unix.SHUT_RDWR)
		case <-stop:
		}
	}()

	err = unix.Connect(fd, &unix.SockaddrRFCOMM{Addr: bdaddr, Channel: uint8(channel)})
	close(stop)
	if err != nil || ctx.Err() != nil {
		unix.Close(fd)
		if ctx.Err() != nil {
			return nil, fmt.Errorf("connect to %s: %w", address, ctx.Err())
		}
		return nil, fmt.Errorf("connect to %s: %w", address, err)
	}

	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("rfcomm socket: %w", err)
	}
	return os.NewFile(uintptr(fd), "rfcomm:"+address), nil
}

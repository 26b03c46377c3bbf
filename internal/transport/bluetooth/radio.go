// Package bluetooth wraps the process-wide radio adapter: capability checks, scans,
// bonded devices and RFCOMM links.
package bluetooth

import (
	"context"
	"io"
)

const (
	ServiceUUID = "8b2b3d0e-7df9-4a79-9b8a-4d85fdafc3b7"
	ServiceName = "SnakeGameBT"
)

type Device struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Bonded  bool   `json:"bonded"`
}

// Radio is the only way the rest of the program touches the adapter.
type Radio interface {
	// Check fails fast with domain.ErrPermission, domain.ErrDisabled or domain.ErrUnsupported.
	Check(ctx context.Context) error
	// Inquire reports devices until ctx is done or the adapter ends the inquiry.
	Inquire(ctx context.Context, found func(Device)) error
	Bonded(ctx context.Context) ([]Device, error)
	// Listen publishes the game service on channel and accepts inbound links.
	Listen(ctx context.Context, channel int) (Listener, error)
	Dial(ctx context.Context, address string, channel int) (io.ReadWriteCloser, error)
	LocalAddress() string
	LocalName() string
}

type Listener interface {
	// Accept returns the link and the remote hardware address.
	Accept(ctx context.Context) (io.ReadWriteCloser, string, error)
	Close() error
}

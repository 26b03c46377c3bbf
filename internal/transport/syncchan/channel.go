// Package syncchan moves packets over one connected byte stream, whatever the radio underneath.
package syncchan

import (
	"github.com/iamasit07/snakesync/internal/domain"
	"github.com/iamasit07/snakesync/internal/protocol"
)

// Channel is the transport-agnostic view of one connected peer.
type Channel interface {
	// Send writes one packet. It returns domain.ErrClosed once the channel is closed
	// and never panics on a dead peer.
	Send(p protocol.Packet) error
	// Incoming yields decoded packets in arrival order and is closed at end of stream.
	Incoming() <-chan protocol.Packet
	// Done is closed when the channel is closed from either side.
	Done() <-chan struct{}
	// Close is idempotent.
	Close() error
	RemoteAddr() string
	Transport() domain.ConnectionType
}

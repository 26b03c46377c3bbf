package session

import (
	"context"

	"github.com/iamasit07/snakesync/internal/domain"
	"github.com/iamasit07/snakesync/internal/transport/syncchan"
)

// Transport is the capability set both radios fulfil. The Manager's state machine
// only ever talks to this interface.
type Transport interface {
	Kind() domain.ConnectionType
	// Host binds and advertises. The returned room has its address fields filled in.
	Host(ctx context.Context, room domain.RoomInfo) (Listener, domain.RoomInfo, error)
	// Connect dials the room; ctx bounds the wait.
	Connect(ctx context.Context, room domain.RoomInfo) (syncchan.Channel, error)
	StartDiscovery(ctx context.Context) error
	StopDiscovery()
}

// Listener accepts inbound peers. Close also withdraws any advertisement.
type Listener interface {
	Accept(ctx context.Context) (syncchan.Channel, error)
	Close() error
}

// RoomSink receives rooms found by discovery.
type RoomSink interface {
	Upsert(room domain.RoomInfo)
	Remove(id string)
	Clear(kind domain.ConnectionType)
}

// RoomPublisher is told about the room this process hosts.
type RoomPublisher interface {
	Publish(room domain.RoomInfo)
	Withdraw(id string)
}

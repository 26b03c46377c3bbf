package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/iamasit07/snakesync/internal/domain"
	"github.com/iamasit07/snakesync/internal/transport/bluetooth"
	"github.com/iamasit07/snakesync/internal/transport/syncchan"
	"github.com/iamasit07/snakesync/pkg/logger"
	"github.com/rs/zerolog"
)

// BluetoothTransport hosts and joins over RFCOMM. Discovered devices become
// two-player rooms keyed by hardware address.
type BluetoothTransport struct {
	radio   bluetooth.Radio
	scanner *bluetooth.Scanner
	channel int
	chCfg   ChannelConfig
	sink    RoomSink
	log     zerolog.Logger
}

func NewBluetoothTransport(radio bluetooth.Radio, scanner *bluetooth.Scanner, channel int, chCfg ChannelConfig, sink RoomSink) *BluetoothTransport {
	t := &BluetoothTransport{
		radio:   radio,
		scanner: scanner,
		channel: channel,
		chCfg:   chCfg,
		sink:    sink,
		log:     logger.For("BT"),
	}
	scanner.Subscribe(t.onScan)
	return t
}

func (t *BluetoothTransport) Kind() domain.ConnectionType {
	return domain.Bluetooth
}

func (t *BluetoothTransport) onScan(e bluetooth.ScanEvent) {
	if e.Kind != bluetooth.DeviceFound || t.sink == nil {
		return
	}
	t.sink.Upsert(deviceRoom(e.Device))
}

func deviceRoom(d bluetooth.Device) domain.RoomInfo {
	name := d.Name
	if name == "" {
		name = d.Address
	}
	return domain.RoomInfo{
		ID:             d.Address,
		Name:           name,
		ConnectionType: domain.Bluetooth,
		HostAddress:    d.Address,
		HostName:       name,
		MaxPlayers:     2,
	}
}

func (t *BluetoothTransport) Host(ctx context.Context, room domain.RoomInfo) (Listener, domain.RoomInfo, error) {
	if err := t.radio.Check(ctx); err != nil {
		return nil, domain.RoomInfo{}, err
	}
	ln, err := t.radio.Listen(ctx, t.channel)
	if err != nil {
		return nil, domain.RoomInfo{}, fmt.Errorf("failed to open %s service: %w", bluetooth.ServiceName, err)
	}

	addr := t.radio.LocalAddress()
	if room.ID == "" {
		room.ID = addr
	}
	room.HostAddress = addr
	if room.HostName == "" {
		room.HostName = t.radio.LocalName()
	}
	return &btListener{ln: ln, opts: t.chCfg.options(t.log)}, room, nil
}

func (t *BluetoothTransport) Connect(ctx context.Context, room domain.RoomInfo) (syncchan.Channel, error) {
	if err := t.radio.Check(ctx); err != nil {
		return nil, err
	}
	addr := room.HostAddress
	if addr == "" {
		addr = room.ID
	}
	if addr == "" {
		return nil, fmt.Errorf("room has no device address: %w", domain.ErrNotConnected)
	}

	// an inquiry in flight slows the page considerably
	t.scanner.Stop()

	rwc, err := t.radio.Dial(ctx, addr, t.channel)
	if err != nil {
		return nil, err
	}
	return syncchan.NewRFCOMM(rwc, addr, t.chCfg.options(t.log)...), nil
}

func (t *BluetoothTransport) StartDiscovery(ctx context.Context) error {
	return t.scanner.Start(ctx)
}

func (t *BluetoothTransport) StopDiscovery() {
	t.scanner.Stop()
}

// Bonded lists paired devices as joinable rooms.
func (t *BluetoothTransport) Bonded(ctx context.Context) ([]domain.RoomInfo, error) {
	devices, err := t.scanner.Bonded(ctx)
	if err != nil {
		return nil, err
	}
	rooms := make([]domain.RoomInfo, 0, len(devices))
	for _, d := range devices {
		rooms = append(rooms, deviceRoom(d))
	}
	return rooms, nil
}

func (t *BluetoothTransport) Devices() []bluetooth.Device {
	return t.scanner.Devices()
}

func (t *BluetoothTransport) Scanning() bool {
	return t.scanner.Scanning()
}

type btListener struct {
	ln   bluetooth.Listener
	opts []syncchan.Option
}

func (l *btListener) Accept(ctx context.Context) (syncchan.Channel, error) {
	rwc, addr, err := l.ln.Accept(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, domain.ErrClosed
		}
		return nil, err
	}
	return syncchan.NewRFCOMM(rwc, addr, l.opts...), nil
}

func (l *btListener) Close() error {
	return l.ln.Close()
}

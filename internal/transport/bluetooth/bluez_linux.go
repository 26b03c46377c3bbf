//go:build linux

package bluetooth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/iamasit07/snakesync/internal/domain"
	"github.com/iamasit07/snakesync/pkg/logger"
	"github.com/rs/zerolog"
)

const (
	bluezService       = "org.bluez"
	adapterIface       = "org.bluez.Adapter1"
	deviceIface        = "org.bluez.Device1"
	profileManager     = "org.bluez.ProfileManager1"
	profileIface       = "org.bluez.Profile1"
	objectManagerIface = "org.freedesktop.DBus.ObjectManager"
	propertiesIface    = "org.freedesktop.DBus.Properties"

	profilePath = dbus.ObjectPath("/com/iamasit07/snakesync/profile")
)

type managedObjects map[dbus.ObjectPath]map[string]map[string]dbus.Variant

// BlueZRadio talks to bluetoothd over the system bus.
type BlueZRadio struct {
	conn    *dbus.Conn
	adapter dbus.ObjectPath
	log     zerolog.Logger
}

// NewRadio connects to the system bus and picks the adapter (e.g. "hci0").
func NewRadio(adapter string) (Radio, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("system bus unavailable: %w", domain.ErrUnsupported)
	}
	if adapter == "" {
		adapter = "hci0"
	}
	return &BlueZRadio{
		conn:    conn,
		adapter: dbus.ObjectPath("/org/bluez/" + adapter),
		log:     logger.For("BT"),
	}, nil
}

func (r *BlueZRadio) adapterObject() dbus.BusObject {
	return r.conn.Object(bluezService, r.adapter)
}

func (r *BlueZRadio) Check(ctx context.Context) error {
	v, err := r.adapterObject().GetProperty(adapterIface + ".Powered")
	if err != nil {
		return classify(err)
	}
	powered, _ := v.Value().(bool)
	if !powered {
		return domain.ErrDisabled
	}
	return nil
}

func (r *BlueZRadio) Inquire(ctx context.Context, found func(Device)) error {
	signals := make(chan *dbus.Signal, 32)
	r.conn.Signal(signals)
	defer r.conn.RemoveSignal(signals)

	added := []dbus.MatchOption{
		dbus.WithMatchInterface(objectManagerIface),
		dbus.WithMatchMember("InterfacesAdded"),
	}
	changed := []dbus.MatchOption{
		dbus.WithMatchInterface(propertiesIface),
		dbus.WithMatchMember("PropertiesChanged"),
		dbus.WithMatchPathNamespace(r.adapter),
	}
	if err := r.conn.AddMatchSignal(added...); err != nil {
		return classify(err)
	}
	defer r.conn.RemoveMatchSignal(added...)
	if err := r.conn.AddMatchSignal(changed...); err != nil {
		return classify(err)
	}
	defer r.conn.RemoveMatchSignal(changed...)

	if err := r.adapterObject().CallWithContext(ctx, adapterIface+".StartDiscovery", 0).Err; err != nil {
		return classify(err)
	}
	defer func() {
		if err := r.adapterObject().Call(adapterIface+".StopDiscovery", 0).Err; err != nil {
			r.log.Debug().Err(err).Msg("StopDiscovery")
		}
	}()

	// devices the adapter already knows about count as found too
	if objects, err := r.objects(ctx); err == nil {
		for path, ifaces := range objects {
			if props, ok := ifaces[deviceIface]; ok && r.owns(path) {
				found(deviceFrom(props))
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case sig, ok := <-signals:
			if !ok {
				return nil
			}
			r.handleSignal(sig, found)
		}
	}
}

func (r *BlueZRadio) handleSignal(sig *dbus.Signal, found func(Device)) {
	switch sig.Name {
	case objectManagerIface + ".InterfacesAdded":
		if len(sig.Body) < 2 {
			return
		}
		path, _ := sig.Body[0].(dbus.ObjectPath)
		ifaces, _ := sig.Body[1].(map[string]map[string]dbus.Variant)
		if props, ok := ifaces[deviceIface]; ok && r.owns(path) {
			found(deviceFrom(props))
		}
	case propertiesIface + ".PropertiesChanged":
		if len(sig.Body) < 1 || sig.Body[0] != deviceIface || !r.owns(sig.Path) {
			return
		}
		v, err := r.conn.Object(bluezService, sig.Path).GetProperty(deviceIface + ".Address")
		if err != nil {
			return
		}
		d := Device{}
		d.Address, _ = v.Value().(string)
		if n, err := r.conn.Object(bluezService, sig.Path).GetProperty(deviceIface + ".Name"); err == nil {
			d.Name, _ = n.Value().(string)
		}
		found(d)
	}
}

func (r *BlueZRadio) Bonded(ctx context.Context) ([]Device, error) {
	objects, err := r.objects(ctx)
	if err != nil {
		return nil, classify(err)
	}
	var out []Device
	for path, ifaces := range objects {
		props, ok := ifaces[deviceIface]
		if !ok || !r.owns(path) {
			continue
		}
		if paired, _ := props["Paired"].Value().(bool); paired {
			d := deviceFrom(props)
			d.Bonded = true
			out = append(out, d)
		}
	}
	return out, nil
}

func (r *BlueZRadio) objects(ctx context.Context) (managedObjects, error) {
	var objects managedObjects
	err := r.conn.Object(bluezService, "/").
		CallWithContext(ctx, objectManagerIface+".GetManagedObjects", 0).
		Store(&objects)
	return objects, err
}

func (r *BlueZRadio) owns(path dbus.ObjectPath) bool {
	return strings.HasPrefix(string(path), string(r.adapter)+"/")
}

// Listen registers the game profile so bluetoothd publishes the service record and
// hands each inbound RFCOMM link to us.
func (r *BlueZRadio) Listen(ctx context.Context, channel int) (Listener, error) {
	p := &profile{
		conns: make(chan inbound, 4),
		done:  make(chan struct{}),
		radio: r,
	}
	if err := r.conn.Export(p, profilePath, profileIface); err != nil {
		return nil, fmt.Errorf("failed to export profile: %w", err)
	}

	opts := map[string]dbus.Variant{
		"Name":                  dbus.MakeVariant(ServiceName),
		"Role":                  dbus.MakeVariant("server"),
		"Channel":               dbus.MakeVariant(uint16(channel)),
		"RequireAuthentication": dbus.MakeVariant(false),
		"RequireAuthorization":  dbus.MakeVariant(false),
	}
	call := r.conn.Object(bluezService, "/org/bluez").
		CallWithContext(ctx, profileManager+".RegisterProfile", 0, profilePath, ServiceUUID, opts)
	if call.Err != nil {
		r.conn.Export(nil, profilePath, profileIface)
		return nil, classify(call.Err)
	}

	r.log.Info().Int("channel", channel).Msg("Service record registered")
	return p, nil
}

func (r *BlueZRadio) Dial(ctx context.Context, address string, channel int) (io.ReadWriteCloser, error) {
	return dialRFCOMM(ctx, address, channel)
}

func (r *BlueZRadio) LocalAddress() string {
	v, err := r.adapterObject().GetProperty(adapterIface + ".Address")
	if err != nil {
		return ""
	}
	addr, _ := v.Value().(string)
	return addr
}

func (r *BlueZRadio) LocalName() string {
	v, err := r.adapterObject().GetProperty(adapterIface + ".Alias")
	if err != nil {
		return ""
	}
	name, _ := v.Value().(string)
	return name
}

type inbound struct {
	file    *os.File
	address string
}

// profile implements org.bluez.Profile1.
type profile struct {
	conns     chan inbound
	done      chan struct{}
	closeOnce sync.Once
	radio     *BlueZRadio
}

func (p *profile) Release() *dbus.Error {
	return nil
}

func (p *profile) NewConnection(device dbus.ObjectPath, fd dbus.UnixFD, props map[string]dbus.Variant) *dbus.Error {
	address := ""
	if v, err := p.radio.conn.Object(bluezService, device).GetProperty(deviceIface + ".Address"); err == nil {
		address, _ = v.Value().(string)
	}
	f := os.NewFile(uintptr(fd), "rfcomm:"+address)
	select {
	case p.conns <- inbound{file: f, address: address}:
		return nil
	case <-p.done:
		f.Close()
		return dbus.MakeFailedError(errors.New("listener closed"))
	}
}

func (p *profile) RequestDisconnection(device dbus.ObjectPath) *dbus.Error {
	return nil
}

func (p *profile) Accept(ctx context.Context) (io.ReadWriteCloser, string, error) {
	select {
	case c := <-p.conns:
		return c.file, c.address, nil
	case <-p.done:
		return nil, "", domain.ErrClosed
	case <-ctx.Done():
		return nil, "", ctx.Err()
	}
}

func (p *profile) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.done)
		err = p.radio.conn.Object(bluezService, "/org/bluez").
			Call(profileManager+".UnregisterProfile", 0, profilePath).Err
		p.radio.conn.Export(nil, profilePath, profileIface)
	})
	return err
}

func deviceFrom(props map[string]dbus.Variant) Device {
	d := Device{}
	if v, ok := props["Address"]; ok {
		d.Address, _ = v.Value().(string)
	}
	if v, ok := props["Name"]; ok {
		d.Name, _ = v.Value().(string)
	} else if v, ok := props["Alias"]; ok {
		d.Name, _ = v.Value().(string)
	}
	if v, ok := props["Paired"]; ok {
		d.Bonded, _ = v.Value().(bool)
	}
	return d
}

// classify maps bus errors onto the capability errors callers switch on.
func classify(err error) error {
	var name string
	var valueErr dbus.Error
	var ptrErr *dbus.Error
	switch {
	case errors.As(err, &ptrErr):
		name = ptrErr.Name
	case errors.As(err, &valueErr):
		name = valueErr.Name
	}
	if name != "" {
		switch name {
		case "org.freedesktop.DBus.Error.AccessDenied", "org.bluez.Error.NotAuthorized", "org.bluez.Error.NotPermitted":
			return fmt.Errorf("%s: %w", name, domain.ErrPermission)
		case "org.bluez.Error.NotReady":
			return fmt.Errorf("%s: %w", name, domain.ErrDisabled)
		case "org.freedesktop.DBus.Error.ServiceUnknown", "org.freedesktop.DBus.Error.UnknownObject":
			return fmt.Errorf("%s: %w", name, domain.ErrUnsupported)
		}
	}
	return err
}

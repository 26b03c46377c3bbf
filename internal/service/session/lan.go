package session

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/iamasit07/snakesync/internal/domain"
	"github.com/iamasit07/snakesync/internal/protocol"
	"github.com/iamasit07/snakesync/internal/transport/lan"
	"github.com/iamasit07/snakesync/internal/transport/syncchan"
	"github.com/iamasit07/snakesync/pkg/logger"
	"github.com/iamasit07/snakesync/pkg/uid"
	"github.com/rs/zerolog"
)

// Advertiser publishes hosted rooms; *lan.Announcer is the production one.
type Advertiser interface {
	Publish(s lan.Service) error
	Withdraw(name string)
	Run(ctx context.Context)
	Close() error
}

// Discoverer reports rooms appearing and disappearing; *lan.Browser is the production one.
type Discoverer interface {
	Events() <-chan lan.Event
	Run(ctx context.Context)
}

type LANConfig struct {
	ServiceType      string
	AnnounceInterval time.Duration
	RoomLifetime     time.Duration

	// BindHost is the interface the room socket binds to; empty means all.
	BindHost string
	// AllowLoopback lets a host advertise 127.0.0.1. Only tests want this.
	AllowLoopback bool
	// ResolveAddress returns the address peers should dial. Defaults to lan.LocalIPv4.
	ResolveAddress func() (string, error)

	Channel ChannelConfig

	NewAdvertiser func() (Advertiser, error)
	NewBrowser    func() (Discoverer, error)
}

type LANTransport struct {
	cfg  LANConfig
	sink RoomSink
	log  zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewLANTransport(cfg LANConfig, sink RoomSink) *LANTransport {
	if cfg.ResolveAddress == nil {
		cfg.ResolveAddress = lan.LocalIPv4
	}
	if cfg.NewAdvertiser == nil {
		cfg.NewAdvertiser = func() (Advertiser, error) {
			return lan.NewAnnouncer(cfg.AnnounceInterval), nil
		}
	}
	if cfg.NewBrowser == nil {
		cfg.NewBrowser = func() (Discoverer, error) {
			return lan.NewBrowser(cfg.ServiceType, cfg.RoomLifetime)
		}
	}
	return &LANTransport{cfg: cfg, sink: sink, log: logger.For("LAN")}
}

func (t *LANTransport) Kind() domain.ConnectionType {
	return domain.LAN
}

func (t *LANTransport) channelOptions() []syncchan.Option {
	return t.cfg.Channel.options(t.log)
}

func (t *LANTransport) Host(ctx context.Context, room domain.RoomInfo) (Listener, domain.RoomInfo, error) {
	addr, err := t.cfg.ResolveAddress()
	if err != nil {
		return nil, domain.RoomInfo{}, err
	}
	if !t.cfg.AllowLoopback && !lan.UsableHostAddress(addr) {
		return nil, domain.RoomInfo{}, fmt.Errorf("refusing to host on %q: %w", addr, domain.ErrNoLocalAddress)
	}

	ln, err := lan.Listen(ctx, t.cfg.BindHost, 0)
	if err != nil {
		return nil, domain.RoomInfo{}, err
	}

	if room.ID == "" {
		room.ID = uid.NewLANRoomID()
	}
	room.HostAddress = addr
	room.Port = ln.Addr().(*net.TCPAddr).Port

	adv, err := t.cfg.NewAdvertiser()
	if err != nil {
		ln.Close()
		return nil, domain.RoomInfo{}, err
	}
	svc := lan.Service{
		Type:  t.cfg.ServiceType,
		Name:  protocol.ServiceName(room.Name, room.ID),
		Port:  room.Port,
		Addr:  addr,
		Attrs: map[string]string{protocol.AttributeKey: protocol.AttributesFor(room).Encode()},
	}
	if err := adv.Publish(svc); err != nil {
		// the socket is up; peers who know the address can still join
		t.log.Warn().Err(err).Msg("Room advertisement failed")
	}

	runCtx, cancel := context.WithCancel(ctx)
	go adv.Run(runCtx)

	return &lanListener{ln: ln, adv: adv, cancel: cancel, opts: t.channelOptions()}, room, nil
}

func (t *LANTransport) Connect(ctx context.Context, room domain.RoomInfo) (syncchan.Channel, error) {
	if room.HostAddress == "" || room.Port <= 0 {
		return nil, fmt.Errorf("room %s has no address: %w", room.ID, domain.ErrNotConnected)
	}
	conn, err := lan.Dial(ctx, room.HostAddress, room.Port)
	if err != nil {
		return nil, err
	}
	return syncchan.NewTCP(conn, t.channelOptions()...), nil
}

// StartDiscovery feeds found and lost rooms into the sink. Calling it while running is a no-op.
func (t *LANTransport) StartDiscovery(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		return nil
	}

	browser, err := t.cfg.NewBrowser()
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	t.cancel = cancel
	t.done = done

	go browser.Run(runCtx)
	go func() {
		defer close(done)
		for e := range browser.Events() {
			t.apply(e)
		}
	}()

	t.log.Info().Str("type", t.cfg.ServiceType).Msg("Discovery started")
	return nil
}

func (t *LANTransport) apply(e lan.Event) {
	if t.sink == nil {
		return
	}
	attrs, _ := protocol.DecodeAttributes(e.Service.Attrs[protocol.AttributeKey])
	room := protocol.RoomFromAdvert(e.Service.Name, e.Service.Host, e.Service.Port, attrs)

	switch e.Kind {
	case lan.ServiceFound:
		t.sink.Upsert(room)
	case lan.ServiceLost:
		t.sink.Remove(room.ID)
	}
}

func (t *LANTransport) StopDiscovery() {
	t.mu.Lock()
	cancel, done := t.cancel, t.done
	t.cancel, t.done = nil, nil
	t.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	if t.sink != nil {
		t.sink.Clear(domain.LAN)
	}
	t.log.Info().Msg("Discovery stopped")
}

type lanListener struct {
	ln     net.Listener
	adv    Advertiser
	cancel context.CancelFunc
	opts   []syncchan.Option
	once   sync.Once
}

func (l *lanListener) Accept(ctx context.Context) (syncchan.Channel, error) {
	stop := context.AfterFunc(ctx, func() { l.ln.Close() })
	defer stop()

	conn, err := l.ln.Accept()
	if err != nil {
		return nil, err
	}
	return syncchan.NewTCP(conn, l.opts...), nil
}

func (l *lanListener) Close() error {
	var err error
	l.once.Do(func() {
		l.cancel()
		l.adv.Close()
		err = l.ln.Close()
	})
	return err
}

package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/iamasit07/snakesync/internal/domain"
	"github.com/iamasit07/snakesync/internal/protocol"
	"github.com/iamasit07/snakesync/internal/transport/lan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingAdvertiser struct {
	noopAdvertiser
	mu        sync.Mutex
	published []lan.Service
}

func (r *recordingAdvertiser) Publish(s lan.Service) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.published = append(r.published, s)
	return nil
}

type scriptedDiscoverer struct {
	events chan lan.Event
}

func (d *scriptedDiscoverer) Events() <-chan lan.Event { return d.events }

func (d *scriptedDiscoverer) Run(ctx context.Context) {
	<-ctx.Done()
	close(d.events)
}

type sinkSpy struct {
	mu       sync.Mutex
	upserted []domain.RoomInfo
	removed  []string
	cleared  []domain.ConnectionType
}

func (s *sinkSpy) Upsert(room domain.RoomInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserted = append(s.upserted, room)
}

func (s *sinkSpy) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removed = append(s.removed, id)
}

func (s *sinkSpy) Clear(kind domain.ConnectionType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleared = append(s.cleared, kind)
}

func TestLANHostAdvertisesResolvedAddress(t *testing.T) {
	t.Parallel()
	adv := &recordingAdvertiser{}
	tr := NewLANTransport(LANConfig{
		ServiceType:    "_snakegame._tcp.",
		BindHost:       "127.0.0.1",
		AllowLoopback:  true,
		ResolveAddress: func() (string, error) { return "127.0.0.1", nil },
		NewAdvertiser:  func() (Advertiser, error) { return adv, nil },
	}, nil)

	ln, room, err := tr.Host(context.Background(), domain.RoomInfo{Name: "Den's room", MaxPlayers: 3})
	require.NoError(t, err)
	defer ln.Close()

	adv.mu.Lock()
	defer adv.mu.Unlock()
	require.Len(t, adv.published, 1)
	svc := adv.published[0]
	assert.Equal(t, "_snakegame._tcp.", svc.Type)
	assert.Equal(t, "127.0.0.1", svc.Addr)
	assert.Equal(t, room.Port, svc.Port)
	assert.Equal(t, protocol.ServiceName(room.Name, room.ID), svc.Name)

	attrs, ok := protocol.DecodeAttributes(svc.Attrs[protocol.AttributeKey])
	require.True(t, ok)
	assert.Equal(t, room.ID, attrs.ID)
	assert.Equal(t, room.Port, attrs.Port)
	assert.True(t, attrs.Extended())
}

func TestLANDiscoveryFeedsTheSink(t *testing.T) {
	t.Parallel()
	disc := &scriptedDiscoverer{events: make(chan lan.Event, 4)}
	sink := &sinkSpy{}
	tr := NewLANTransport(LANConfig{
		ServiceType: "_snakegame._tcp.",
		NewBrowser:  func() (Discoverer, error) { return disc, nil },
	}, sink)

	room := domain.RoomInfo{ID: "lan-1f2e", Name: "R1", HostAddress: "10.0.0.7", Port: 4100, MaxPlayers: 2}
	svc := lan.ResolvedService{
		Service: lan.Service{
			Name:  protocol.ServiceName(room.Name, room.ID),
			Port:  room.Port,
			Attrs: map[string]string{protocol.AttributeKey: protocol.AttributesFor(room).Encode()},
		},
		Host: "10.0.0.7",
	}

	require.NoError(t, tr.StartDiscovery(context.Background()))
	require.NoError(t, tr.StartDiscovery(context.Background()), "second start is a no-op")
	disc.events <- lan.Event{Kind: lan.ServiceFound, Service: svc}
	disc.events <- lan.Event{Kind: lan.ServiceLost, Service: svc}

	require.Eventually(t, func() bool {
		sink.mu.Lock()
		defer sink.mu.Unlock()
		return len(sink.removed) == 1
	}, 2*time.Second, 10*time.Millisecond)
	tr.StopDiscovery()

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.upserted, 1)
	assert.Equal(t, "lan-1f2e", sink.upserted[0].ID)
	assert.Equal(t, "10.0.0.7", sink.upserted[0].HostAddress)
	assert.Equal(t, 4100, sink.upserted[0].Port)
	assert.Equal(t, domain.LAN, sink.upserted[0].ConnectionType)
	assert.Equal(t, []string{"lan-1f2e"}, sink.removed)
	assert.Equal(t, []domain.ConnectionType{domain.LAN}, sink.cleared)
}

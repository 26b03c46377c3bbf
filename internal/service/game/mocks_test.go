package game

import (
	"context"
	"sync"
	"time"

	"github.com/iamasit07/snakesync/internal/domain"
	"github.com/iamasit07/snakesync/internal/protocol"
	"github.com/iamasit07/snakesync/internal/service/session"
	"github.com/stretchr/testify/mock"
)

// --- MatchRepository ---

type MockMatchRepository struct {
	mock.Mock
}

func (m *MockMatchRepository) SaveMatch(ctx context.Context, rec domain.MatchRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

// --- TickerFactory ---

// fakeTickers hands out one unbuffered channel per interval so tests drive ticks by hand.
type fakeTickers struct {
	mu    sync.Mutex
	chans map[time.Duration]chan time.Time
}

func newFakeTickers() *fakeTickers {
	return &fakeTickers{chans: make(map[time.Duration]chan time.Time)}
}

func (f *fakeTickers) channel(d time.Duration) chan time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.chans[d]
	if !ok {
		ch = make(chan time.Time)
		f.chans[d] = ch
	}
	return ch
}

func (f *fakeTickers) Create(d time.Duration) (<-chan time.Time, func()) {
	return f.channel(d), func() {}
}

// --- Link ---

type fakeLink struct {
	state   domain.ConnectionState
	peers   []session.PeerInfo
	states  chan domain.ConnectionState
	packets chan protocol.Packet

	mu       sync.Mutex
	outgoing []protocol.Packet
}

func newFakeLink(state domain.ConnectionState) *fakeLink {
	return &fakeLink{
		state:   state,
		states:  make(chan domain.ConnectionState, 4),
		packets: make(chan protocol.Packet, 4),
	}
}

func (l *fakeLink) Broadcast(p protocol.Packet) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.outgoing = append(l.outgoing, p)
	return len(l.peers)
}

func (l *fakeLink) sent(t protocol.PacketType) []protocol.Packet {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []protocol.Packet
	for _, p := range l.outgoing {
		if p.Type == t {
			out = append(out, p)
		}
	}
	return out
}

func (l *fakeLink) State() domain.ConnectionState { return l.state.Clone() }

func (l *fakeLink) Subscribe() (<-chan domain.ConnectionState, func()) {
	return l.states, func() {}
}

func (l *fakeLink) Packets() (<-chan protocol.Packet, func()) {
	return l.packets, func() {}
}

func (l *fakeLink) Peers() []session.PeerInfo { return l.peers }

func (l *fakeLink) PlayerID() string {
	if l.state.Role == domain.RoleHost {
		return "H"
	}
	return "C"
}

func (l *fakeLink) PlayerName() string {
	if l.state.Role == domain.RoleHost {
		return "host"
	}
	return "client"
}

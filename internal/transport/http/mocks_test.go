package http

import (
	"context"

	"github.com/iamasit07/snakesync/internal/domain"
	"github.com/iamasit07/snakesync/internal/protocol"
	"github.com/iamasit07/snakesync/internal/service/authority"
	"github.com/iamasit07/snakesync/internal/service/game"
	"github.com/iamasit07/snakesync/internal/service/session"
	"github.com/iamasit07/snakesync/internal/transport/bluetooth"
	"github.com/stretchr/testify/mock"
)

// --- Session ---

type MockSession struct {
	mock.Mock
	kind  domain.ConnectionType
	state domain.ConnectionState
}

func newMockSession(kind domain.ConnectionType) *MockSession {
	return &MockSession{kind: kind, state: domain.IdleState(kind)}
}

func (m *MockSession) Kind() domain.ConnectionType   { return m.kind }
func (m *MockSession) State() domain.ConnectionState { return m.state }
func (m *MockSession) PlayerID() string              { return "me" }
func (m *MockSession) PlayerName() string            { return "me" }
func (m *MockSession) Peers() []session.PeerInfo     { return nil }
func (m *MockSession) Broadcast(protocol.Packet) int { return 0 }

func (m *MockSession) Subscribe() (<-chan domain.ConnectionState, func()) {
	return make(chan domain.ConnectionState), func() {}
}

func (m *MockSession) Packets() (<-chan protocol.Packet, func()) {
	return make(chan protocol.Packet), func() {}
}

func (m *MockSession) Host(ctx context.Context, room domain.RoomInfo) (domain.RoomInfo, error) {
	args := m.Called(room)
	return args.Get(0).(domain.RoomInfo), args.Error(1)
}

func (m *MockSession) Join(ctx context.Context, room domain.RoomInfo, password string) error {
	args := m.Called(room, password)
	return args.Error(0)
}

func (m *MockSession) StartDiscovery(ctx context.Context) error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockSession) StopDiscovery() {
	m.Called()
}

func (m *MockSession) Stop() {
	m.Called()
}

// --- GameRunner ---

type MockGame struct {
	mock.Mock
}

func (m *MockGame) Start(link game.Link) (authority.View, error) {
	args := m.Called(link)
	return args.Get(0).(authority.View), args.Error(1)
}

func (m *MockGame) Steer(direction string) error {
	args := m.Called(direction)
	return args.Error(0)
}

func (m *MockGame) Boost(on bool) error {
	args := m.Called(on)
	return args.Error(0)
}

func (m *MockGame) Stop() {
	m.Called()
}

func (m *MockGame) View() (authority.View, bool) {
	args := m.Called()
	return args.Get(0).(authority.View), args.Bool(1)
}

// --- MatchStore ---

type MockMatchStore struct {
	mock.Mock
}

func (m *MockMatchStore) ListMatches(ctx context.Context, limit int) ([]domain.MatchRecord, error) {
	args := m.Called(limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.MatchRecord), args.Error(1)
}

func (m *MockMatchStore) GetMatch(ctx context.Context, matchID string) (*domain.MatchRecord, error) {
	args := m.Called(matchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.MatchRecord), args.Error(1)
}

// --- directories ---

type staticRooms map[string]domain.RoomInfo

func (r staticRooms) Rooms(kind domain.ConnectionType) []domain.RoomInfo {
	var out []domain.RoomInfo
	for _, room := range r {
		if room.ConnectionType == kind {
			out = append(out, room)
		}
	}
	return out
}

func (r staticRooms) Lookup(ctx context.Context, id string) (domain.RoomInfo, bool) {
	room, ok := r[id]
	return room, ok
}

type staticDevices struct {
	nearby []bluetooth.Device
	bonded []domain.RoomInfo
	err    error
}

func (d staticDevices) Devices() []bluetooth.Device { return d.nearby }

func (d staticDevices) Bonded(ctx context.Context) ([]domain.RoomInfo, error) {
	return d.bonded, d.err
}

func (d staticDevices) Scanning() bool { return false }

package authority

import (
	"sync"
	"time"

	"github.com/iamasit07/snakesync/internal/domain"
	"github.com/iamasit07/snakesync/internal/protocol"
	"github.com/stretchr/testify/mock"
)

// --- Broadcaster ---

type MockBroadcaster struct {
	mock.Mock
}

func (m *MockBroadcaster) Broadcast(p protocol.Packet) int {
	args := m.Called(p)
	return args.Int(0)
}

// --- TickerFactory ---

type MockTickerFactory struct {
	mock.Mock
}

func (m *MockTickerFactory) Create(d time.Duration) (<-chan time.Time, func()) {
	args := m.Called(d)
	return args.Get(0).(chan time.Time), func() {}
}

// --- FoodSpawner ---

// scriptedSpawner hands out cells in order and then repeats the last one.
type scriptedSpawner struct {
	mu    sync.Mutex
	cells []domain.Cell
	calls int
}

func (s *scriptedSpawner) spawn(width, height int, occupied map[domain.Cell]struct{}) domain.Cell {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.cells) == 0 {
		return domain.Cell{}
	}
	c := s.cells[0]
	if len(s.cells) > 1 {
		s.cells = s.cells[1:]
	}
	return c
}

func ofType(t protocol.PacketType) any {
	return mock.MatchedBy(func(p protocol.Packet) bool { return p.Type == t })
}

package cleanup

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type countingPruner struct {
	calls  atomic.Int32
	maxAge atomic.Int64
}

func (p *countingPruner) Prune(maxAge time.Duration) int {
	p.calls.Add(1)
	p.maxAge.Store(int64(maxAge))
	return 1
}

type MockMatchCleaner struct {
	mock.Mock
}

func (m *MockMatchCleaner) CleanupOld(ctx context.Context, daysToKeep int) (int64, error) {
	args := m.Called(ctx, daysToKeep)
	return args.Get(0).(int64), args.Error(1)
}

func TestWorkerPrunesRoomsPeriodically(t *testing.T) {
	t.Parallel()
	rooms := &countingPruner{}
	matches := new(MockMatchCleaner)
	matches.On("CleanupOld", mock.Anything, 30).Return(int64(2), nil).Once()

	w := NewWorker(rooms, matches, 10*time.Millisecond, 5*time.Second, 30)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	require.Eventually(t, func() bool { return rooms.calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(5*time.Second), rooms.maxAge.Load())
	matches.AssertExpectations(t)
}

func TestWorkerWithoutDatabase(t *testing.T) {
	t.Parallel()
	rooms := &countingPruner{}
	w := NewWorker(rooms, nil, time.Hour, time.Second, 30)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.Start(ctx)
	assert.EqualValues(t, 1, rooms.calls.Load())
}

func TestWorkerSurvivesHistoryErrors(t *testing.T) {
	t.Parallel()
	matches := new(MockMatchCleaner)
	matches.On("CleanupOld", mock.Anything, 7).Return(int64(0), errors.New("db down")).Once()

	w := NewWorker(nil, matches, time.Hour, 0, 7)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.Start(ctx)
	matches.AssertExpectations(t)
}

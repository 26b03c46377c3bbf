package authority

import (
	"context"
	"testing"
	"time"

	"github.com/iamasit07/snakesync/internal/domain"
	"github.com/iamasit07/snakesync/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hostSnapshot(tick int64, head domain.Cell) protocol.Packet {
	return protocol.Snapshot{
		Snakes: []protocol.SnakeState{{ID: "H", Name: "host", Body: []domain.Cell{head}, Alive: true}},
		Foods:  []domain.Cell{{X: 1, Y: 1}},
		Tick:   tick,
	}.Packet()
}

func TestFollowerStopsAfterDisconnect(t *testing.T) {
	t.Parallel()
	w := NewWorld(testGrid, twoPlayerConfig(), false, nil)
	w.AddLocal("C", "client", domain.NewSnake(testGrid, domain.Cell{X: 5, Y: 5}, domain.Up, 2))

	packets := make(chan protocol.Packet, 4)
	packets <- hostSnapshot(1, domain.Cell{X: 2, Y: 2})
	close(packets)

	done := make(chan struct{})
	go func() {
		NewFollower(w).Run(context.Background(), packets)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("follower kept running after the stream closed")
	}

	h, ok := w.Player("H")
	require.True(t, ok)
	assert.Equal(t, []domain.Cell{{X: 2, Y: 2}}, h.Body)
}

func TestFollowerApply(t *testing.T) {
	t.Parallel()

	t.Run("state snapshot", func(t *testing.T) {
		t.Parallel()
		w := NewWorld(testGrid, twoPlayerConfig(), false, nil)
		f := NewFollower(w)

		assert.True(t, f.Apply(hostSnapshot(3, domain.Cell{X: 4, Y: 4})))
		assert.Equal(t, []domain.Cell{{X: 1, Y: 1}}, w.View().Foods)
	})

	t.Run("legacy single food", func(t *testing.T) {
		t.Parallel()
		w := NewWorld(testGrid, twoPlayerConfig(), false, nil)
		pkt := protocol.NewPacket(protocol.PlayerState, map[string]any{
			"snakes": []any{},
			"food":   map[string]any{"x": int64(3), "y": int64(7)},
		})

		assert.True(t, NewFollower(w).Apply(pkt))
		assert.Equal(t, []domain.Cell{{X: 3, Y: 7}}, w.View().Foods)
	})

	t.Run("elimination report on the host", func(t *testing.T) {
		t.Parallel()
		w := NewWorld(testGrid, twoPlayerConfig(), true, nil)
		w.AddLocal("H", "host", domain.NewSnake(testGrid, domain.Cell{X: 5, Y: 5}, domain.Up, 2))
		f := NewFollower(w)

		require.True(t, f.Apply(protocol.JoinPacket(protocol.Join{PlayerID: "C", Name: "client"})))
		require.True(t, f.Apply(protocol.EliminatedPacket("C", domain.Cell{X: 2, Y: 3})))

		assert.Equal(t, domain.Victory("H"), w.Result())
		assert.Contains(t, w.View().Foods, domain.Cell{X: 2, Y: 3})
	})

	t.Run("host ignores eliminations relayed for someone else", func(t *testing.T) {
		t.Parallel()
		w := NewWorld(testGrid, twoPlayerConfig(), true, nil)
		w.AddLocal("H", "host", domain.NewSnake(testGrid, domain.Cell{X: 5, Y: 5}, domain.Up, 2))
		w.AddRemote("B", "bob")
		w.AddRemote("C", "cat")
		f := NewFollower(w)

		relayed := protocol.EliminatedPacket("C", domain.Cell{X: 2, Y: 3})
		relayed.From = "B"
		assert.False(t, f.Apply(relayed))
		c, _ := w.Player("C")
		assert.True(t, c.Alive())

		own := protocol.EliminatedPacket("C", domain.Cell{X: 2, Y: 3})
		own.From = "C"
		assert.True(t, f.Apply(own))
	})

	t.Run("host takes only the sender's snake from a snapshot", func(t *testing.T) {
		t.Parallel()
		w := NewWorld(testGrid, twoPlayerConfig(), true, nil)
		w.AddLocal("H", "host", domain.NewSnake(testGrid, domain.Cell{X: 5, Y: 5}, domain.Up, 2))
		f := NewFollower(w)

		pkt := protocol.Snapshot{Snakes: []protocol.SnakeState{
			{ID: "B", Body: []domain.Cell{{X: 1, Y: 1}}, Alive: true},
			{ID: "C", Body: []domain.Cell{{X: 7, Y: 7}}, Alive: true},
		}}.Packet()
		pkt.From = "B"
		require.True(t, f.Apply(pkt))

		_, ok := w.Player("C")
		assert.False(t, ok)
		b, ok := w.Player("B")
		require.True(t, ok)
		assert.Equal(t, []domain.Cell{{X: 1, Y: 1}}, b.Body)
	})

	t.Run("peer left", func(t *testing.T) {
		t.Parallel()
		w := NewWorld(testGrid, twoPlayerConfig(), true, nil)
		w.AddLocal("H", "host", domain.NewSnake(testGrid, domain.Cell{X: 5, Y: 5}, domain.Up, 2))
		w.AddRemote("C", "client")

		assert.True(t, NewFollower(w).Apply(protocol.PeerLeftPacket("C")))
		assert.Equal(t, domain.Victory("H"), w.Result())
	})

	t.Run("unrelated packets are ignored", func(t *testing.T) {
		t.Parallel()
		w := NewWorld(testGrid, twoPlayerConfig(), true, nil)
		f := NewFollower(w)

		assert.False(t, f.Apply(protocol.HeartbeatPacket("lan-1")))
		assert.False(t, f.Apply(protocol.RejectPacket(protocol.ReasonRoomFull)))
	})
}

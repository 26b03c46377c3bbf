package authority

import (
	"context"
	"slices"
	"sync/atomic"
	"time"

	"github.com/iamasit07/snakesync/internal/domain"
	"github.com/iamasit07/snakesync/internal/protocol"
	"github.com/iamasit07/snakesync/pkg/logger"
	"github.com/rs/zerolog"
)

type nopBroadcaster struct{}

func (nopBroadcaster) Broadcast(protocol.Packet) int { return 0 }

// Loop is the per-session tick. Every side runs one for the snakes it owns; only the
// authoritative world places food.
type Loop struct {
	world   *World
	cfg     domain.GameSessionConfig
	out     Broadcaster
	tickers TickerFactory

	boost   atomic.Bool
	boostCh chan struct{}

	lastFoods []domain.Cell

	log zerolog.Logger
}

// NewLoop wires a loop. out may be nil for single-player.
func NewLoop(world *World, cfg domain.GameSessionConfig, out Broadcaster, tickers TickerFactory) *Loop {
	if out == nil {
		out = nopBroadcaster{}
	}
	if tickers == nil {
		tickers = NewTickerFactory()
	}
	return &Loop{
		world:   world,
		cfg:     cfg,
		out:     out,
		tickers: tickers,
		boostCh: make(chan struct{}, 1),
		log:     logger.For("AUTHORITY"),
	}
}

// SetBoost switches between the base and boosted interval from the next tick on.
func (l *Loop) SetBoost(on bool) {
	if l.boost.Swap(on) == on {
		return
	}
	select {
	case l.boostCh <- struct{}{}:
	default:
	}
}

func (l *Loop) Boosted() bool {
	return l.boost.Load()
}

// Run ticks until ctx is done or the result turns terminal, and returns the last result.
// A terminal tick still goes out as the final snapshot.
func (l *Loop) Run(ctx context.Context) domain.GameResult {
	interval := l.cfg.Interval(l.boost.Load())
	ticks, stop := l.tickers.Create(interval)
	defer func() { stop() }()

	l.log.Info().Dur("interval", interval).Bool("authoritative", l.world.Authoritative()).Msg("Tick loop started")

	for {
		select {
		case <-ctx.Done():
			return l.world.Result()
		case <-l.boostCh:
			next := l.cfg.Interval(l.boost.Load())
			if next == interval {
				continue
			}
			stop()
			interval = next
			ticks, stop = l.tickers.Create(interval)
			l.log.Debug().Dur("interval", interval).Msg("Tick interval changed")
		case <-ticks:
			if result, done := l.step(); done {
				return result
			}
		}
	}
}

func (l *Loop) step() (domain.GameResult, bool) {
	for _, d := range l.world.Step() {
		l.log.Info().Str("player", d.PlayerID).Int("x", d.At.X).Int("y", d.At.Y).Msg("Player eliminated")
		l.out.Broadcast(protocol.EliminatedPacket(d.PlayerID, d.At))
	}

	if l.world.Authoritative() {
		if foods := l.world.Foods(); !slices.Equal(foods, l.lastFoods) {
			l.lastFoods = foods
			l.out.Broadcast(protocol.FoodStatePacket(foods))
		}
	}
	l.out.Broadcast(l.world.Snapshot().Packet())

	result := l.world.Result()
	if !result.IsTerminal() {
		return result, false
	}
	l.log.Info().Str("result", string(result.Kind)).Str("winner", result.WinnerID).Int64("tick", l.world.Tick()).Msg("Game over")
	return result, true
}

// Heartbeat sends the room id on its own ticker so followers can tell a stuck link
// from a quiet one.
type Heartbeat struct {
	out      Broadcaster
	roomID   string
	interval time.Duration
	tickers  TickerFactory
}

func NewHeartbeat(out Broadcaster, roomID string, interval time.Duration, tickers TickerFactory) *Heartbeat {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	if tickers == nil {
		tickers = NewTickerFactory()
	}
	return &Heartbeat{out: out, roomID: roomID, interval: interval, tickers: tickers}
}

func (h *Heartbeat) Run(ctx context.Context) {
	ticks, stop := h.tickers.Create(h.interval)
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticks:
			h.out.Broadcast(protocol.HeartbeatPacket(h.roomID))
		}
	}
}

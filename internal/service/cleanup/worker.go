package cleanup

import (
	"context"
	"time"

	"github.com/iamasit07/snakesync/pkg/logger"
	"github.com/rs/zerolog"
)

// RoomPruner drops discovered rooms that stopped refreshing.
type RoomPruner interface {
	Prune(maxAge time.Duration) int
}

// MatchCleaner deletes old match history.
type MatchCleaner interface {
	CleanupOld(ctx context.Context, daysToKeep int) (int64, error)
}

type Worker struct {
	Rooms   RoomPruner
	Matches MatchCleaner // nil without a database

	Interval     time.Duration
	RoomLifetime time.Duration
	HistoryEvery time.Duration
	HistoryDays  int

	log zerolog.Logger
}

func NewWorker(rooms RoomPruner, matches MatchCleaner, interval, roomLifetime time.Duration, historyDays int) *Worker {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Worker{
		Rooms:        rooms,
		Matches:      matches,
		Interval:     interval,
		RoomLifetime: roomLifetime,
		HistoryEvery: time.Hour,
		HistoryDays:  historyDays,
		log:          logger.For("CLEANUP"),
	}
}

// Start runs both sweeps once, then periodically until ctx is done.
func (w *Worker) Start(ctx context.Context) {
	w.pruneRooms()
	w.cleanupHistory(ctx)

	rooms := time.NewTicker(w.Interval)
	history := time.NewTicker(w.HistoryEvery)
	go func() {
		defer rooms.Stop()
		defer history.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-rooms.C:
				w.pruneRooms()
			case <-history.C:
				w.cleanupHistory(ctx)
			}
		}
	}()
	w.log.Info().Dur("interval", w.Interval).Msg("Background worker started")
}

func (w *Worker) pruneRooms() {
	if w.Rooms == nil || w.RoomLifetime <= 0 {
		return
	}
	if n := w.Rooms.Prune(w.RoomLifetime); n > 0 {
		w.log.Debug().Int("rooms", n).Msg("Pruned stale rooms")
	}
}

func (w *Worker) cleanupHistory(ctx context.Context) {
	if w.Matches == nil || w.HistoryDays <= 0 {
		return
	}
	deleted, err := w.Matches.CleanupOld(ctx, w.HistoryDays)
	if err != nil {
		w.log.Error().Err(err).Msg("Error cleaning up match history")
		return
	}
	if deleted > 0 {
		w.log.Info().Int64("matches", deleted).Msg("Removed old matches from database")
	}
}

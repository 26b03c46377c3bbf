// Package authority runs the per-session tick: it advances locally owned snakes,
// decides food and eliminations when it holds authority, and replicates snapshots.
package authority

import (
	"time"

	"github.com/iamasit07/snakesync/internal/domain"
	"github.com/iamasit07/snakesync/internal/protocol"
)

// Simulation is one locally owned snake. *domain.Snake satisfies it.
type Simulation interface {
	CurrentBody() []domain.Cell
	MoveOneStep(wrap bool) domain.Cell
	HasWallCollision(wrap bool) bool
	HasSelfCollision() bool
	IsHeadAtCell(x, y int) bool
	Grow()
}

// FoodSpawner returns a cell outside occupied, or a fallback after a bounded search.
type FoodSpawner func(width, height int, occupied map[domain.Cell]struct{}) domain.Cell

type SettingsProvider interface {
	Settings() domain.Settings
}

// Broadcaster sends to every attached peer and reports how many took it.
// *session.Manager is the production one.
type Broadcaster interface {
	Broadcast(p protocol.Packet) int
}

// TickerFactory hands out tick channels; the returned func stops the ticker.
type TickerFactory interface {
	Create(d time.Duration) (<-chan time.Time, func())
}

type realTickers struct{}

func (realTickers) Create(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

func NewTickerFactory() TickerFactory {
	return realTickers{}
}

type staticSettings domain.Settings

func (s staticSettings) Settings() domain.Settings {
	return domain.Settings(s)
}

// StaticSettings wraps fixed settings as a provider.
func StaticSettings(s domain.Settings) SettingsProvider {
	return staticSettings(s)
}

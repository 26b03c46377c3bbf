package authority

import (
	"context"

	"github.com/iamasit07/snakesync/internal/protocol"
	"github.com/iamasit07/snakesync/pkg/logger"
	"github.com/rs/zerolog"
)

// Follower applies what peers send to the world. It runs on every side: the host
// mirrors client snakes, clients mirror everything they don't own.
type Follower struct {
	world *World
	log   zerolog.Logger
}

func NewFollower(world *World) *Follower {
	return &Follower{world: world, log: logger.For("AUTHORITY")}
}

// Run applies packets until ctx is done or the stream closes. Nothing is applied after either.
func (f *Follower) Run(ctx context.Context, packets <-chan protocol.Packet) {
	for {
		select {
		case <-ctx.Done():
			return
		case pkt, ok := <-packets:
			if !ok {
				return
			}
			if ctx.Err() != nil {
				return
			}
			f.Apply(pkt)
		}
	}
}

// Apply handles one packet and reports whether it changed anything.
func (f *Follower) Apply(pkt protocol.Packet) bool {
	switch pkt.Type {
	case protocol.PlayerState:
		snap, ok := protocol.DecodeSnapshot(pkt.Payload)
		if !ok {
			return false
		}
		f.world.ApplySnapshot(snap, pkt.From)
		return true

	case protocol.FoodState:
		f.world.AdoptFoods(protocol.DecodeFoodState(pkt.Payload))
		return !f.world.Authoritative()

	case protocol.PlayerEliminated:
		id, at, ok := protocol.DecodeEliminated(pkt.Payload)
		if !ok {
			return false
		}
		if f.world.Authoritative() && pkt.From != "" && pkt.From != id {
			return false
		}
		if f.world.Eliminate(id, at) {
			f.log.Info().Str("player", id).Msg("Peer reported elimination")
			return true
		}
		return false

	case protocol.PlayerJoin:
		join, ok := protocol.DecodeJoin(pkt.Payload)
		if !ok {
			return false
		}
		f.world.AddRemote(join.PlayerID, join.Name)
		return true

	case protocol.Custom:
		if id, ok := protocol.DecodePeerLeft(pkt); ok && f.world.PlayerLeft(id) {
			f.log.Info().Str("player", id).Msg("Peer left mid-game")
			return true
		}
	}
	return false
}

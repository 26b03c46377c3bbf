package registry

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/iamasit07/snakesync/internal/domain"
	"github.com/iamasit07/snakesync/pkg/logger"
	"github.com/rs/zerolog"
)

const roomKeyPrefix = "room:"

// CacheRepository mirrors room descriptions for other local processes. Optional.
type CacheRepository interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

type entry struct {
	room     domain.RoomInfo
	lastSeen time.Time
}

// Registry holds the rooms this process hosts and the rooms it has discovered.
type Registry struct {
	mu         sync.RWMutex
	hosted     map[string]domain.RoomInfo
	discovered map[string]entry

	cache    CacheRepository // can be nil
	cacheTTL time.Duration
	now      func() time.Time
	log      zerolog.Logger
}

func New(cache CacheRepository, cacheTTL time.Duration) *Registry {
	return &Registry{
		hosted:     make(map[string]domain.RoomInfo),
		discovered: make(map[string]entry),
		cache:      cache,
		cacheTTL:   cacheTTL,
		now:        time.Now,
		log:        logger.For("REGISTRY"),
	}
}

// Publish records (or refreshes) a room this process is hosting.
func (r *Registry) Publish(room domain.RoomInfo) {
	r.mu.Lock()
	r.hosted[room.ID] = room
	r.mu.Unlock()
	r.mirror(room)
}

// Withdraw forgets a hosted room once hosting stops.
func (r *Registry) Withdraw(id string) {
	r.mu.Lock()
	_, ok := r.hosted[id]
	delete(r.hosted, id)
	r.mu.Unlock()
	if ok {
		r.unmirror(id)
	}
}

// Upsert records a room seen through discovery.
func (r *Registry) Upsert(room domain.RoomInfo) {
	if room.ID == "" {
		return
	}
	r.mu.Lock()
	r.discovered[room.ID] = entry{room: room, lastSeen: r.now()}
	r.mu.Unlock()
	r.mirror(room)
}

// Remove drops a discovered room, e.g. after a lost-service event.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	_, ok := r.discovered[id]
	delete(r.discovered, id)
	r.mu.Unlock()
	if ok {
		r.unmirror(id)
	}
}

// Rooms lists discovered rooms for one transport, minus anything we host ourselves.
func (r *Registry) Rooms(kind domain.ConnectionType) []domain.RoomInfo {
	r.mu.RLock()
	out := make([]domain.RoomInfo, 0, len(r.discovered))
	for id, e := range r.discovered {
		if _, own := r.hosted[id]; own {
			continue
		}
		if kind != "" && e.room.ConnectionType != kind {
			continue
		}
		out = append(out, e.room)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Get looks a room up by id, hosted rooms first.
func (r *Registry) Get(id string) (domain.RoomInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if room, ok := r.hosted[id]; ok {
		return room, true
	}
	e, ok := r.discovered[id]
	return e.room, ok
}

// Lookup is Get with a fallback to the cache mirror, which also holds rooms that
// other local processes found or that outlived a restart.
func (r *Registry) Lookup(ctx context.Context, id string) (domain.RoomInfo, bool) {
	if room, ok := r.Get(id); ok {
		return room, true
	}
	return r.Cached(ctx, id)
}

func (r *Registry) Hosted() []domain.RoomInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.RoomInfo, 0, len(r.hosted))
	for _, room := range r.hosted {
		out = append(out, room)
	}
	return out
}

// Clear forgets every discovered room of one transport, used when a new scan starts.
func (r *Registry) Clear(kind domain.ConnectionType) {
	r.mu.Lock()
	var ids []string
	for id, e := range r.discovered {
		if e.room.ConnectionType == kind {
			ids = append(ids, id)
			delete(r.discovered, id)
		}
	}
	r.mu.Unlock()
	for _, id := range ids {
		r.unmirror(id)
	}
}

// Prune removes discovered rooms not refreshed within maxAge and returns how many went.
func (r *Registry) Prune(maxAge time.Duration) int {
	cutoff := r.now().Add(-maxAge)

	r.mu.Lock()
	var stale []string
	for id, e := range r.discovered {
		if e.lastSeen.Before(cutoff) {
			stale = append(stale, id)
			delete(r.discovered, id)
		}
	}
	r.mu.Unlock()

	for _, id := range stale {
		r.unmirror(id)
	}
	return len(stale)
}

// Cached reads a mirrored room back from the cache, if one is configured.
func (r *Registry) Cached(ctx context.Context, id string) (domain.RoomInfo, bool) {
	if r.cache == nil {
		return domain.RoomInfo{}, false
	}
	raw, err := r.cache.Get(ctx, roomKeyPrefix+id)
	if err != nil || raw == "" {
		return domain.RoomInfo{}, false
	}
	var room domain.RoomInfo
	if err := json.Unmarshal([]byte(raw), &room); err != nil {
		return domain.RoomInfo{}, false
	}
	return room, true
}

func (r *Registry) mirror(room domain.RoomInfo) {
	if r.cache == nil {
		return
	}
	data, err := json.Marshal(room.Public())
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := r.cache.Set(ctx, roomKeyPrefix+room.ID, data, r.cacheTTL); err != nil {
		r.log.Warn().Err(err).Str("room", room.ID).Msg("Failed to mirror room")
	}
}

func (r *Registry) unmirror(id string) {
	if r.cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := r.cache.Del(ctx, roomKeyPrefix+id); err != nil {
		r.log.Warn().Err(err).Str("room", id).Msg("Failed to drop mirrored room")
	}
}

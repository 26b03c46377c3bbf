package lan

import (
	"sync"
	"time"
)

type serviceKey struct {
	name string
	host string
	port int
}

type trackedService struct {
	service  ResolvedService
	lastSeen time.Time
}

// Tracker remembers resolved services, keyed by (name, host, port) so re-announcements collapse.
type Tracker struct {
	mu       sync.Mutex
	services map[serviceKey]*trackedService
	lifetime time.Duration
	now      func() time.Time
}

func NewTracker(lifetime time.Duration) *Tracker {
	return &Tracker{
		services: make(map[serviceKey]*trackedService),
		lifetime: lifetime,
		now:      time.Now,
	}
}

// Update records a sighting and reports whether the entry is new.
func (t *Tracker) Update(s ResolvedService) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := serviceKey{name: s.Name, host: s.Host, port: s.Port}
	if existing, ok := t.services[key]; ok {
		existing.service = s
		existing.lastSeen = t.now()
		return false
	}
	t.services[key] = &trackedService{service: s, lastSeen: t.now()}
	return true
}

// Remove drops every entry matching (name, host), whatever the port.
func (t *Tracker) Remove(name, host string) []ResolvedService {
	t.mu.Lock()
	defer t.mu.Unlock()

	var removed []ResolvedService
	for k, v := range t.services {
		if k.name == name && k.host == host {
			removed = append(removed, v.service)
			delete(t.services, k)
		}
	}
	return removed
}

// Cleanup expires entries not seen within the lifetime and returns them.
func (t *Tracker) Cleanup() []ResolvedService {
	t.mu.Lock()
	defer t.mu.Unlock()

	var expired []ResolvedService
	now := t.now()
	for k, v := range t.services {
		if now.Sub(v.lastSeen) > t.lifetime {
			expired = append(expired, v.service)
			delete(t.services, k)
		}
	}
	return expired
}

func (t *Tracker) Active() []ResolvedService {
	t.mu.Lock()
	defer t.mu.Unlock()

	active := make([]ResolvedService, 0, len(t.services))
	for _, v := range t.services {
		active = append(active, v.service)
	}
	return active
}

func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.services)
}

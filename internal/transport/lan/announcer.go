package lan

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/iamasit07/snakesync/pkg/logger"
	"github.com/rs/zerolog"
)

// responder is one registered mDNS service; *zeroconf.Server is the production one.
type responder interface {
	SetText(text []string)
	Shutdown()
}

type registerFunc func(s Service) (responder, error)

// Announcer publishes services over mDNS and re-announces their TXT records on an interval.
type Announcer struct {
	register registerFunc
	interval time.Duration

	mu       sync.Mutex
	services map[string]published

	closeOnce sync.Once
	log       zerolog.Logger
}

type published struct {
	service Service
	server  responder
}

func NewAnnouncer(interval time.Duration) *Announcer {
	return newAnnouncer(registerZeroconf, interval)
}

func registerZeroconf(s Service) (responder, error) {
	txt := txtRecords(s.Attrs)
	if s.Addr == "" {
		return zeroconf.Register(s.Name, serviceType(s.Type), mdnsDomain, s.Port, txt, nil)
	}
	return zeroconf.RegisterProxy(s.Name, serviceType(s.Type), mdnsDomain, s.Port,
		hostLabel(s.Name), []string{s.Addr}, txt, nil)
}

func newAnnouncer(register registerFunc, interval time.Duration) *Announcer {
	if interval <= 0 {
		interval = time.Second
	}
	return &Announcer{
		register: register,
		interval: interval,
		services: make(map[string]published),
		log:      logger.For("LAN"),
	}
}

// Publish registers the service, replacing an earlier one of the same name.
func (a *Announcer) Publish(s Service) error {
	server, err := a.register(s)
	if err != nil {
		return fmt.Errorf("failed to advertise %s: %w", s.Name, err)
	}

	a.mu.Lock()
	old, replaced := a.services[s.Name]
	a.services[s.Name] = published{service: s, server: server}
	a.mu.Unlock()

	if replaced {
		old.server.Shutdown()
	}
	a.log.Info().Str("service", s.Name).Int("port", s.Port).Msg("Advertising room")
	return nil
}

// Withdraw unregisters the service; the responder sends the goodbye.
func (a *Announcer) Withdraw(name string) {
	a.mu.Lock()
	p, ok := a.services[name]
	delete(a.services, name)
	a.mu.Unlock()

	if ok {
		p.server.Shutdown()
		a.log.Info().Str("service", name).Msg("Room withdrawn")
	}
}

// Run re-announces every published service until ctx is done.
func (a *Announcer) Run(ctx context.Context) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, p := range a.snapshot() {
				p.server.SetText(txtRecords(p.service.Attrs))
			}
		}
	}
}

// Close withdraws everything.
func (a *Announcer) Close() error {
	a.closeOnce.Do(func() {
		for _, p := range a.snapshot() {
			a.Withdraw(p.service.Name)
		}
	})
	return nil
}

func (a *Announcer) snapshot() []published {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]published, 0, len(a.services))
	for _, p := range a.services {
		out = append(out, p)
	}
	return out
}

package lan

import (
	"context"
	"fmt"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/iamasit07/snakesync/pkg/logger"
	"github.com/rs/zerolog"
)

type EventKind int

const (
	ServiceFound EventKind = iota
	ServiceLost
)

type Event struct {
	Kind    EventKind
	Service ResolvedService
}

type browseFunc func(ctx context.Context, serviceType string, entries chan<- *zeroconf.ServiceEntry) error

// Browser looks for services of one type in rounds. A resolver reports each instance once
// per query, so every round starts a fresh one and the tracker's lifetime does the rest.
type Browser struct {
	serviceType string
	browse      browseFunc
	tracker     *Tracker
	events      chan Event
	round       time.Duration
	log         zerolog.Logger
}

func NewBrowser(serviceType string, lifetime time.Duration) (*Browser, error) {
	if serviceType == "" {
		return nil, fmt.Errorf("lan browser needs a service type")
	}
	b := newBrowser(serviceType, lifetime)
	b.browse = browseZeroconf
	return b, nil
}

func browseZeroconf(ctx context.Context, serviceType string, entries chan<- *zeroconf.ServiceEntry) error {
	resolver, err := zeroconf.NewResolver(zeroconf.SelectIPTraffic(zeroconf.IPv4))
	if err != nil {
		return fmt.Errorf("failed to start mDNS resolver: %w", err)
	}
	return resolver.Browse(ctx, serviceType, mdnsDomain, entries)
}

func newBrowser(serviceType string, lifetime time.Duration) *Browser {
	round := lifetime / 3
	if round < 100*time.Millisecond {
		round = 100 * time.Millisecond
	}
	return &Browser{
		serviceType: serviceType,
		tracker:     NewTracker(lifetime),
		events:      make(chan Event, 32),
		round:       round,
		log:         logger.For("LAN"),
	}
}

func (b *Browser) Events() <-chan Event {
	return b.events
}

func (b *Browser) Services() []ResolvedService {
	return b.tracker.Active()
}

// Run browses until ctx is done, then closes the event stream.
func (b *Browser) Run(ctx context.Context) {
	defer close(b.events)

	for ctx.Err() == nil {
		b.browseRound(ctx)
		for _, s := range b.tracker.Cleanup() {
			b.log.Debug().Str("service", s.Name).Msg("Room expired")
			b.emit(ctx, Event{Kind: ServiceLost, Service: s})
		}
	}
}

func (b *Browser) browseRound(ctx context.Context) {
	roundCtx, cancel := context.WithTimeout(ctx, b.round)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry, 32)
	if err := b.browse(roundCtx, serviceType(b.serviceType), entries); err != nil {
		b.log.Warn().Err(err).Msg("Browse failed")
		<-roundCtx.Done()
		return
	}
	for {
		select {
		case <-roundCtx.Done():
			return
		case e, ok := <-entries:
			if !ok {
				<-roundCtx.Done()
				return
			}
			b.handle(ctx, e)
		}
	}
}

// handle resolves one entry against the tracker and emits found/lost events. A zero
// TTL is the responder's goodbye.
func (b *Browser) handle(ctx context.Context, e *zeroconf.ServiceEntry) {
	if e == nil {
		return
	}
	host := ""
	switch {
	case len(e.AddrIPv4) > 0:
		host = e.AddrIPv4[0].String()
	case len(e.AddrIPv6) > 0:
		host = e.AddrIPv6[0].String()
	}
	name := unescapeInstance(e.Instance)
	if name == "" || host == "" {
		return
	}

	if e.TTL == 0 {
		for _, s := range b.tracker.Remove(name, host) {
			b.log.Info().Str("service", s.Name).Msg("Room lost")
			b.emit(ctx, Event{Kind: ServiceLost, Service: s})
		}
		return
	}

	s := ResolvedService{
		Service: Service{Type: b.serviceType, Name: name, Port: e.Port, Attrs: parseTXT(e.Text)},
		Host:    host,
	}
	if b.tracker.Update(s) {
		b.log.Info().Str("service", s.Name).Str("host", host).Int("port", s.Port).Msg("Room found")
		b.emit(ctx, Event{Kind: ServiceFound, Service: s})
	}
}

func (b *Browser) emit(ctx context.Context, e Event) {
	select {
	case b.events <- e:
	case <-ctx.Done():
	}
}

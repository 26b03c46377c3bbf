package bluetooth

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iamasit07/snakesync/pkg/logger"
	"github.com/rs/zerolog"
)

type ScanEventKind int

const (
	DeviceFound ScanEventKind = iota
	ScanStopped
)

type ScanEvent struct {
	Kind   ScanEventKind
	Device Device
}

// Scanner runs at most one inquiry at a time and keeps a de-duplicated device set.
type Scanner struct {
	radio   Radio
	timeout time.Duration

	startMu     sync.Mutex
	mu          sync.Mutex
	devices     map[string]Device
	cancel      context.CancelFunc
	finished    chan struct{}
	generation  int
	subscribers []func(ScanEvent)

	log zerolog.Logger
}

func NewScanner(radio Radio, timeout time.Duration) *Scanner {
	if timeout <= 0 {
		timeout = 12 * time.Second
	}
	return &Scanner{
		radio:   radio,
		timeout: timeout,
		devices: make(map[string]Device),
		log:     logger.For("BT"),
	}
}

// Subscribe registers fn for found/stopped events. fn runs on the scan goroutine.
func (s *Scanner) Subscribe(fn func(ScanEvent)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// Start checks capabilities, then (re)starts the inquiry. A running scan is cancelled
// and awaited first, so two inquiries never overlap.
func (s *Scanner) Start(ctx context.Context) error {
	s.startMu.Lock()
	defer s.startMu.Unlock()

	if err := s.radio.Check(ctx); err != nil {
		return err
	}

	s.Stop()

	s.mu.Lock()
	scanCtx, cancel := context.WithTimeout(context.Background(), s.timeout)
	finished := make(chan struct{})
	s.generation++
	gen := s.generation
	s.cancel = cancel
	s.finished = finished
	s.devices = make(map[string]Device)
	s.mu.Unlock()

	s.log.Info().Dur("timeout", s.timeout).Msg("Scan started")
	go s.run(scanCtx, cancel, gen, finished)
	return nil
}

func (s *Scanner) run(ctx context.Context, cancel context.CancelFunc, gen int, finished chan struct{}) {
	defer close(finished)
	defer cancel()

	err := s.radio.Inquire(ctx, func(d Device) {
		s.add(gen, d)
	})
	if err != nil && ctx.Err() == nil {
		s.log.Warn().Err(err).Msg("Inquiry failed")
	}

	s.mu.Lock()
	if s.generation == gen {
		s.cancel = nil
	}
	s.mu.Unlock()

	s.log.Info().Msg("Scan stopped")
	s.notify(ScanEvent{Kind: ScanStopped})
}

func (s *Scanner) add(gen int, d Device) {
	d.Address = strings.ToUpper(strings.TrimSpace(d.Address))
	if d.Address == "" {
		return
	}

	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		return
	}
	existing, seen := s.devices[d.Address]
	if seen && (d.Name == "" || d.Name == existing.Name) {
		s.mu.Unlock()
		return
	}
	if d.Name == "" {
		d.Name = existing.Name
	}
	s.devices[d.Address] = d
	s.mu.Unlock()

	if !seen {
		s.notify(ScanEvent{Kind: DeviceFound, Device: d})
	}
}

// Stop cancels the running inquiry, if any, and waits for it to wind down.
func (s *Scanner) Stop() {
	s.mu.Lock()
	cancel, finished := s.cancel, s.finished
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-finished
}

func (s *Scanner) Scanning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

func (s *Scanner) Devices() []Device {
	s.mu.Lock()
	out := make([]Device, 0, len(s.devices))
	for _, d := range s.devices {
		out = append(out, d)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

// Bonded lists paired devices; it needs the same capabilities as a scan.
func (s *Scanner) Bonded(ctx context.Context) ([]Device, error) {
	if err := s.radio.Check(ctx); err != nil {
		return nil, err
	}
	devices, err := s.radio.Bonded(ctx)
	if err != nil {
		return nil, err
	}
	for i := range devices {
		devices[i].Bonded = true
	}
	return devices, nil
}

func (s *Scanner) notify(e ScanEvent) {
	s.mu.Lock()
	subs := append([]func(ScanEvent){}, s.subscribers...)
	s.mu.Unlock()
	for _, fn := range subs {
		fn(e)
	}
}

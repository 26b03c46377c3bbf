package bluetooth

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/iamasit07/snakesync/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRadio reports the scripted devices, then blocks until the scan is cancelled
// or times out, like a real inquiry.
type fakeRadio struct {
	checkErr error
	devices  []Device
	bonded   []Device

	active  atomic.Int32
	overlap atomic.Bool
	runs    atomic.Int32
}

func (f *fakeRadio) Check(ctx context.Context) error { return f.checkErr }

func (f *fakeRadio) Inquire(ctx context.Context, found func(Device)) error {
	if f.active.Add(1) > 1 {
		f.overlap.Store(true)
	}
	defer f.active.Add(-1)
	f.runs.Add(1)

	for _, d := range f.devices {
		found(d)
	}
	<-ctx.Done()
	return nil
}

func (f *fakeRadio) Bonded(ctx context.Context) ([]Device, error) { return f.bonded, nil }

func (f *fakeRadio) Listen(ctx context.Context, channel int) (Listener, error) {
	return nil, errors.New("not used")
}

func (f *fakeRadio) Dial(ctx context.Context, address string, channel int) (io.ReadWriteCloser, error) {
	return nil, errors.New("not used")
}

func (f *fakeRadio) LocalAddress() string { return "00:11:22:33:44:55" }

func (f *fakeRadio) LocalName() string { return "test" }

type recorder struct {
	mu     sync.Mutex
	events []ScanEvent
}

func (r *recorder) record(e ScanEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) count(kind ScanEventKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func TestScannerCapabilityErrors(t *testing.T) {
	t.Parallel()

	for _, want := range []error{domain.ErrPermission, domain.ErrDisabled} {
		s := NewScanner(&fakeRadio{checkErr: want}, time.Second)
		err := s.Start(context.Background())
		assert.ErrorIs(t, err, want)
		assert.False(t, s.Scanning())

		_, err = s.Bonded(context.Background())
		assert.ErrorIs(t, err, want)
	}
}

func TestScannerDedupesByAddress(t *testing.T) {
	t.Parallel()
	radio := &fakeRadio{devices: []Device{
		{Address: "aa:bb:cc:dd:ee:01", Name: ""},
		{Address: "AA:BB:CC:DD:EE:01", Name: "Phone"},
		{Address: "AA:BB:CC:DD:EE:02", Name: "Tablet"},
		{Address: "AA:BB:CC:DD:EE:02", Name: "Tablet"},
		{Address: "", Name: "ghost"},
	}}
	s := NewScanner(radio, time.Minute)
	rec := &recorder{}
	s.Subscribe(rec.record)

	require.NoError(t, s.Start(context.Background()))
	assert.Eventually(t, func() bool { return len(s.Devices()) == 2 }, time.Second, 5*time.Millisecond)

	devices := s.Devices()
	assert.Equal(t, "Phone", devices[0].Name, "a later name fills in an unnamed entry")
	assert.Equal(t, 2, rec.count(DeviceFound))

	s.Stop()
	assert.False(t, s.Scanning())
	assert.Equal(t, 1, rec.count(ScanStopped))
}

func TestScannerRestartNeverOverlaps(t *testing.T) {
	t.Parallel()
	radio := &fakeRadio{}
	s := NewScanner(radio, time.Minute)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Start(context.Background()))
	}
	assert.True(t, s.Scanning())
	s.Stop()

	assert.False(t, radio.overlap.Load())
	assert.Equal(t, int32(5), radio.runs.Load())
}

func TestScannerSelfTerminates(t *testing.T) {
	t.Parallel()
	s := NewScanner(&fakeRadio{}, 30*time.Millisecond)
	rec := &recorder{}
	s.Subscribe(rec.record)

	require.NoError(t, s.Start(context.Background()))
	assert.Eventually(t, func() bool { return rec.count(ScanStopped) == 1 }, time.Second, 5*time.Millisecond)
	assert.False(t, s.Scanning())

	s.Stop()
}

func TestScannerBonded(t *testing.T) {
	t.Parallel()
	s := NewScanner(&fakeRadio{bonded: []Device{{Address: "AA:00:00:00:00:01", Name: "Paired"}}}, time.Second)
	devices, err := s.Bonded(context.Background())
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.True(t, devices[0].Bonded)
}

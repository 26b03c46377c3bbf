package lan

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testType = "_snakegame._tcp."

func entry(name, host string, port int, ttl uint32) *zeroconf.ServiceEntry {
	e := zeroconf.NewServiceEntry(name, "_snakegame._tcp", "local.")
	e.Port = port
	e.TTL = ttl
	e.Text = []string{"meta=x"}
	if host != "" {
		e.AddrIPv4 = []net.IP{net.ParseIP(host)}
	}
	return e
}

func drain(b *Browser) []Event {
	var out []Event
	for {
		select {
		case e := <-b.events:
			out = append(out, e)
		default:
			return out
		}
	}
}

func TestTrackerDedupesByTriple(t *testing.T) {
	t.Parallel()
	tr := NewTracker(time.Minute)

	s := ResolvedService{Service: Service{Name: "R1#abcd", Port: 4000}, Host: "10.0.0.2"}
	assert.True(t, tr.Update(s))
	assert.False(t, tr.Update(s))
	assert.Equal(t, 1, tr.Len())

	other := s
	other.Port = 4001
	assert.True(t, tr.Update(other))
	assert.Equal(t, 2, tr.Len())

	removed := tr.Remove("R1#abcd", "10.0.0.2")
	assert.Len(t, removed, 2)
	assert.Equal(t, 0, tr.Len())
}

func TestTrackerCleanup(t *testing.T) {
	t.Parallel()
	tr := NewTracker(5 * time.Second)
	now := time.Unix(1000, 0)
	tr.now = func() time.Time { return now }

	tr.Update(ResolvedService{Service: Service{Name: "old"}, Host: "h"})
	now = now.Add(3 * time.Second)
	tr.Update(ResolvedService{Service: Service{Name: "fresh"}, Host: "h"})
	now = now.Add(3 * time.Second)

	expired := tr.Cleanup()
	require.Len(t, expired, 1)
	assert.Equal(t, "old", expired[0].Name)
	assert.Len(t, tr.Active(), 1)
}

func TestBrowserHandle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("same service twice yields one entry", func(t *testing.T) {
		b := newBrowser(testType, time.Minute)
		b.handle(ctx, entry("R1#abcd", "192.168.1.20", 4000, 120))
		b.handle(ctx, entry("R1#abcd", "192.168.1.20", 4000, 120))

		events := drain(b)
		require.Len(t, events, 1)
		assert.Equal(t, ServiceFound, events[0].Kind)
		assert.Equal(t, "192.168.1.20", events[0].Service.Host)
		assert.Equal(t, 4000, events[0].Service.Port)
		assert.Equal(t, "x", events[0].Service.Attrs["meta"])
		assert.Len(t, b.Services(), 1)
	})

	t.Run("goodbye removes by name and host", func(t *testing.T) {
		b := newBrowser(testType, time.Minute)
		b.handle(ctx, entry("R1#abcd", "192.168.1.20", 4000, 120))
		b.handle(ctx, entry("R1#abcd", "192.168.1.20", 4000, 0))

		events := drain(b)
		require.Len(t, events, 2)
		assert.Equal(t, ServiceLost, events[1].Kind)
		assert.Empty(t, b.Services())
	})

	t.Run("goodbye from another host is ignored", func(t *testing.T) {
		b := newBrowser(testType, time.Minute)
		b.handle(ctx, entry("R1#abcd", "192.168.1.20", 4000, 120))
		b.handle(ctx, entry("R1#abcd", "192.168.1.99", 4000, 0))
		assert.Len(t, b.Services(), 1)
	})

	t.Run("escaped instance names come back readable", func(t *testing.T) {
		b := newBrowser(testType, time.Minute)
		b.handle(ctx, entry(`Den's\ room#abcd`, "192.168.1.20", 4000, 120))
		events := drain(b)
		require.Len(t, events, 1)
		assert.Equal(t, "Den's room#abcd", events[0].Service.Name)
	})

	t.Run("entries without an address are ignored", func(t *testing.T) {
		b := newBrowser(testType, time.Minute)
		b.handle(ctx, entry("R1#abcd", "", 4000, 120))
		b.handle(ctx, nil)
		assert.Empty(t, drain(b))
	})
}

func TestBrowserRunRefreshesAndExpires(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	visible := true
	var types []string

	b := newBrowser(testType, 300*time.Millisecond)
	b.browse = func(ctx context.Context, serviceType string, entries chan<- *zeroconf.ServiceEntry) error {
		mu.Lock()
		types = append(types, serviceType)
		show := visible
		mu.Unlock()
		if show {
			entries <- entry("R1#abcd", "10.0.0.7", 4100, 120)
		}
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		b.Run(ctx)
		close(done)
	}()

	first := <-b.Events()
	assert.Equal(t, ServiceFound, first.Kind)
	assert.Equal(t, "10.0.0.7", first.Service.Host)

	// repeat rounds keep it alive past its lifetime
	time.Sleep(500 * time.Millisecond)
	assert.Len(t, b.Services(), 1)

	mu.Lock()
	visible = false
	mu.Unlock()

	select {
	case e := <-b.Events():
		assert.Equal(t, ServiceLost, e.Kind)
		assert.Equal(t, "R1#abcd", e.Service.Name)
	case <-time.After(3 * time.Second):
		t.Fatal("room never expired")
	}

	cancel()
	<-done
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "_snakegame._tcp", types[0])
}

func TestBrowserSurvivesBrowseErrors(t *testing.T) {
	t.Parallel()
	calls := 0
	b := newBrowser(testType, 300*time.Millisecond)
	b.browse = func(ctx context.Context, _ string, entries chan<- *zeroconf.ServiceEntry) error {
		calls++
		if calls == 1 {
			return errors.New("no multicast interface")
		}
		entries <- entry("R2#beef", "10.0.0.8", 4200, 120)
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx)

	select {
	case e := <-b.Events():
		assert.Equal(t, "R2#beef", e.Service.Name)
	case <-time.After(3 * time.Second):
		t.Fatal("browser gave up after one failed round")
	}
}

type fakeResponder struct {
	mu       sync.Mutex
	texts    [][]string
	shutdown int
}

func (f *fakeResponder) SetText(text []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
}

func (f *fakeResponder) Shutdown() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shutdown++
}

func (f *fakeResponder) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.texts), f.shutdown
}

func TestAnnouncer(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var registered []Service
	var servers []*fakeResponder
	a := newAnnouncer(func(s Service) (responder, error) {
		mu.Lock()
		defer mu.Unlock()
		if s.Port == 0 {
			return nil, errors.New("port required")
		}
		r := &fakeResponder{}
		registered = append(registered, s)
		servers = append(servers, r)
		return r, nil
	}, 10*time.Millisecond)

	svc := Service{Type: testType, Name: "R1#abcd", Port: 4000, Attrs: map[string]string{"meta": "x"}}
	require.NoError(t, a.Publish(svc))
	assert.Error(t, a.Publish(Service{Type: testType, Name: "broken"}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		a.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		texts, _ := servers[0].counts()
		return texts >= 3
	}, 2*time.Second, 5*time.Millisecond)
	cancel()
	<-done
	assert.Equal(t, []string{"meta=x"}, servers[0].texts[0])

	// publishing the same name again replaces the registration
	require.NoError(t, a.Publish(svc))
	_, shut := servers[0].counts()
	assert.Equal(t, 1, shut)

	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
	_, shut = servers[1].counts()
	assert.Equal(t, 1, shut)

	a.Withdraw("R1#abcd")
	_, shut = servers[1].counts()
	assert.Equal(t, 1, shut, "withdrawing twice sends one goodbye")

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, registered, 2)
}

func TestTXTRecords(t *testing.T) {
	t.Parallel()
	records := txtRecords(map[string]string{"meta": "a=b", "v": "1"})
	assert.Equal(t, []string{"meta=a=b", "v=1"}, records)
	assert.Equal(t, map[string]string{"meta": "a=b", "v": "1", "flag": ""}, parseTXT(append(records, "flag", "")))
}

func TestHostLabel(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "den-s-room-lan-1f2e", hostLabel("Den's Room#lan-1F2E"))
	assert.Equal(t, "room", hostLabel("###"))
	assert.Len(t, hostLabel(strings.Repeat("a", 100)), 63)
}

func TestServiceType(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "_snakegame._tcp", serviceType("_snakegame._tcp."))
	assert.Equal(t, "_snakegame._tcp", serviceType("_snakegame._tcp"))
}

func TestListenDialLoopback(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	ln, err := Listen(ctx, "127.0.0.1", 0)
	require.NoError(t, err)
	defer ln.Close()

	port := ln.Addr().(*net.TCPAddr).Port
	assert.NotZero(t, port)

	go func() {
		if conn, err := ln.Accept(); err == nil {
			conn.Close()
		}
	}()

	conn, err := Dial(ctx, "127.0.0.1", port)
	require.NoError(t, err)
	conn.Close()
}

func TestDialHonoursContext(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Dial(ctx, "127.0.0.1", 1)
	assert.Error(t, err)
}

func TestUsableHostAddress(t *testing.T) {
	t.Parallel()
	assert.False(t, UsableHostAddress(""))
	assert.False(t, UsableHostAddress("127.0.0.1"))
	assert.True(t, UsableHostAddress("192.168.1.5"))
}

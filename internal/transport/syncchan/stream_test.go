package syncchan

import (
	"bufio"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/iamasit07/snakesync/internal/domain"
	"github.com/iamasit07/snakesync/internal/protocol"
	"github.com/iamasit07/snakesync/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pipePair(t *testing.T) (*StreamChannel, *StreamChannel) {
	t.Helper()
	a, b := net.Pipe()
	left := New(a, domain.LAN, "left", WithLogger(logger.Nop()))
	right := New(b, domain.LAN, "right", WithLogger(logger.Nop()))
	t.Cleanup(func() {
		left.Close()
		right.Close()
	})
	return left, right
}

func receive(t *testing.T, ch Channel) protocol.Packet {
	t.Helper()
	select {
	case p, ok := <-ch.Incoming():
		require.True(t, ok, "incoming closed")
		return p
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for packet")
		return protocol.Packet{}
	}
}

func TestSendReceiveInOrder(t *testing.T) {
	t.Parallel()
	left, right := pipePair(t)

	go func() {
		for i := 0; i < 20; i++ {
			left.Send(protocol.NewPacket(protocol.Custom, map[string]any{"seq": i}))
		}
	}()

	for i := 0; i < 20; i++ {
		p := receive(t, right)
		seq, _ := protocol.Int(p.Payload, "seq")
		assert.Equal(t, int64(i), seq)
	}
}

func TestMalformedLinesAreSkipped(t *testing.T) {
	t.Parallel()
	a, b := net.Pipe()
	ch := New(b, domain.Bluetooth, "aa:bb", WithLogger(logger.Nop()))
	t.Cleanup(func() {
		ch.Close()
		a.Close()
	})

	go func() {
		w := bufio.NewWriter(a)
		w.WriteString("not a packet\n")
		w.WriteString(`{"type":"UNKNOWN","payload":{}}` + "\n")
		w.WriteString(protocol.Encode(protocol.HeartbeatPacket("room-1")) + "\n")
		w.Flush()
	}()

	p := receive(t, ch)
	assert.Equal(t, protocol.Heartbeat, p.Type)
	assert.Equal(t, "room-1", p.Payload["roomId"])
	assert.Equal(t, domain.Bluetooth, ch.Transport())
	assert.Equal(t, "aa:bb", ch.RemoteAddr())
}

func TestEndOfStreamClosesIncoming(t *testing.T) {
	t.Parallel()
	left, right := pipePair(t)

	require.NoError(t, left.Close())

	select {
	case _, ok := <-right.Incoming():
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("incoming was not closed")
	}
	<-right.Done()
	assert.ErrorIs(t, right.Send(protocol.HeartbeatPacket("r")), domain.ErrClosed)
}

func TestCloseIsIdempotent(t *testing.T) {
	t.Parallel()
	left, _ := pipePair(t)

	assert.NoError(t, left.Close())
	assert.NoError(t, left.Close())
	assert.ErrorIs(t, left.Send(protocol.HeartbeatPacket("r")), domain.ErrClosed)
}

func TestConcurrentSendsDoNotInterleave(t *testing.T) {
	t.Parallel()
	left, right := pipePair(t)

	const senders, each = 4, 25
	var wg sync.WaitGroup
	for s := 0; s < senders; s++ {
		wg.Add(1)
		go func(s int) {
			defer wg.Done()
			for i := 0; i < each; i++ {
				left.Send(protocol.NewPacket(protocol.Custom, map[string]any{"sender": s, "pad": "xxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxx"}))
			}
		}(s)
	}

	for i := 0; i < senders*each; i++ {
		p := receive(t, right)
		assert.Equal(t, protocol.Custom, p.Type)
	}
	wg.Wait()
}

func TestRateLimitDropsFlood(t *testing.T) {
	t.Parallel()
	a, b := net.Pipe()
	ch := New(b, domain.LAN, "flood", WithLogger(logger.Nop()), WithRateLimit(0, 3))
	t.Cleanup(func() {
		ch.Close()
		a.Close()
	})

	go func() {
		for i := 0; i < 10; i++ {
			io.WriteString(a, protocol.Encode(protocol.HeartbeatPacket("r"))+"\n")
		}
		a.Close()
	}()

	count := 0
	for range ch.Incoming() {
		count++
	}
	assert.Equal(t, 3, count)
}

func TestTCPConstructor(t *testing.T) {
	t.Parallel()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	client := NewTCP(conn, WithLogger(logger.Nop()))
	defer client.Close()

	server := NewTCP(<-accepted, WithLogger(logger.Nop()))
	defer server.Close()

	require.NoError(t, client.Send(protocol.JoinPacket(protocol.Join{PlayerID: "p", Name: "n"})))
	p := receive(t, server)
	assert.Equal(t, protocol.PlayerJoin, p.Type)
	assert.Equal(t, domain.LAN, server.Transport())
}

func TestOversizedLineIsDroppedNotFatal(t *testing.T) {
	t.Parallel()
	a, b := net.Pipe()
	ch := New(b, domain.LAN, "big", WithLogger(logger.Nop()))
	t.Cleanup(func() {
		ch.Close()
		a.Close()
	})

	go func() {
		w := bufio.NewWriter(a)
		w.WriteString(strings.Repeat("x", maxLineBytes+10) + "\n")
		w.WriteString(protocol.Encode(protocol.HeartbeatPacket("after")) + "\n")
		w.Flush()
	}()

	p := receive(t, ch)
	assert.Equal(t, protocol.Heartbeat, p.Type)
	assert.Equal(t, "after", p.Payload["roomId"])
	select {
	case <-ch.Done():
		t.Fatal("channel closed on an oversized line")
	default:
	}
}

func TestReadLine(t *testing.T) {
	t.Parallel()
	r := bufio.NewReaderSize(strings.NewReader("short\r\n"+strings.Repeat("y", 40)+"\nok\ntail"), 16)

	line, err := readLine(r, 20)
	require.NoError(t, err)
	assert.Equal(t, "short", line)

	_, err = readLine(r, 20)
	assert.ErrorIs(t, err, errLineTooLong)

	line, err = readLine(r, 20)
	require.NoError(t, err)
	assert.Equal(t, "ok", line)

	line, err = readLine(r, 20)
	require.NoError(t, err)
	assert.Equal(t, "tail", line, "unterminated last line")

	_, err = readLine(r, 20)
	assert.ErrorIs(t, err, io.EOF)
}

func TestWriteTimeoutClosesStuckChannel(t *testing.T) {
	t.Parallel()
	a, b := net.Pipe()
	// nobody reads b, so every write blocks until the deadline
	ch := New(a, domain.LAN, "stuck", WithLogger(logger.Nop()), WithWriteTimeout(50*time.Millisecond))
	t.Cleanup(func() {
		ch.Close()
		b.Close()
	})

	start := time.Now()
	err := ch.Send(protocol.HeartbeatPacket("r"))
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)

	select {
	case <-ch.Done():
	case <-time.After(time.Second):
		t.Fatal("stuck channel stayed open")
	}
}

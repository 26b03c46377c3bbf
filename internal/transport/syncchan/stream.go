package syncchan

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/iamasit07/snakesync/internal/domain"
	"github.com/iamasit07/snakesync/internal/protocol"
	"github.com/iamasit07/snakesync/pkg/logger"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	maxLineBytes        = 1 << 20
	readBufferBytes     = 4096
	incomingBuffer      = 64
	defaultWriteTimeout = 10 * time.Second
)

var errLineTooLong = errors.New("line exceeds the size limit")

type deadlineWriter interface {
	SetWriteDeadline(t time.Time) error
}

// StreamChannel frames packets as newline-delimited lines over any ReadWriteCloser.
type StreamChannel struct {
	rwc       io.ReadWriteCloser
	transport domain.ConnectionType
	remote    string

	// writeMu keeps tick snapshots and heartbeats from interleaving on the wire
	writeMu      sync.Mutex
	w            *bufio.Writer
	writeTimeout time.Duration

	incoming  chan protocol.Packet
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error

	limiter *rate.Limiter
	log     zerolog.Logger
}

type Option func(*StreamChannel)

// WithRateLimit drops inbound lines beyond r per second (with the given burst).
func WithRateLimit(r rate.Limit, burst int) Option {
	return func(c *StreamChannel) {
		c.limiter = rate.NewLimiter(r, burst)
	}
}

func WithWriteTimeout(d time.Duration) Option {
	return func(c *StreamChannel) {
		c.writeTimeout = d
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *StreamChannel) {
		c.log = l
	}
}

// New wraps rwc and starts the receive loop.
func New(rwc io.ReadWriteCloser, transport domain.ConnectionType, remote string, opts ...Option) *StreamChannel {
	c := &StreamChannel{
		rwc:          rwc,
		transport:    transport,
		remote:       remote,
		w:            bufio.NewWriter(rwc),
		writeTimeout: defaultWriteTimeout,
		incoming:     make(chan protocol.Packet, incomingBuffer),
		done:         make(chan struct{}),
		log:          logger.For("SYNC"),
	}
	for _, opt := range opts {
		opt(c)
	}
	go c.readLoop()
	return c
}

func NewTCP(conn net.Conn, opts ...Option) *StreamChannel {
	return New(conn, domain.LAN, conn.RemoteAddr().String(), opts...)
}

func NewRFCOMM(rwc io.ReadWriteCloser, address string, opts ...Option) *StreamChannel {
	return New(rwc, domain.Bluetooth, address, opts...)
}

func (c *StreamChannel) readLoop() {
	defer close(c.incoming)
	defer c.Close()

	r := bufio.NewReaderSize(c.rwc, readBufferBytes)
	for {
		line, err := readLine(r, maxLineBytes)
		if errors.Is(err, errLineTooLong) {
			c.log.Debug().Str("peer", c.remote).Msg("Oversized line dropped")
			continue
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !c.isClosed() && !errors.Is(err, net.ErrClosed) {
				c.log.Warn().Err(err).Str("peer", c.remote).Msg("Receive loop ended")
			}
			return
		}

		if c.limiter != nil && !c.limiter.Allow() {
			c.log.Debug().Str("peer", c.remote).Msg("Inbound rate exceeded, dropping line")
			continue
		}
		p, ok := protocol.Decode(line)
		if !ok {
			continue
		}
		select {
		case c.incoming <- p:
		case <-c.done:
			return
		}
	}
}

// readLine returns the next line without its terminator. A line longer than limit is
// read to its end and reported as errLineTooLong, so the stream stays in sync.
func readLine(r *bufio.Reader, limit int) (string, error) {
	var buf []byte
	tooLong := false
	for {
		chunk, err := r.ReadSlice('\n')
		if !tooLong {
			if len(buf)+len(chunk) > limit+1 {
				tooLong = true
				buf = nil
			} else {
				buf = append(buf, chunk...)
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if err != nil {
			// an unterminated last line still counts
			if errors.Is(err, io.EOF) && len(buf) > 0 && !tooLong {
				return string(buf), nil
			}
			return "", err
		}
		if tooLong {
			return "", errLineTooLong
		}
		return strings.TrimRight(string(buf), "\r\n"), nil
	}
}

func (c *StreamChannel) Send(p protocol.Packet) error {
	if c.isClosed() {
		return domain.ErrClosed
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if dw, ok := c.rwc.(deadlineWriter); ok && c.writeTimeout > 0 {
		dw.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}

	if _, err := c.w.WriteString(protocol.Encode(p) + "\n"); err != nil {
		return c.failWrite(err)
	}
	if err := c.w.Flush(); err != nil {
		return c.failWrite(err)
	}
	return nil
}

// failWrite closes the channel so its owner prunes it; callers only see the error.
func (c *StreamChannel) failWrite(err error) error {
	if c.isClosed() {
		return domain.ErrClosed
	}
	c.log.Warn().Err(err).Str("peer", c.remote).Msg("Send failed, closing channel")
	c.Close()
	return fmt.Errorf("send to %s: %w", c.remote, err)
}

func (c *StreamChannel) Incoming() <-chan protocol.Packet {
	return c.incoming
}

func (c *StreamChannel) Done() <-chan struct{} {
	return c.done
}

func (c *StreamChannel) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.closeErr = c.rwc.Close()
	})
	return c.closeErr
}

func (c *StreamChannel) RemoteAddr() string {
	return c.remote
}

func (c *StreamChannel) Transport() domain.ConnectionType {
	return c.transport
}

func (c *StreamChannel) isClosed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

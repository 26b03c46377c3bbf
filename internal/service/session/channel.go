package session

import (
	"time"

	"github.com/iamasit07/snakesync/internal/transport/syncchan"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// ChannelConfig tunes every sync channel a transport opens, in both directions.
type ChannelConfig struct {
	// InboundRate caps lines per second from one peer. Zero turns the guard off.
	InboundRate  rate.Limit
	InboundBurst int
	WriteTimeout time.Duration
}

func (c ChannelConfig) options(log zerolog.Logger) []syncchan.Option {
	opts := []syncchan.Option{syncchan.WithLogger(log)}
	if c.InboundRate > 0 {
		burst := c.InboundBurst
		if burst <= 0 {
			burst = max(1, int(c.InboundRate))
		}
		opts = append(opts, syncchan.WithRateLimit(c.InboundRate, burst))
	}
	if c.WriteTimeout > 0 {
		opts = append(opts, syncchan.WithWriteTimeout(c.WriteTimeout))
	}
	return opts
}

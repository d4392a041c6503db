// Package loop drives a Network at a fixed tick rate.
package loop

import (
	"context"
	"errors"
	"time"

	"github.com/lcx/hearth/log"
	"github.com/lcx/hearth/metrics"
	"github.com/lcx/hearth/net"
	"go.uber.org/ratelimit"
)

// TickFunc runs game logic once per tick, after the network was polled.
type TickFunc func(dt time.Duration)

type options struct {
	clock ratelimit.Clock
}

// Option configures Run.
type Option func(*options)

// WithClock paces ticks with c instead of the wall clock.
func WithClock(c ratelimit.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// Run polls n and then calls tick, tickRate times per second, until ctx is
// done. A late tick does not make the following ones run faster.
func Run(ctx context.Context, tickRate int, n net.Network, tick TickFunc, opts ...Option) error {
	if tickRate <= 0 {
		return errors.New("loop: tickRate must be positive")
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	rlOpts := []ratelimit.Option{ratelimit.WithoutSlack}
	if o.clock != nil {
		rlOpts = append(rlOpts, ratelimit.WithClock(o.clock))
	}
	rl := ratelimit.New(tickRate, rlOpts...)

	log.Info().Str("side", n.Side().String()).Int("tickRate", tickRate).Msg("tick loop started")
	defer log.Info().Str("side", n.Side().String()).Msg("tick loop stopped")

	var last time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		now := rl.Take()
		var dt time.Duration
		if !last.IsZero() {
			dt = now.Sub(last)
		}
		last = now

		begin := time.Now()
		n.Poll()
		if tick != nil {
			tick(dt)
		}
		metrics.ObserveSince("loop", "tick_duration_ms", begin)
	}
}

package net

import (
	"time"

	"github.com/benbjohnson/clock"
	"github.com/lcx/hearth/log"
)

const (
	// DefaultIdleTimeout drops a connection that sent nothing for this long.
	DefaultIdleTimeout      = 5 * time.Second
	DefaultWriteTimeout     = 2 * time.Second
	DefaultDialTimeout      = 5 * time.Second
	DefaultMaxFramesPerTick = 256
	maxAcceptPerTick        = 64
)

// options is shared by Server and Client; server-only fields are ignored
// by the client.
type options struct {
	logger           *log.GameLogger
	clock            clock.Clock
	filters          FrameFilterChain
	blocked          []string
	idleTimeout      time.Duration
	writeTimeout     time.Duration
	dialTimeout      time.Duration
	handshake        bool
	maxConnections   int
	maxFramesPerTick int
	recvLimit        float64
	recvBurst        int
}

func defaultOptions() options {
	return options{
		clock:            clock.New(),
		idleTimeout:      DefaultIdleTimeout,
		writeTimeout:     DefaultWriteTimeout,
		dialTimeout:      DefaultDialTimeout,
		maxFramesPerTick: DefaultMaxFramesPerTick,
	}
}

// Option configures a Server or Client.
type Option func(*options)

// WithLogger sets the parent logger; the context derives a side-tagged
// child from it.
func WithLogger(l *log.GameLogger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithFilter appends inbound frame filters. They run after the built-in
// side check, block list and rate limit.
func WithFilter(filters ...FrameFilter) Option {
	return func(o *options) {
		o.filters = append(o.filters, filters...)
	}
}

// WithPacketFilter drops inbound packets with the given names.
func WithPacketFilter(names ...string) Option {
	return func(o *options) {
		o.blocked = append(o.blocked, names...)
	}
}

// WithIdleTimeout sets how long a server connection may stay silent.
// Zero disables the sweep.
func WithIdleTimeout(d time.Duration) Option {
	return func(o *options) {
		o.idleTimeout = d
	}
}

// WithWriteTimeout bounds every socket write.
func WithWriteTimeout(d time.Duration) Option {
	return func(o *options) {
		o.writeTimeout = d
	}
}

// WithDialTimeout bounds Client.Connect.
func WithDialTimeout(d time.Duration) Option {
	return func(o *options) {
		o.dialTimeout = d
	}
}

// WithHandshake keeps new server connections Establishing until
// AcceptConnection is called.
func WithHandshake(required bool) Option {
	return func(o *options) {
		o.handshake = required
	}
}

// WithMaxConnections caps the server table; zero means unlimited.
func WithMaxConnections(n int) Option {
	return func(o *options) {
		o.maxConnections = n
	}
}

// WithMaxFramesPerTick caps frames read from one connection per Poll.
func WithMaxFramesPerTick(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxFramesPerTick = n
		}
	}
}

// WithRecvRateLimit limits inbound packets per connection per second.
func WithRecvRateLimit(limit float64, burst int) Option {
	return func(o *options) {
		o.recvLimit = limit
		o.recvBurst = burst
	}
}

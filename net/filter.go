package net

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/lcx/hearth/protocol"
	"golang.org/x/time/rate"
)

var (
	// ErrRateLimited means the connection exceeded its inbound packet rate.
	ErrRateLimited = errors.New("net: inbound rate limit exceeded")
	// ErrFiltered means a filter rejected the packet by name.
	ErrFiltered = errors.New("net: packet filtered")
	// ErrWrongSide means the peer sent a packet its side may not send.
	ErrWrongSide = errors.New("net: packet from wrong side")
)

// Delivery is one inbound frame on its way to the receive buckets.
type Delivery struct {
	// Remote is the peer address.
	Remote string
	Entry  protocol.Entry
	Packet protocol.RawPacket
	// At is when the frame was read.
	At time.Time

	limiter *RecvLimiter
}

// FrameHandleFunc handles a Delivery at the end of, or further down, a
// filter chain.
type FrameHandleFunc func(d *Delivery) error

// FrameFilter intercepts a Delivery. It either calls next or returns an
// error, in which case the frame is dropped and the connection kept.
type FrameFilter func(d *Delivery, next FrameHandleFunc) error

// FrameFilterChain runs filters in order before the final handler.
type FrameFilterChain []FrameFilter

// Handle passes d through every filter and then to f.
func (fc FrameFilterChain) Handle(d *Delivery, f FrameHandleFunc) error {
	if len(fc) == 0 {
		return f(d)
	}
	return fc[0](d, func(d *Delivery) error {
		return fc[1:].Handle(d, f)
	})
}

// sideFilter only lets through packets declared by the remote side.
func sideFilter(remote protocol.Side) FrameFilter {
	return func(d *Delivery, next FrameHandleFunc) error {
		if d.Entry.Side != remote {
			return fmt.Errorf("%w: %q is a %s packet", ErrWrongSide, d.Entry.Name, d.Entry.Side)
		}
		return next(d)
	}
}

// blockList drops packets by name. The set can be swapped at runtime.
type blockList struct {
	names atomic.Pointer[map[string]struct{}]
}

func newBlockList(names []string) *blockList {
	b := &blockList{}
	b.reload(names)
	return b
}

func (b *blockList) reload(names []string) {
	m := make(map[string]struct{}, len(names))
	for _, n := range names {
		m[n] = struct{}{}
	}
	b.names.Store(&m)
}

func (b *blockList) filter(d *Delivery, next FrameHandleFunc) error {
	if _, ok := (*b.names.Load())[d.Entry.Name]; ok {
		return fmt.Errorf("%w: %q", ErrFiltered, d.Entry.Name)
	}
	return next(d)
}

// RecvLimiter is a per-connection token bucket. It never waits: a packet
// arriving without a token is dropped.
type RecvLimiter struct {
	limiter atomic.Pointer[rate.Limiter]
}

// NewRecvLimiter allows limit packets per second with the given burst.
// A limit <= 0 disables limiting.
func NewRecvLimiter(limit float64, burst int) *RecvLimiter {
	l := &RecvLimiter{}
	l.Reload(limit, burst)
	return l
}

// AllowAt takes one token at time now if there is one.
func (l *RecvLimiter) AllowAt(now time.Time) bool {
	return l.limiter.Load().AllowN(now, 1)
}

// Reload swaps the bucket parameters.
func (l *RecvLimiter) Reload(limit float64, burst int) {
	if limit <= 0 {
		l.limiter.Store(rate.NewLimiter(rate.Inf, 0))
		return
	}
	if burst <= 0 {
		burst = 1
	}
	l.limiter.Store(rate.NewLimiter(rate.Limit(limit), burst))
}

func recvLimitFilter(d *Delivery, next FrameHandleFunc) error {
	if d.limiter != nil && !d.limiter.AllowAt(d.At) {
		return ErrRateLimited
	}
	return next(d)
}

// dropReason labels a filter error for metrics.
func dropReason(err error) string {
	switch {
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrFiltered):
		return "filtered"
	case errors.Is(err, ErrWrongSide):
		return "wrong_side"
	default:
		return "filter"
	}
}

package net

import (
	"github.com/lcx/hearth/protocol"
)

// Network is what Server and Client have in common, enough to drive a
// tick loop.
type Network interface {
	// Poll performs one non-blocking network tick.
	Poll()
	Side() protocol.Side
	Protocol() *protocol.Protocol
	ConnectionCount() int
	Close() error
}

var (
	_ Network = (*Server)(nil)
	_ Network = (*Client)(nil)
)

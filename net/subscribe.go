package net

import (
	"github.com/lcx/hearth/protocol"
)

// OnServer calls fn for every P the server received in the last Poll, in
// arrival order per connection. P must be a client packet, so a server
// cannot subscribe to its own packets.
func OnServer[P protocol.ClientPacket](s *Server, fn func(h ConnHandle, p P)) {
	dispatch(s.in, fn)
}

// OnClient calls fn for every P the client received in the last Poll.
func OnClient[P protocol.ServerPacket](c *Client, fn func(p P)) {
	dispatch(c.in, func(_ PeerHandle, p P) {
		fn(p)
	})
}

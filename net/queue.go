package net

import (
	"github.com/lcx/hearth/protocol"
)

type serverEntry struct {
	packets      []protocol.ServerPacket
	destinations []ConnHandle
	broadcast    bool
}

// ServerQueue collects outgoing packets during a tick and sends them in
// push order on Submit.
type ServerQueue struct {
	entries []serverEntry
}

// Push queues pkts for handles.
func (q *ServerQueue) Push(handles []ConnHandle, pkts ...protocol.ServerPacket) {
	if len(pkts) == 0 || len(handles) == 0 {
		return
	}
	q.entries = append(q.entries, serverEntry{
		packets:      append([]protocol.ServerPacket(nil), pkts...),
		destinations: append([]ConnHandle(nil), handles...),
	})
}

// PushBroadcast queues pkts for every Established connection at Submit time.
func (q *ServerQueue) PushBroadcast(pkts ...protocol.ServerPacket) {
	if len(pkts) == 0 {
		return
	}
	q.entries = append(q.entries, serverEntry{
		packets:   append([]protocol.ServerPacket(nil), pkts...),
		broadcast: true,
	})
}

// Len is the number of queued entries.
func (q *ServerQueue) Len() int {
	return len(q.entries)
}

// Submit sends everything queued and leaves the queue empty.
func (q *ServerQueue) Submit(s *Server) {
	entries := q.entries
	q.entries = q.entries[:0]
	for i := range entries {
		e := &entries[i]
		if e.broadcast {
			s.Broadcast(e.packets...)
		} else {
			s.Send(e.destinations, e.packets...)
		}
		*e = serverEntry{}
	}
}

// ClientQueue is the client counterpart of ServerQueue.
type ClientQueue struct {
	packets []protocol.ClientPacket
}

// Push queues pkts.
func (q *ClientQueue) Push(pkts ...protocol.ClientPacket) {
	q.packets = append(q.packets, pkts...)
}

// Len is the number of queued packets.
func (q *ClientQueue) Len() int {
	return len(q.packets)
}

// Submit sends everything queued and leaves the queue empty. Packets are
// dropped when the client is disconnected.
func (q *ClientQueue) Submit(c *Client) {
	pkts := q.packets
	q.packets = q.packets[:0]
	c.Send(pkts...)
	clear(pkts)
}

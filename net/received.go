package net

import (
	"github.com/lcx/hearth/protocol"
)

// received is one inbound packet body and where it came from.
type received[H comparable] struct {
	origin  H
	payload []byte
}

// receivedPackets buckets one tick's inbound packets by id. Within a bucket
// packets from the same origin keep arrival order.
type receivedPackets[H comparable] struct {
	buckets [][]received[H]
}

func newReceivedPackets[H comparable](n int) *receivedPackets[H] {
	return &receivedPackets[H]{buckets: make([][]received[H], n)}
}

func (r *receivedPackets[H]) add(origin H, pkt protocol.RawPacket) {
	if int(pkt.ID) >= len(r.buckets) {
		return
	}
	r.buckets[pkt.ID] = append(r.buckets[pkt.ID], received[H]{origin: origin, payload: pkt.Payload})
}

func (r *receivedPackets[H]) get(id protocol.PacketID) []received[H] {
	if int(id) >= len(r.buckets) {
		return nil
	}
	return r.buckets[id]
}

// reset empties every bucket but keeps the backing arrays.
func (r *receivedPackets[H]) reset() {
	for i := range r.buckets {
		clear(r.buckets[i])
		r.buckets[i] = r.buckets[i][:0]
	}
}

func (r *receivedPackets[H]) len() int {
	n := 0
	for _, b := range r.buckets {
		n += len(b)
	}
	return n
}

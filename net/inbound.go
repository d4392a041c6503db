package net

import (
	"errors"
	"time"

	"github.com/lcx/hearth/log"
	"github.com/lcx/hearth/metrics"
	"github.com/lcx/hearth/protocol"
)

// inbound moves frames from connections into the per-tick buckets. It is
// shared by Server and Client, parameterized by the origin handle type.
type inbound[H comparable] struct {
	proto    *protocol.Protocol
	chain    FrameFilterChain
	blocked  *blockList
	received *receivedPackets[H]
	logger   *log.GameLogger
	side     string
}

func newInbound[H comparable](proto *protocol.Protocol, local protocol.Side, o *options, logger *log.GameLogger) *inbound[H] {
	blocked := newBlockList(o.blocked)
	chain := FrameFilterChain{sideFilter(local.Opposite()), blocked.filter, recvLimitFilter}
	chain = append(chain, o.filters...)
	return &inbound[H]{
		proto:    proto,
		chain:    chain,
		blocked:  blocked,
		received: newReceivedPackets[H](proto.Len()),
		logger:   logger,
		side:     local.String(),
	}
}

// drain reads up to max frames from conn and admits them. It returns
// stateShouldClose with the error once the connection has failed fatally.
func (in *inbound[H]) drain(origin H, conn Connection, remote string, limiter *RecvLimiter, max int, now time.Time) (int, connState, error) {
	state := stateValid
	n := 0
	for i := 0; i < max; i++ {
		pkt, err := conn.NextFrame()
		if err == nil {
			n++
			in.admit(origin, remote, limiter, pkt, now)
			continue
		}
		switch classify(err) {
		case outcomeTransient:
			return n, state, nil
		case outcomeMalformed:
			in.malformed(remote, err)
		case outcomeFatal:
			state.aggregate(stateShouldClose)
			return n, state, err
		default:
			in.logger.Warn().Err(err).Str("remote", remote).Msg("read failed")
			return n, state, nil
		}
	}
	return n, state, nil
}

func (in *inbound[H]) admit(origin H, remote string, limiter *RecvLimiter, pkt protocol.RawPacket, now time.Time) {
	entry, err := in.proto.EntryOf(pkt.ID)
	if err != nil {
		in.malformed(remote, err)
		return
	}
	d := &Delivery{Remote: remote, Entry: entry, Packet: pkt, At: now, limiter: limiter}
	err = in.chain.Handle(d, func(d *Delivery) error {
		in.received.add(origin, d.Packet)
		return nil
	})
	if err != nil {
		reason := dropReason(err)
		if errors.Is(err, ErrWrongSide) {
			in.logger.Warn().Err(err).Str("remote", remote).Msg("drop packet")
		} else {
			in.logger.Debug().Err(err).Str("remote", remote).Msg("drop packet")
		}
		metrics.IncrCounterWithDimGroup("net", "frames_dropped_total", 1, metrics.Dimension{"side": in.side, "reason": reason})
		return
	}
	metrics.IncrCounterWithDimGroup("net", "packets_received_total", 1, metrics.Dimension{"side": in.side})
	metrics.IncrCounterWithDimGroup("net", "bytes_received_total", metrics.Value(pkt.FrameLen()), metrics.Dimension{"side": in.side})
}

func (in *inbound[H]) malformed(remote string, err error) {
	in.logger.Warn().Err(err).Str("remote", remote).Msg("drop malformed frame")
	metrics.IncrCounterWithDimGroup("net", "malformed_frames_total", 1, metrics.Dimension{"side": in.side})
}

// dispatch decodes every P received this tick and hands it to fn. Bodies
// that do not decode are logged and skipped.
func dispatch[H comparable, P protocol.Packet](in *inbound[H], fn func(origin H, p P)) {
	var zero P
	name := zero.PacketName()
	id, err := in.proto.IDFor(zero)
	if err != nil {
		panic(err)
	}
	for _, r := range in.received.get(id) {
		p, err := protocol.DecodeBody[P](in.proto, r.payload)
		if err != nil {
			in.logger.Warn().Err(err).Str("packet", name).Msg("drop undecodable packet")
			metrics.IncrCounterWithDimGroup("net", "malformed_frames_total", 1, metrics.Dimension{"side": in.side})
			continue
		}
		fn(r.origin, p)
	}
}

// encodeAll frames pkts once so they can be emitted to many connections.
// An unregistered packet type is a programming error and panics; a body
// too large for one frame is logged and dropped.
func encodeAll[P protocol.Packet](proto *protocol.Protocol, logger *log.GameLogger, side string, pkts []P) []protocol.RawPacket {
	out := make([]protocol.RawPacket, 0, len(pkts))
	for _, p := range pkts {
		raw, err := protocol.Encode(proto, p)
		if err != nil {
			if errors.Is(err, protocol.ErrConfiguration) {
				panic(err)
			}
			logger.Warn().Err(err).Str("packet", p.PacketName()).Msg("drop unencodable packet")
			metrics.IncrCounterWithDimGroup("net", "frames_dropped_total", 1, metrics.Dimension{"side": side, "reason": "encode"})
			continue
		}
		out = append(out, raw)
	}
	return out
}

// emitAll writes pkts in order and stops at the first failure.
func emitAll(conn Connection, side string, pkts []protocol.RawPacket) error {
	for _, pkt := range pkts {
		if err := conn.Emit(pkt); err != nil {
			return err
		}
		metrics.IncrCounterWithDimGroup("net", "packets_sent_total", 1, metrics.Dimension{"side": side})
		metrics.IncrCounterWithDimGroup("net", "bytes_sent_total", metrics.Value(pkt.FrameLen()), metrics.Dimension{"side": side})
	}
	return nil
}

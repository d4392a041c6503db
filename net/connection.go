package net

import (
	"github.com/lcx/hearth/protocol"
)

// Connection yields and emits whole frames over some channel.
type Connection interface {
	// NextFrame returns the next complete frame. ErrWouldBlock means no
	// complete frame is available yet; frames split across reads are
	// reassembled internally.
	NextFrame() (protocol.RawPacket, error)
	// Emit writes one frame. The packet's payload is not modified.
	Emit(pkt protocol.RawPacket) error
	Close() error
	RemoteAddr() string
}

const (
	readChunk = 4096
	// maxFrame bounds the reassembly buffer: one whole frame plus a chunk.
	maxFrame = protocol.HeaderSize + protocol.MaxBodySize
)

// streamConn frames a StreamChannel. Bytes of an incomplete frame stay in
// buf across polls.
type streamConn struct {
	ch  StreamChannel
	buf []byte
	off int
	// err is a fatal read error seen while buffered frames remained.
	err error
}

// NewStreamConnection frames a byte stream.
func NewStreamConnection(ch StreamChannel) Connection {
	return &streamConn{ch: ch}
}

func (c *streamConn) NextFrame() (protocol.RawPacket, error) {
	for {
		if pkt, ok := c.takeFrame(); ok {
			return pkt, nil
		}
		if c.err != nil {
			return protocol.RawPacket{}, c.err
		}
		if err := c.fill(); err != nil {
			return protocol.RawPacket{}, err
		}
	}
}

// takeFrame cuts one complete frame off the front of the buffer.
func (c *streamConn) takeFrame() (protocol.RawPacket, bool) {
	pending := c.buf[c.off:]
	hdr, err := protocol.DecodeHeader(pending)
	if err != nil {
		return protocol.RawPacket{}, false
	}
	end := protocol.HeaderSize + int(hdr.Size)
	if len(pending) < end {
		return protocol.RawPacket{}, false
	}
	var payload []byte
	if hdr.Size > 0 {
		payload = make([]byte, hdr.Size)
		copy(payload, pending[protocol.HeaderSize:end])
	}
	c.off += end
	if c.off == len(c.buf) {
		c.buf, c.off = c.buf[:0], 0
	}
	return protocol.RawPacket{ID: hdr.ID, Size: hdr.Size, Payload: payload}, true
}

// fill reads once from the channel. A fatal error that arrives together
// with data is deferred until the buffered frames are consumed.
func (c *streamConn) fill() error {
	if c.off > 0 {
		n := copy(c.buf, c.buf[c.off:])
		c.buf, c.off = c.buf[:n], 0
	}
	if cap(c.buf)-len(c.buf) < readChunk {
		grown := make([]byte, len(c.buf), min(2*cap(c.buf)+readChunk, maxFrame+readChunk))
		copy(grown, c.buf)
		c.buf = grown
	}
	n, err := c.ch.ReadAvailable(c.buf[len(c.buf):cap(c.buf)])
	c.buf = c.buf[:len(c.buf)+n]
	if err != nil {
		if n > 0 && classify(err) == outcomeFatal {
			c.err = err
			return nil
		}
		return err
	}
	if n == 0 {
		return ErrWouldBlock
	}
	return nil
}

func (c *streamConn) Emit(pkt protocol.RawPacket) error {
	var hdr [protocol.HeaderSize]byte
	protocol.AppendHeader(hdr[:0], pkt.Header())
	if pkt.Size == 0 {
		return c.ch.Writev(hdr[:])
	}
	return c.ch.Writev(hdr[:], pkt.Payload)
}

func (c *streamConn) Close() error {
	return c.ch.Close()
}

func (c *streamConn) RemoteAddr() string {
	if a := c.ch.RemoteAddr(); a != nil {
		return a.String()
	}
	return ""
}

// messageConn frames a MessageChannel: every message is exactly one frame.
type messageConn struct {
	ch MessageChannel
}

// NewMessageConnection frames a message transport.
func NewMessageConnection(ch MessageChannel) Connection {
	return &messageConn{ch: ch}
}

// NextFrame returns an error wrapping protocol.ErrMalformedFrame for a
// message whose length disagrees with its header; the message is consumed.
func (c *messageConn) NextFrame() (protocol.RawPacket, error) {
	msg, err := c.ch.ReadMessage()
	if err != nil {
		return protocol.RawPacket{}, err
	}
	return protocol.ParseFrame(msg)
}

func (c *messageConn) Emit(pkt protocol.RawPacket) error {
	return c.ch.WriteMessage(pkt.AppendFrame(make([]byte, 0, pkt.FrameLen())))
}

func (c *messageConn) Close() error {
	return c.ch.Close()
}

func (c *messageConn) RemoteAddr() string {
	if a := c.ch.RemoteAddr(); a != nil {
		return a.String()
	}
	return ""
}

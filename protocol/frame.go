package protocol

import (
	"encoding/binary"
	"fmt"
	"math"
)

// HeaderSize 帧头长度: 2 字节 id + 2 字节 body 长度, 大端.
const HeaderSize = 4

// MaxBodySize is the largest body a frame can carry.
const MaxBodySize = math.MaxUint16

// Header 帧头.
type Header struct {
	ID   PacketID
	Size uint16
}

// AppendHeader appends the encoded header to b.
func AppendHeader(b []byte, h Header) []byte {
	b = binary.BigEndian.AppendUint16(b, uint16(h.ID))
	return binary.BigEndian.AppendUint16(b, h.Size)
}

// DecodeHeader reads the header at the start of buf.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, fmt.Errorf("%w: header needs %d bytes, have %d", ErrMalformedFrame, HeaderSize, len(buf))
	}
	return Header{
		ID:   PacketID(binary.BigEndian.Uint16(buf[0:2])),
		Size: binary.BigEndian.Uint16(buf[2:4]),
	}, nil
}

// RawPacket is one frame with its header parsed. Payload is never modified
// after construction, so one RawPacket may be emitted to many connections.
type RawPacket struct {
	ID      PacketID
	Size    uint16
	Payload []byte
}

// NewRawPacket wraps an already encoded body.
func NewRawPacket(id PacketID, payload []byte) (RawPacket, error) {
	if len(payload) > MaxBodySize {
		return RawPacket{}, fmt.Errorf("%w: %d bytes", ErrBodyTooLarge, len(payload))
	}
	return RawPacket{ID: id, Size: uint16(len(payload)), Payload: payload}, nil
}

// Header ...
func (r RawPacket) Header() Header {
	return Header{ID: r.ID, Size: r.Size}
}

// FrameLen is the encoded size including the header.
func (r RawPacket) FrameLen() int {
	return HeaderSize + int(r.Size)
}

// AppendFrame appends the whole encoded frame to b.
func (r RawPacket) AppendFrame(b []byte) []byte {
	b = AppendHeader(b, r.Header())
	return append(b, r.Payload...)
}

// ParseFrame parses a buffer that holds exactly one frame, as delivered by
// message transports. The payload aliases buf.
func ParseFrame(buf []byte) (RawPacket, error) {
	h, err := DecodeHeader(buf)
	if err != nil {
		return RawPacket{}, err
	}
	if body := len(buf) - HeaderSize; body != int(h.Size) {
		return RawPacket{}, fmt.Errorf("%w: header says %d body bytes, message has %d", ErrMalformedFrame, h.Size, body)
	}
	var payload []byte
	if h.Size > 0 {
		payload = buf[HeaderSize:]
	}
	return RawPacket{ID: h.ID, Size: h.Size, Payload: payload}, nil
}

package protocol

import (
	"fmt"
)

// Encode serializes pkt with the protocol codec and frames it. Errors
// wrapping ErrConfiguration mean pkt's type was never registered.
func Encode(proto *Protocol, pkt Packet) (RawPacket, error) {
	id, err := proto.IDFor(pkt)
	if err != nil {
		return RawPacket{}, err
	}
	body, err := proto.codec.Marshal(pkt)
	if err != nil {
		return RawPacket{}, fmt.Errorf("protocol: encode %q: %w", pkt.PacketName(), err)
	}
	raw, err := NewRawPacket(id, body)
	if err != nil {
		return RawPacket{}, fmt.Errorf("protocol: encode %q: %w", pkt.PacketName(), err)
	}
	return raw, nil
}

// Decode deserializes raw as a P. A raw packet whose id is not P's id is a
// caller error and wraps ErrConfiguration.
func Decode[P Packet](proto *Protocol, raw RawPacket) (P, error) {
	var zero P
	id, err := proto.IDFor(zero)
	if err != nil {
		return zero, err
	}
	if id != raw.ID {
		return zero, fmt.Errorf("%w: packet id %d is not %q", ErrConfiguration, raw.ID, zero.PacketName())
	}
	return DecodeBody[P](proto, raw.Payload)
}

// DecodeBody deserializes a frame body as a P. Codec failures, including a
// codec that panics on hostile input, wrap ErrMalformedFrame.
func DecodeBody[P Packet](proto *Protocol, body []byte) (p P, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero P
			p, err = zero, fmt.Errorf("%w: decode %q: %v", ErrMalformedFrame, zero.PacketName(), r)
		}
	}()
	if uerr := proto.codec.Unmarshal(body, &p); uerr != nil {
		var zero P
		return zero, fmt.Errorf("%w: decode %q: %v", ErrMalformedFrame, zero.PacketName(), uerr)
	}
	return p, nil
}

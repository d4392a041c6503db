package protocol

import (
	"errors"
	"fmt"
)

// ErrConfiguration is wrapped by every error caused by the protocol table
// itself rather than by peer input.
var ErrConfiguration = errors.New("protocol: configuration error")

var (
	// ErrDuplicatePacket 同名包重复注册.
	ErrDuplicatePacket = fmt.Errorf("%w: duplicate packet", ErrConfiguration)
	// ErrUnknownPacket 包未注册.
	ErrUnknownPacket = fmt.Errorf("%w: unknown packet", ErrConfiguration)
	// ErrUnknownID id越界.
	ErrUnknownID = fmt.Errorf("%w: unknown packet id", ErrConfiguration)
	// ErrInvalidPacket is returned for packets that can never be registered.
	ErrInvalidPacket = fmt.Errorf("%w: invalid packet", ErrConfiguration)
	// ErrTooManyPackets is returned when the id space is exhausted.
	ErrTooManyPackets = fmt.Errorf("%w: too many packets", ErrConfiguration)
)

var (
	// ErrMalformedFrame is wrapped by every error caused by bytes received
	// from a peer. Such errors are local to the offending frame.
	ErrMalformedFrame = errors.New("protocol: malformed frame")
	// ErrBodyTooLarge is returned when an encoded body does not fit in the
	// 16-bit length field.
	ErrBodyTooLarge = errors.New("protocol: body too large")
)

// Package codec turns packet values into frame bodies and back.
package codec

import (
	"errors"
)

var errNilTarget = errors.New("codec: nil decode target")

// ErrCorrupt is returned when a body cannot be decoded because the bytes
// are truncated or inconsistent.
var ErrCorrupt = errors.New("codec: corrupt body")

// Codec 解码器.
type Codec interface {
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// BodyMarshaler is implemented by packets that encode their own body.
// MarshalBody appends the body to b and returns the extended slice.
type BodyMarshaler interface {
	MarshalBody(b []byte) ([]byte, error)
}

// BodyUnmarshaler is implemented by packets that decode their own body.
type BodyUnmarshaler interface {
	UnmarshalBody(data []byte) error
}

// Default returns the codec used by protocols that do not pick one.
func Default() Codec {
	return Msgpack{}
}

package codec

import (
	"fmt"

	"github.com/shamaton/msgpack/v2"
)

// Msgpack encodes structs as positional msgpack arrays, so field order is
// part of the wire contract and field names are not.
type Msgpack struct{}

// Name ...
func (Msgpack) Name() string {
	return "msgpack"
}

// Marshal 打包.
func (Msgpack) Marshal(v any) ([]byte, error) {
	if m, ok := v.(BodyMarshaler); ok {
		return m.MarshalBody(nil)
	}
	return msgpack.MarshalAsArray(v)
}

// Unmarshal 解包. An empty body leaves v at its zero value. Truncated or
// corrupt input is reported as an error, never as a panic.
func (Msgpack) Unmarshal(data []byte, v any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrCorrupt, r)
		}
	}()
	if v == nil {
		return errNilTarget
	}
	if len(data) == 0 {
		return nil
	}
	if u, ok := v.(BodyUnmarshaler); ok {
		return u.UnmarshalBody(data)
	}
	return msgpack.UnmarshalAsArray(data, v)
}

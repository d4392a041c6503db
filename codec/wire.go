package codec

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Helpers for hand-written protobuf-wire bodies. Packets on hot paths
// implement BodyMarshaler with these instead of going through reflection.

// ScanFields walks every field of a protobuf-wire body. value holds the raw
// field value without its tag.
func ScanFields(b []byte, fn func(num protowire.Number, typ protowire.Type, value []byte) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("codec: bad tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		m := protowire.ConsumeFieldValue(num, typ, b)
		if m < 0 {
			return fmt.Errorf("codec: bad field %d: %w", num, protowire.ParseError(m))
		}
		if err := fn(num, typ, b[:m]); err != nil {
			return err
		}
		b = b[m:]
	}
	return nil
}

// AppendFloat32 ...
func AppendFloat32(b []byte, num protowire.Number, v float32) []byte {
	b = protowire.AppendTag(b, num, protowire.Fixed32Type)
	return protowire.AppendFixed32(b, math.Float32bits(v))
}

// AppendUint ...
func AppendUint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

// AppendString ...
func AppendString(b []byte, num protowire.Number, s string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

// Float32 reads a fixed32 field value.
func Float32(typ protowire.Type, value []byte) (float32, error) {
	if typ != protowire.Fixed32Type {
		return 0, fmt.Errorf("codec: want fixed32, got wire type %d", typ)
	}
	v, n := protowire.ConsumeFixed32(value)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	return math.Float32frombits(v), nil
}

// Uint reads a varint field value.
func Uint(typ protowire.Type, value []byte) (uint64, error) {
	if typ != protowire.VarintType {
		return 0, fmt.Errorf("codec: want varint, got wire type %d", typ)
	}
	v, n := protowire.ConsumeVarint(value)
	if n < 0 {
		return 0, protowire.ParseError(n)
	}
	return v, nil
}

// String reads a length-delimited field value.
func String(typ protowire.Type, value []byte) (string, error) {
	if typ != protowire.BytesType {
		return "", fmt.Errorf("codec: want bytes, got wire type %d", typ)
	}
	v, n := protowire.ConsumeString(value)
	if n < 0 {
		return "", protowire.ParseError(n)
	}
	return v, nil
}

package net

import (
	"net"
)

// StreamChannel is a byte stream that never blocks on read.
type StreamChannel interface {
	// ReadAvailable copies whatever bytes are buffered into p. It returns
	// ErrWouldBlock when nothing is buffered and io.EOF when the peer has
	// closed its side.
	ReadAvailable(p []byte) (int, error)
	// Writev writes the buffers in order as one contiguous byte run.
	Writev(bufs ...[]byte) error
	Close() error
	RemoteAddr() net.Addr
}

// MessageChannel is a transport that preserves message boundaries.
type MessageChannel interface {
	// ReadMessage returns the next whole message, or ErrWouldBlock.
	ReadMessage() ([]byte, error)
	WriteMessage(msg []byte) error
	Close() error
	RemoteAddr() net.Addr
}

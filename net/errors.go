package net

import (
	"errors"
	"io"
	"net"
	"os"
	"syscall"

	"github.com/lcx/hearth/protocol"
)

var (
	// ErrWouldBlock means a non-blocking operation has nothing to do right now.
	ErrWouldBlock = errors.New("net: operation would block")
	// ErrStaleHandle is returned for a handle whose connection was removed.
	ErrStaleHandle = errors.New("net: stale connection handle")
	// ErrNotConnected is returned by client operations without a connection.
	ErrNotConnected = errors.New("net: not connected")
	// ErrTableFull is returned when MaxConnections is reached.
	ErrTableFull = errors.New("net: connection table full")
)

// outcome is how a single I/O error affects its connection.
type outcome uint8

const (
	// outcomeTransient: retry on the next poll.
	outcomeTransient outcome = iota
	// outcomeMalformed: drop the offending frame, keep the connection.
	outcomeMalformed
	// outcomeFatal: the connection is dead.
	outcomeFatal
	// outcomeOther: log it and keep the connection.
	outcomeOther
)

func (o outcome) String() string {
	switch o {
	case outcomeTransient:
		return "transient"
	case outcomeMalformed:
		return "malformed"
	case outcomeFatal:
		return "fatal"
	default:
		return "other"
	}
}

var fatalErrors = []error{
	io.EOF,
	io.ErrUnexpectedEOF,
	net.ErrClosed,
	syscall.ECONNRESET,
	syscall.ECONNABORTED,
	syscall.ECONNREFUSED,
	syscall.EPIPE,
	syscall.ENOTCONN,
	errors.ErrUnsupported,
}

func classify(err error) outcome {
	if err == nil {
		return outcomeTransient
	}
	if errors.Is(err, ErrWouldBlock) || errors.Is(err, os.ErrDeadlineExceeded) {
		return outcomeTransient
	}
	if errors.Is(err, protocol.ErrMalformedFrame) {
		return outcomeMalformed
	}
	for _, target := range fatalErrors {
		if errors.Is(err, target) {
			return outcomeFatal
		}
	}
	return outcomeOther
}

// connState is the per-poll verdict on a connection.
type connState uint8

const (
	stateValid connState = iota
	stateShouldClose
)

// aggregate folds another verdict in; ShouldClose is sticky.
func (s *connState) aggregate(other connState) {
	if other == stateShouldClose {
		*s = stateShouldClose
	}
}

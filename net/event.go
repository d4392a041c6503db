package net

import (
	"time"
)

// State is where a server connection is in its lifecycle.
type State uint8

const (
	// StateEstablishing connections are read but excluded from broadcasts.
	StateEstablishing State = iota
	StateEstablished
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateEstablishing:
		return "establishing"
	case StateEstablished:
		return "established"
	default:
		return "closed"
	}
}

// Reason says why a connection went away.
type Reason uint8

const (
	// ReasonIO is a fatal read or write error, including a clean EOF.
	ReasonIO Reason = iota + 1
	ReasonTimeout
	// ReasonKicked is a local Disconnect call.
	ReasonKicked
	ReasonShutdown
)

func (r Reason) String() string {
	switch r {
	case ReasonIO:
		return "io"
	case ReasonTimeout:
		return "timeout"
	case ReasonKicked:
		return "kicked"
	case ReasonShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// DisconnectEvent reports one connection the server removed. Profile is
// whatever AcceptConnection attached, or nil.
type DisconnectEvent struct {
	Handle  ConnHandle
	Remote  string
	Profile any
	Reason  Reason
	// Err is the I/O error behind ReasonIO.
	Err error
}

// ClientDisconnectEvent reports the loss of the client's connection.
type ClientDisconnectEvent struct {
	Remote string
	Reason Reason
	Err    error
}

// PeerInfo is a snapshot of one server connection.
type PeerInfo struct {
	Handle      ConnHandle
	Remote      string
	State       State
	Profile     any
	ConnectedAt time.Time
	LastRecv    time.Time
}

// Package protocol defines the packet registry, the side typing of packets
// and the 4-byte frame layout shared by client and server.
package protocol

// Side 表示一个包的发送方.
type Side uint8

const (
	// SideClient marks packets sent by clients.
	SideClient Side = iota + 1
	// SideServer marks packets sent by the server.
	SideServer
)

func (s Side) String() string {
	switch s {
	case SideClient:
		return "client"
	case SideServer:
		return "server"
	default:
		return "unknown"
	}
}

// Opposite returns the side that receives packets sent by s.
func (s Side) Opposite() Side {
	switch s {
	case SideClient:
		return SideServer
	case SideServer:
		return SideClient
	default:
		return s
	}
}

// Packet is a message type that can be registered in a Protocol.
// PacketName must be stable across builds and must not depend on the
// receiver's contents.
type Packet interface {
	PacketName() string
	Side() Side
}

// ClientPacket is a packet sent from client to server. It is implemented by
// embedding FromClient.
type ClientPacket interface {
	Packet
	clientPacket()
}

// ServerPacket is a packet sent from server to client. It is implemented by
// embedding FromServer.
type ServerPacket interface {
	Packet
	serverPacket()
}

// FromClient is embedded in client-sent packet structs.
//
//	type LoginStart struct {
//		protocol.FromClient
//		Username string
//	}
type FromClient struct{}

// Side ...
func (FromClient) Side() Side { return SideClient }

func (FromClient) clientPacket() {}

// FromServer is embedded in server-sent packet structs.
type FromServer struct{}

// Side ...
func (FromServer) Side() Side { return SideServer }

func (FromServer) serverPacket() {}

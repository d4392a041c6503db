// Package game is a small lobby protocol built on hearth: login, ping,
// movement and chat.
package game

import (
	"sync"

	"github.com/lcx/hearth/codec"
	"github.com/lcx/hearth/protocol"
	"google.golang.org/protobuf/encoding/protowire"
)

// Vec2 is a world position.
type Vec2 struct {
	X float32
	Y float32
}

// LoginStart asks the server for a player slot.
type LoginStart struct {
	protocol.FromClient
	Username string
}

func (LoginStart) PacketName() string { return "login.start" }

// LoginSuccess answers LoginStart.
type LoginSuccess struct {
	protocol.FromServer
	PlayerID uint32
	Spawn    Vec2
}

func (LoginSuccess) PacketName() string { return "login.success" }

// Ping is also the client heartbeat.
type Ping struct {
	protocol.FromClient
	Seq uint32
	// SentAt is the client's clock in unix milliseconds, echoed back.
	SentAt int64
}

func (Ping) PacketName() string { return "ping" }

// Pong echoes a Ping.
type Pong struct {
	protocol.FromServer
	Seq    uint32
	SentAt int64
}

func (Pong) PacketName() string { return "pong" }

// PlayerMove is sent many times per second, so it carries a hand-written
// protobuf-wire body.
type PlayerMove struct {
	protocol.FromClient
	X float32
	Y float32
}

func (PlayerMove) PacketName() string { return "player.move" }

// MarshalBody implements codec.BodyMarshaler.
func (p PlayerMove) MarshalBody(b []byte) ([]byte, error) {
	b = codec.AppendFloat32(b, 1, p.X)
	return codec.AppendFloat32(b, 2, p.Y), nil
}

// UnmarshalBody implements codec.BodyUnmarshaler.
func (p *PlayerMove) UnmarshalBody(data []byte) error {
	return codec.ScanFields(data, func(num protowire.Number, typ protowire.Type, value []byte) error {
		var err error
		switch num {
		case 1:
			p.X, err = codec.Float32(typ, value)
		case 2:
			p.Y, err = codec.Float32(typ, value)
		}
		return err
	})
}

// PlayerMoved relays a PlayerMove to the other players.
type PlayerMoved struct {
	protocol.FromServer
	PlayerID uint32
	X        float32
	Y        float32
}

func (PlayerMoved) PacketName() string { return "player.moved" }

// MarshalBody implements codec.BodyMarshaler.
func (p PlayerMoved) MarshalBody(b []byte) ([]byte, error) {
	b = codec.AppendUint(b, 1, uint64(p.PlayerID))
	b = codec.AppendFloat32(b, 2, p.X)
	return codec.AppendFloat32(b, 3, p.Y), nil
}

// UnmarshalBody implements codec.BodyUnmarshaler.
func (p *PlayerMoved) UnmarshalBody(data []byte) error {
	return codec.ScanFields(data, func(num protowire.Number, typ protowire.Type, value []byte) error {
		switch num {
		case 1:
			v, err := codec.Uint(typ, value)
			p.PlayerID = uint32(v)
			return err
		case 2:
			v, err := codec.Float32(typ, value)
			p.X = v
			return err
		case 3:
			v, err := codec.Float32(typ, value)
			p.Y = v
			return err
		}
		return nil
	})
}

// PlayerJoined announces a player to everyone else, and every present
// player to the newcomer.
type PlayerJoined struct {
	protocol.FromServer
	PlayerID uint32
	Name     string
	Pos      Vec2
}

func (PlayerJoined) PacketName() string { return "player.joined" }

// PlayerLeft ...
type PlayerLeft struct {
	protocol.FromServer
	PlayerID uint32
}

func (PlayerLeft) PacketName() string { return "player.left" }

// ChatSend is a chat line typed by a player.
type ChatSend struct {
	protocol.FromClient
	Text string
}

func (ChatSend) PacketName() string { return "chat.send" }

// ChatBroadcast is a chat line as seen by everyone.
type ChatBroadcast struct {
	protocol.FromServer
	PlayerID uint32
	Name     string
	Text     string
}

func (ChatBroadcast) PacketName() string { return "chat.broadcast" }

// RegisterLogin registers the login exchange.
func RegisterLogin(b *protocol.Builder) {
	b.Register(LoginStart{}, LoginSuccess{})
}

// RegisterPing registers the heartbeat.
func RegisterPing(b *protocol.Builder) {
	b.Register(Ping{}, Pong{})
}

// RegisterPlay registers the in-lobby packets.
func RegisterPlay(b *protocol.Builder) {
	b.Register(
		PlayerMove{},
		PlayerMoved{},
		PlayerJoined{},
		PlayerLeft{},
		ChatSend{},
		ChatBroadcast{},
	)
}

var buildProtocol = sync.OnceValue(func() *protocol.Protocol {
	return protocol.NewBuilder().
		Group(RegisterLogin).
		Group(RegisterPing).
		Group(RegisterPlay).
		MustBuild()
})

// Protocol returns the lobby protocol. Both peers must use it unchanged.
func Protocol() *protocol.Protocol {
	return buildProtocol()
}

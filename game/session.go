package game

import (
	"time"

	"github.com/lcx/hearth/net"
)

// Session is the client side of the protocol: it logs in, keeps the
// heartbeat going and tracks the other players.
type Session struct {
	client   *net.Client
	queue    net.ClientQueue
	name     string
	interval time.Duration
	now      func() time.Time

	playerID uint32
	seq      uint32
	lastPing time.Time
	rtt      time.Duration
	roster   map[uint32]*Player

	// OnChat, when set, receives every chat line.
	OnChat func(from string, text string)
}

// NewSession sends LoginStart{name} on the first Tick and a Ping every
// interval after that.
func NewSession(c *net.Client, name string, interval time.Duration) *Session {
	return &Session{
		client:   c,
		name:     name,
		interval: interval,
		now:      time.Now,
		roster:   make(map[uint32]*Player),
	}
}

// PlayerID is zero until LoginSuccess arrives.
func (s *Session) PlayerID() uint32 { return s.playerID }

// LoggedIn ...
func (s *Session) LoggedIn() bool { return s.playerID != 0 }

// RTT is the round trip of the last answered Ping.
func (s *Session) RTT() time.Duration { return s.rtt }

// Roster returns the other players by id.
func (s *Session) Roster() map[uint32]Player {
	out := make(map[uint32]Player, len(s.roster))
	for id, p := range s.roster {
		out[id] = *p
	}
	return out
}

// Move queues a position update.
func (s *Session) Move(pos Vec2) {
	s.queue.Push(PlayerMove{X: pos.X, Y: pos.Y})
}

// Say queues a chat line.
func (s *Session) Say(text string) {
	s.queue.Push(ChatSend{Text: text})
}

// Tick handles what the last Poll received and flushes queued packets.
func (s *Session) Tick(_ time.Duration) {
	now := s.now()
	if s.seq == 0 {
		s.seq = 1
		s.lastPing = now
		s.queue.Push(LoginStart{Username: s.name})
	}

	net.OnClient(s.client, func(p LoginSuccess) {
		s.playerID = p.PlayerID
	})
	net.OnClient(s.client, func(p Pong) {
		s.rtt = now.Sub(time.UnixMilli(p.SentAt))
	})
	net.OnClient(s.client, func(p PlayerJoined) {
		s.roster[p.PlayerID] = &Player{ID: p.PlayerID, Name: p.Name, Pos: p.Pos}
	})
	net.OnClient(s.client, func(p PlayerMoved) {
		if o, ok := s.roster[p.PlayerID]; ok {
			o.Pos = Vec2{X: p.X, Y: p.Y}
		}
	})
	net.OnClient(s.client, func(p PlayerLeft) {
		delete(s.roster, p.PlayerID)
	})
	net.OnClient(s.client, func(p ChatBroadcast) {
		if s.OnChat != nil {
			s.OnChat(p.Name, p.Text)
		}
	})

	if s.interval > 0 && now.Sub(s.lastPing) >= s.interval {
		s.lastPing = now
		s.seq++
		s.queue.Push(Ping{Seq: s.seq, SentAt: now.UnixMilli()})
	}
	s.queue.Submit(s.client)
}

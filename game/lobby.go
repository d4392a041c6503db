package game

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/lcx/hearth/log"
	"github.com/lcx/hearth/metrics"
	"github.com/lcx/hearth/net"
)

const (
	MaxNameLen = 16
	MaxChatLen = 200
)

// Player is the profile attached to an accepted connection.
type Player struct {
	ID     uint32
	Name   string
	Pos    Vec2
	Handle net.ConnHandle
}

// Lobby is the server side of the protocol. Call Tick once after every
// Server.Poll.
type Lobby struct {
	server  *net.Server
	queue   net.ServerQueue
	players map[net.ConnHandle]*Player
	nextID  uint32
	spawn   Vec2
	logger  *log.GameLogger
}

// NewLobby serves players on s. Run s with net.WithHandshake(true) so that
// connections which never log in receive no broadcasts.
func NewLobby(s *net.Server, spawn Vec2) *Lobby {
	return &Lobby{
		server:  s,
		players: make(map[net.ConnHandle]*Player),
		spawn:   spawn,
		logger:  log.Default().With("module", "lobby"),
	}
}

// Players returns the number of logged in players.
func (l *Lobby) Players() int {
	return len(l.players)
}

// Tick handles everything the last Poll received and flushes the replies.
func (l *Lobby) Tick(_ time.Duration) {
	l.server.HandleDisconnections(l.onDisconnect)
	net.OnServer(l.server, l.onLogin)
	net.OnServer(l.server, l.onPing)
	net.OnServer(l.server, l.onMove)
	net.OnServer(l.server, l.onChat)
	l.queue.Submit(l.server)
	metrics.UpdateGaugeWithGroup("game", "players_online", metrics.Value(len(l.players)))
}

func (l *Lobby) onLogin(h net.ConnHandle, p LoginStart) {
	if _, ok := l.players[h]; ok {
		return
	}
	name := strings.TrimSpace(p.Username)
	if name == "" || utf8.RuneCountInString(name) > MaxNameLen {
		l.logger.Warn().Str("handle", h.String()).Str("username", p.Username).Msg("reject login")
		l.server.Disconnect(h)
		return
	}
	l.nextID++
	player := &Player{ID: l.nextID, Name: name, Pos: l.spawn, Handle: h}
	if err := l.server.AcceptConnection(h, player); err != nil {
		l.logger.Warn().Err(err).Str("handle", h.String()).Msg("accept connection")
		return
	}

	others := make([]net.ConnHandle, 0, len(l.players))
	l.queue.Push([]net.ConnHandle{h}, LoginSuccess{PlayerID: player.ID, Spawn: player.Pos})
	for oh, o := range l.players {
		others = append(others, oh)
		l.queue.Push([]net.ConnHandle{h}, PlayerJoined{PlayerID: o.ID, Name: o.Name, Pos: o.Pos})
	}
	l.queue.Push(others, PlayerJoined{PlayerID: player.ID, Name: player.Name, Pos: player.Pos})
	l.players[h] = player
	l.logger.Info().Str("handle", h.String()).Str("name", name).Uint32("playerID", player.ID).Msg("player joined")
}

func (l *Lobby) onPing(h net.ConnHandle, p Ping) {
	l.queue.Push([]net.ConnHandle{h}, Pong{Seq: p.Seq, SentAt: p.SentAt})
}

func (l *Lobby) onMove(h net.ConnHandle, p PlayerMove) {
	player, ok := l.players[h]
	if !ok {
		return
	}
	player.Pos = Vec2{X: p.X, Y: p.Y}
	l.queue.Push(l.others(h), PlayerMoved{PlayerID: player.ID, X: p.X, Y: p.Y})
}

func (l *Lobby) onChat(h net.ConnHandle, p ChatSend) {
	player, ok := l.players[h]
	if !ok {
		return
	}
	text := strings.TrimSpace(p.Text)
	if text == "" || utf8.RuneCountInString(text) > MaxChatLen {
		return
	}
	l.queue.PushBroadcast(ChatBroadcast{PlayerID: player.ID, Name: player.Name, Text: text})
}

func (l *Lobby) onDisconnect(ev net.DisconnectEvent) {
	player, ok := ev.Profile.(*Player)
	if !ok {
		return
	}
	delete(l.players, ev.Handle)
	l.logger.Info().Str("name", player.Name).Str("reason", ev.Reason.String()).Msg("player left")
	l.queue.PushBroadcast(PlayerLeft{PlayerID: player.ID})
}

func (l *Lobby) others(except net.ConnHandle) []net.ConnHandle {
	out := make([]net.ConnHandle, 0, len(l.players))
	for h := range l.players {
		if h != except {
			out = append(out, h)
		}
	}
	return out
}

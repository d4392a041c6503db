package net

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/lcx/hearth/config"
	"github.com/lcx/hearth/log"
	"github.com/lcx/hearth/metrics"
	"github.com/lcx/hearth/plugin"
	"github.com/lcx/hearth/protocol"
	"github.com/lcx/hearth/tracing"
	"go.opentelemetry.io/otel/attribute"
)

// Provider is a source of new server connections.
type Provider interface {
	// Accept returns the next pending connection, or ErrWouldBlock. It
	// must not block.
	Accept() (Connection, error)
	Close() error
}

type serverConn struct {
	conn        Connection
	remote      string
	state       State
	profile     any
	connectedAt time.Time
	lastRecv    time.Time
	limiter     *RecvLimiter

	verdict connState
	reason  Reason
	err     error
}

func (c *serverConn) markClose(reason Reason, err error) {
	if c.verdict == stateShouldClose {
		return
	}
	c.verdict.aggregate(stateShouldClose)
	c.reason = reason
	c.err = err
}

// tunables are the settings a config reload may change while running.
type tunables struct {
	idleTimeout      time.Duration
	maxConnections   int
	maxFramesPerTick int
	recvLimit        float64
	recvBurst        int
	blocked          []string
	handshake        bool
}

// Server owns the listening providers and every accepted connection. All
// methods except OnConfigChanged must be called from one goroutine.
type Server struct {
	proto     *protocol.Protocol
	opts      options
	logger    *log.GameLogger
	clock     clock.Clock
	providers []Provider
	table     slotTable[*serverConn]
	in        *inbound[ConnHandle]
	events    []DisconnectEvent

	pending atomic.Pointer[tunables]
	current tunables
	closed  bool
}

// NewServer creates a server with no providers.
func NewServer(proto *protocol.Protocol, opts ...Option) *Server {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	parent := o.logger
	if parent == nil {
		parent = log.Default()
	}
	logger := parent.WithSide(protocol.SideServer.String())
	s := &Server{
		proto:  proto,
		opts:   o,
		logger: logger,
		clock:  o.clock,
		in:     newInbound[ConnHandle](proto, protocol.SideServer, &o, logger),
		current: tunables{
			idleTimeout:      o.idleTimeout,
			maxConnections:   o.maxConnections,
			maxFramesPerTick: o.maxFramesPerTick,
			recvLimit:        o.recvLimit,
			recvBurst:        o.recvBurst,
			blocked:          o.blocked,
			handshake:        o.handshake,
		},
	}
	return s
}

// NewServerFromConfig builds a server and its providers from cfg. Extra
// options are applied after the ones derived from cfg.
func NewServerFromConfig(proto *protocol.Protocol, cfg *ServerCfg, opts ...Option) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("server config: %w", err)
	}
	s := NewServer(proto, append(cfg.Options(), opts...)...)
	for i, pc := range cfg.Providers {
		ins, err := plugin.Setup(ProviderPlugin, pc.Type, providerOptions(pc, cfg.WriteTimeout))
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("providers[%d]: %w", i, err)
		}
		p, ok := ins.(Provider)
		if !ok {
			_ = s.Close()
			return nil, fmt.Errorf("providers[%d]: %s is not a provider", i, pc.Type)
		}
		s.AddProvider(p)
	}
	return s, nil
}

// providerOptions fills in the section-wide write timeout for providers
// that do not set their own.
func providerOptions(pc ProviderCfg, writeTimeout time.Duration) map[string]any {
	out := make(map[string]any, len(pc.Options)+1)
	for k, v := range pc.Options {
		out[k] = v
	}
	if _, ok := out["writeTimeout"]; !ok && writeTimeout > 0 {
		out["writeTimeout"] = writeTimeout
	}
	return out
}

// NewServerWithConfigManager loads the "server" section and follows its
// hot reloads.
func NewServerWithConfigManager(proto *protocol.Protocol, configManager config.ConfigManager, opts ...Option) (*Server, error) {
	if configManager == nil {
		return nil, errors.New("configManager cannot be nil")
	}
	cfg := DefaultServerCfg()
	if err := configManager.LoadConfig(cfg.GetName(), cfg); err != nil && !config.IsNotFound(err) {
		return nil, fmt.Errorf("failed to load server config: %w", err)
	}
	s, err := NewServerFromConfig(proto, cfg, opts...)
	if err != nil {
		return nil, err
	}
	configManager.AddChangeListener(s)
	return s, nil
}

// OnConfigChanged implements config.ConfigChangeListener. Providers and
// WriteTimeout are fixed at startup because every accepted channel already
// carries its deadline; a reload that changes them is logged and otherwise
// ignored. Everything else applies on the next Poll. Handshake only affects
// connections accepted after that.
func (s *Server) OnConfigChanged(configName string, newConfig, oldConfig config.Config) error {
	if configName != "server" {
		return nil
	}
	cfg, ok := newConfig.(*ServerCfg)
	if !ok {
		return fmt.Errorf("invalid configuration type for server: %T", newConfig)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid server configuration: %w", err)
	}
	frames := cfg.MaxFramesPerTick
	if frames == 0 {
		frames = DefaultMaxFramesPerTick
	}
	s.pending.Store(&tunables{
		idleTimeout:      cfg.IdleTimeout,
		maxConnections:   cfg.MaxConnections,
		maxFramesPerTick: frames,
		recvLimit:        cfg.RecvRateLimit,
		recvBurst:        cfg.RecvBurst,
		blocked:          cfg.BlockedPackets,
		handshake:        cfg.Handshake,
	})
	if old, ok := oldConfig.(*ServerCfg); ok && old.WriteTimeout != cfg.WriteTimeout {
		s.logger.Warn().Dur("writeTimeout", cfg.WriteTimeout).Msg("writeTimeout change needs a restart")
	}
	s.logger.Info().Str("configName", configName).Msg("server configuration updated")
	return nil
}

// GetConfigName implements config.ConfigChangeListener.
func (s *Server) GetConfigName() string {
	return "server"
}

func (s *Server) applyTunables() {
	t := s.pending.Swap(nil)
	if t == nil {
		return
	}
	s.current = *t
	s.in.blocked.reload(t.blocked)
	s.table.each(func(_ ConnHandle, c *serverConn) {
		c.limiter.Reload(t.recvLimit, t.recvBurst)
	})
}

// AddProvider starts accepting from p on the next Poll.
func (s *Server) AddProvider(p Provider) {
	s.providers = append(s.providers, p)
}

// Poll runs one network tick: accept, read, remove dead connections and
// sweep idle ones. Packets read here are visible to OnServer until the
// next Poll. It never blocks.
func (s *Server) Poll() {
	if s.closed {
		return
	}
	start := s.clock.Now()
	_, span := tracing.Start(context.Background(), "hearth.server.poll")
	defer span.End()

	s.applyTunables()
	s.in.received.reset()
	// Disconnect and failed writes since the last tick take effect first.
	closed := s.removeMarked()

	accepted := s.acceptAll(start)

	s.table.each(func(h ConnHandle, c *serverConn) {
		if c.verdict == stateShouldClose {
			return
		}
		n, state, err := s.in.drain(h, c.conn, c.remote, c.limiter, s.current.maxFramesPerTick, start)
		if n > 0 {
			c.lastRecv = start
		}
		if state == stateShouldClose {
			c.markClose(ReasonIO, err)
		}
	})
	closed += s.removeMarked()

	if timeout := s.current.idleTimeout; timeout > 0 {
		s.table.each(func(h ConnHandle, c *serverConn) {
			if start.Sub(c.lastRecv) > timeout {
				c.markClose(ReasonTimeout, nil)
			}
		})
		closed += s.removeMarked()
	}

	span.SetAttributes(
		attribute.Int("accepted", accepted),
		attribute.Int("received", s.in.received.len()),
		attribute.Int("closed", closed),
		attribute.Int("connections", s.table.len()),
	)
	metrics.UpdateGaugeWithDimGroup("net", "current_connections", metrics.Value(s.table.len()), metrics.Dimension{"side": "server"})
	metrics.AddSampleWithGroup("net", "poll_duration_ms", metrics.Value(s.clock.Since(start))/metrics.Value(time.Millisecond))
}

func (s *Server) acceptAll(now time.Time) int {
	accepted := 0
	for _, p := range s.providers {
		for i := 0; i < maxAcceptPerTick; i++ {
			conn, err := p.Accept()
			if err != nil {
				if classify(err) != outcomeTransient {
					s.logger.Error().Err(err).Msg("accept failed")
				}
				break
			}
			if s.current.maxConnections > 0 && s.table.len() >= s.current.maxConnections {
				s.logger.Warn().Err(ErrTableFull).Str("remote", conn.RemoteAddr()).Msg("reject connection")
				metrics.IncrCounterWithDimGroup("net", "accept_rejected_total", 1, metrics.Dimension{"reason": "table_full"})
				_ = conn.Close()
				continue
			}
			s.insert(conn, now)
			accepted++
		}
	}
	return accepted
}

func (s *Server) insert(conn Connection, now time.Time) ConnHandle {
	c := &serverConn{
		conn:        conn,
		remote:      conn.RemoteAddr(),
		state:       StateEstablished,
		connectedAt: now,
		lastRecv:    now,
		limiter:     NewRecvLimiter(s.current.recvLimit, s.current.recvBurst),
	}
	if s.current.handshake {
		c.state = StateEstablishing
	}
	h := s.table.insert(c)
	s.logger.Info().Str("remote", c.remote).Str("handle", h.String()).Msg("connection accepted")
	metrics.IncrCounterWithGroup("net", "connections_accepted_total", 1)
	return h
}

// removeMarked closes and removes every connection marked ShouldClose.
func (s *Server) removeMarked() int {
	var dead []ConnHandle
	s.table.each(func(h ConnHandle, c *serverConn) {
		if c.verdict == stateShouldClose {
			dead = append(dead, h)
		}
	})
	for _, h := range dead {
		c, _ := s.table.remove(h)
		s.close(h, c)
	}
	return len(dead)
}

func (s *Server) close(h ConnHandle, c *serverConn) {
	c.state = StateClosed
	if err := c.conn.Close(); err != nil {
		s.logger.Debug().Err(err).Str("remote", c.remote).Msg("close connection")
	}
	ev := s.logger.Info()
	if c.reason == ReasonIO {
		ev = s.logger.Warn()
	}
	ev.Err(c.err).Str("remote", c.remote).Str("handle", h.String()).Str("reason", c.reason.String()).Msg("connection closed")
	metrics.IncrCounterWithDimGroup("net", "connection_close_total", 1, metrics.Dimension{"reason": c.reason.String()})
	s.events = append(s.events, DisconnectEvent{
		Handle:  h,
		Remote:  c.remote,
		Profile: c.profile,
		Reason:  c.reason,
		Err:     c.err,
	})
}

// HandleDisconnections drains the connections removed since the last call.
func (s *Server) HandleDisconnections(fn func(ev DisconnectEvent)) {
	events := s.events
	s.events = nil
	for _, ev := range events {
		fn(ev)
	}
}

// Disconnect closes h on the next Poll, before anything is accepted.
func (s *Server) Disconnect(h ConnHandle) {
	if c, ok := s.table.get(h); ok {
		c.markClose(ReasonKicked, nil)
	}
}

// AcceptConnection moves h to Established and attaches profile, which is
// handed back in its DisconnectEvent.
func (s *Server) AcceptConnection(h ConnHandle, profile any) error {
	c, ok := s.table.get(h)
	if !ok {
		return fmt.Errorf("%w: %s", ErrStaleHandle, h)
	}
	c.state = StateEstablished
	c.profile = profile
	return nil
}

// IsEstablishing reports whether h is still waiting for AcceptConnection.
func (s *Server) IsEstablishing(h ConnHandle) bool {
	c, ok := s.table.get(h)
	return ok && c.state == StateEstablishing
}

// Peer returns a snapshot of h.
func (s *Server) Peer(h ConnHandle) (PeerInfo, bool) {
	c, ok := s.table.get(h)
	if !ok {
		return PeerInfo{}, false
	}
	return PeerInfo{
		Handle:      h,
		Remote:      c.remote,
		State:       c.state,
		Profile:     c.profile,
		ConnectedAt: c.connectedAt,
		LastRecv:    c.lastRecv,
	}, true
}

// AllConnections lists every live handle in slot order.
func (s *Server) AllConnections() []ConnHandle {
	out := make([]ConnHandle, 0, s.table.len())
	s.table.each(func(h ConnHandle, _ *serverConn) {
		out = append(out, h)
	})
	return out
}

// EstablishedConnections lists the handles broadcasts go to.
func (s *Server) EstablishedConnections() []ConnHandle {
	out := make([]ConnHandle, 0, s.table.len())
	s.table.each(func(h ConnHandle, c *serverConn) {
		if c.state == StateEstablished {
			out = append(out, h)
		}
	})
	return out
}

// Send encodes pkts once and writes them to every handle in order. Stale
// handles are skipped. A failed write closes that connection on the next
// Poll.
func (s *Server) Send(handles []ConnHandle, pkts ...protocol.ServerPacket) {
	s.SendRaw(handles, encodeAll(s.proto, s.logger, "server", pkts)...)
}

// SendRaw writes already encoded packets.
func (s *Server) SendRaw(handles []ConnHandle, pkts ...protocol.RawPacket) {
	if len(pkts) == 0 {
		return
	}
	for _, h := range handles {
		c, ok := s.table.get(h)
		if !ok {
			s.logger.Debug().Str("handle", h.String()).Msg("send to stale handle")
			continue
		}
		s.write(h, c, pkts)
	}
}

// Broadcast sends pkts to every Established connection.
func (s *Server) Broadcast(pkts ...protocol.ServerPacket) {
	s.broadcast(ConnHandle{}, pkts)
}

// BroadcastExcept sends pkts to every Established connection but except.
func (s *Server) BroadcastExcept(except ConnHandle, pkts ...protocol.ServerPacket) {
	s.broadcast(except, pkts)
}

func (s *Server) broadcast(except ConnHandle, pkts []protocol.ServerPacket) {
	raws := encodeAll(s.proto, s.logger, "server", pkts)
	if len(raws) == 0 {
		return
	}
	s.table.each(func(h ConnHandle, c *serverConn) {
		if c.state != StateEstablished || h == except {
			return
		}
		s.write(h, c, raws)
	})
}

func (s *Server) write(h ConnHandle, c *serverConn, pkts []protocol.RawPacket) {
	if c.verdict == stateShouldClose {
		return
	}
	if err := emitAll(c.conn, "server", pkts); err != nil {
		s.logger.Warn().Err(err).Str("remote", c.remote).Str("handle", h.String()).Msg("write failed")
		c.markClose(ReasonIO, err)
	}
}

// ConnectionCount ...
func (s *Server) ConnectionCount() int {
	return s.table.len()
}

// Side ...
func (s *Server) Side() protocol.Side {
	return protocol.SideServer
}

// Protocol ...
func (s *Server) Protocol() *protocol.Protocol {
	return s.proto
}

// Close stops every provider and closes every connection with
// ReasonShutdown. Events remain available to HandleDisconnections.
func (s *Server) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	var errs []error
	for _, p := range s.providers {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.table.each(func(_ ConnHandle, c *serverConn) {
		c.markClose(ReasonShutdown, nil)
	})
	s.removeMarked()
	return errors.Join(errs...)
}

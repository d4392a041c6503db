package net

import (
	"context"
	"fmt"

	"github.com/benbjohnson/clock"
	"github.com/lcx/hearth/log"
	"github.com/lcx/hearth/metrics"
	"github.com/lcx/hearth/protocol"
	"github.com/lcx/hearth/tracing"
	"go.opentelemetry.io/otel/attribute"
)

// Client holds at most one connection to a server. It must be used from a
// single goroutine.
type Client struct {
	proto   *protocol.Protocol
	opts    options
	logger  *log.GameLogger
	clock   clock.Clock
	conn    Connection
	remote  string
	limiter *RecvLimiter
	in      *inbound[PeerHandle]

	verdict connState
	reason  Reason
	err     error
	events  []ClientDisconnectEvent
}

// NewClient creates a disconnected client.
func NewClient(proto *protocol.Protocol, opts ...Option) *Client {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	parent := o.logger
	if parent == nil {
		parent = log.Default()
	}
	logger := parent.WithSide(protocol.SideClient.String())
	return &Client{
		proto:   proto,
		opts:    o,
		logger:  logger,
		clock:   o.clock,
		limiter: NewRecvLimiter(o.recvLimit, o.recvBurst),
		in:      newInbound[PeerHandle](proto, protocol.SideClient, &o, logger),
	}
}

// NewClientFromConfig creates a client and connects it as cfg says.
func NewClientFromConfig(proto *protocol.Protocol, cfg *ClientCfg, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("client config: %w", err)
	}
	c := NewClient(proto, append(cfg.Options(), opts...)...)
	var err error
	switch cfg.Transport {
	case "websocket":
		err = c.ConnectWebSocket(cfg.Addr)
	default:
		err = c.Connect(cfg.Addr)
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Connect dials addr over TCP.
func (c *Client) Connect(addr string) error {
	conn, err := DialTCP(addr, c.opts.dialTimeout, c.opts.writeTimeout)
	if err != nil {
		return err
	}
	c.SetConnection(conn)
	return nil
}

// ConnectWebSocket dials a ws:// URL.
func (c *Client) ConnectWebSocket(url string) error {
	conn, err := DialWebSocket(url, c.opts.dialTimeout, c.opts.writeTimeout)
	if err != nil {
		return err
	}
	c.SetConnection(conn)
	return nil
}

// SetConnection installs an already established connection, closing the
// previous one without an event.
func (c *Client) SetConnection(conn Connection) {
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.conn = conn
	c.remote = conn.RemoteAddr()
	c.verdict = stateValid
	c.reason, c.err = 0, nil
	c.logger.Info().Str("remote", c.remote).Msg("connected")
}

// IsConnected reports whether a connection is installed and not failed.
func (c *Client) IsConnected() bool {
	return c.conn != nil && c.verdict == stateValid
}

// Poll reads every available frame from the server. Packets read here are
// visible to OnClient until the next Poll.
func (c *Client) Poll() {
	start := c.clock.Now()
	_, span := tracing.Start(context.Background(), "hearth.client.poll")
	defer span.End()

	c.in.received.reset()
	if c.conn == nil {
		return
	}
	if c.verdict == stateValid {
		_, state, err := c.in.drain(PeerHandle{}, c.conn, c.remote, c.limiter, c.opts.maxFramesPerTick, start)
		if state == stateShouldClose {
			c.markClose(ReasonIO, err)
		}
	}
	closed := 0
	if c.verdict == stateShouldClose {
		c.teardown()
		closed = 1
	}
	span.SetAttributes(
		attribute.Int("received", c.in.received.len()),
		attribute.Int("closed", closed),
	)
	metrics.AddSampleWithGroup("net", "client_poll_duration_ms", metrics.Value(c.clock.Since(start))/metrics.Value(1e6))
}

func (c *Client) markClose(reason Reason, err error) {
	if c.verdict == stateShouldClose {
		return
	}
	c.verdict.aggregate(stateShouldClose)
	c.reason = reason
	c.err = err
}

func (c *Client) teardown() {
	if err := c.conn.Close(); err != nil {
		c.logger.Debug().Err(err).Msg("close connection")
	}
	c.logger.Info().Err(c.err).Str("remote", c.remote).Str("reason", c.reason.String()).Msg("disconnected")
	metrics.IncrCounterWithDimGroup("net", "connection_close_total", 1, metrics.Dimension{"reason": c.reason.String()})
	c.events = append(c.events, ClientDisconnectEvent{Remote: c.remote, Reason: c.reason, Err: c.err})
	c.conn = nil
	c.verdict = stateValid
}

// Send encodes and writes pkts. It does nothing while disconnected.
func (c *Client) Send(pkts ...protocol.ClientPacket) {
	if !c.IsConnected() {
		return
	}
	c.SendRaw(encodeAll(c.proto, c.logger, "client", pkts)...)
}

// SendRaw writes already encoded packets.
func (c *Client) SendRaw(pkts ...protocol.RawPacket) {
	if !c.IsConnected() {
		return
	}
	if err := emitAll(c.conn, "client", pkts); err != nil {
		c.logger.Warn().Err(err).Str("remote", c.remote).Msg("write failed")
		c.markClose(ReasonIO, err)
	}
}

// Disconnect closes the connection now.
func (c *Client) Disconnect() {
	if c.conn == nil {
		return
	}
	c.markClose(ReasonKicked, nil)
	c.teardown()
}

// HandleDisconnections drains the disconnects since the last call.
func (c *Client) HandleDisconnections(fn func(ev ClientDisconnectEvent)) {
	events := c.events
	c.events = nil
	for _, ev := range events {
		fn(ev)
	}
}

// ConnectionCount is 1 while connected.
func (c *Client) ConnectionCount() int {
	if c.conn == nil {
		return 0
	}
	return 1
}

// Side ...
func (c *Client) Side() protocol.Side {
	return protocol.SideClient
}

// Protocol ...
func (c *Client) Protocol() *protocol.Protocol {
	return c.proto
}

// Close disconnects with ReasonShutdown.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	c.markClose(ReasonShutdown, nil)
	c.teardown()
	return nil
}

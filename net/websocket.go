package net

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/lcx/hearth/log"
	"github.com/lcx/hearth/metrics"
	"github.com/lcx/hearth/protocol"
)

const (
	defaultInboxSize   = 256
	defaultAcceptQueue = 128
	closeGrace         = time.Second
)

// wsChannel is a MessageChannel over a WebSocket connection. gorilla only
// offers blocking reads, so one pump goroutine per connection moves
// messages into a bounded inbox that ReadMessage polls.
type wsChannel struct {
	conn         *websocket.Conn
	inbox        chan []byte
	done         chan struct{}
	writeTimeout time.Duration

	mu      sync.Mutex
	readErr error

	closeOnce sync.Once
}

func newWSChannel(conn *websocket.Conn, inboxSize int, writeTimeout time.Duration) *wsChannel {
	if inboxSize <= 0 {
		inboxSize = defaultInboxSize
	}
	conn.SetReadLimit(int64(protocol.HeaderSize + protocol.MaxBodySize))
	c := &wsChannel{
		conn:         conn,
		inbox:        make(chan []byte, inboxSize),
		done:         make(chan struct{}),
		writeTimeout: writeTimeout,
	}
	go c.pump()
	return c
}

// pump is the only writer to inbox and closes it when reading stops.
func (c *wsChannel) pump() {
	defer close(c.inbox)
	for {
		typ, data, err := c.conn.ReadMessage()
		if err != nil {
			c.setReadErr(err)
			return
		}
		if typ != websocket.BinaryMessage {
			continue
		}
		select {
		case c.inbox <- data:
		case <-c.done:
			c.setReadErr(net.ErrClosed)
			return
		}
	}
}

func (c *wsChannel) setReadErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readErr == nil {
		c.readErr = err
	}
}

// ReadMessage never blocks. Once the peer is gone and the inbox drained it
// returns an error wrapping io.EOF.
func (c *wsChannel) ReadMessage() ([]byte, error) {
	select {
	case msg, ok := <-c.inbox:
		if ok {
			return msg, nil
		}
		c.mu.Lock()
		err := c.readErr
		c.mu.Unlock()
		if errors.Is(err, net.ErrClosed) {
			return nil, err
		}
		return nil, fmt.Errorf("websocket: %w: %v", io.EOF, err)
	default:
		return nil, ErrWouldBlock
	}
}

func (c *wsChannel) WriteMessage(msg []byte) error {
	if c.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return err
		}
	}
	return c.conn.WriteMessage(websocket.BinaryMessage, msg)
}

func (c *wsChannel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(closeGrace))
		err = c.conn.Close()
	})
	return err
}

func (c *wsChannel) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// DialWebSocket connects to a ws:// or wss:// URL.
func DialWebSocket(url string, dialTimeout, writeTimeout time.Duration) (Connection, error) {
	dialer := *websocket.DefaultDialer
	if dialTimeout > 0 {
		dialer.HandshakeTimeout = dialTimeout
	}
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		metrics.IncrCounterWithDimGroup("net", "dial_error_total", 1, metrics.Dimension{"transport": "websocket"})
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return NewMessageConnection(newWSChannel(conn, defaultInboxSize, writeTimeout)), nil
}

// WebSocketProvider accepts WebSocket upgrades on an HTTP listener and
// hands the upgraded connections to Accept.
type WebSocketProvider struct {
	ln           net.Listener
	srv          *http.Server
	upgrader     websocket.Upgrader
	accepted     chan *websocket.Conn
	inboxSize    int
	writeTimeout time.Duration
	closeOnce    sync.Once
}

// WebSocketOptions tune a WebSocketProvider.
type WebSocketOptions struct {
	// Path is the upgrade route, "/ws" by default.
	Path         string
	InboxSize    int
	AcceptQueue  int
	WriteTimeout time.Duration
	// CheckOrigin defaults to accepting every origin.
	CheckOrigin func(r *http.Request) bool
}

// ListenWebSocket serves WebSocket upgrades on addr.
func ListenWebSocket(addr string, opts WebSocketOptions) (*WebSocketProvider, error) {
	if opts.Path == "" {
		opts.Path = "/ws"
	}
	if opts.AcceptQueue <= 0 {
		opts.AcceptQueue = defaultAcceptQueue
	}
	if opts.CheckOrigin == nil {
		opts.CheckOrigin = func(*http.Request) bool { return true }
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		metrics.IncrCounterWithDimGroup("net", "listen_error_total", 1, metrics.Dimension{"error_type": "listen"})
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	p := &WebSocketProvider{
		ln: ln,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  readChunk,
			WriteBufferSize: readChunk,
			CheckOrigin:     opts.CheckOrigin,
		},
		accepted:     make(chan *websocket.Conn, opts.AcceptQueue),
		inboxSize:    opts.InboxSize,
		writeTimeout: opts.WriteTimeout,
	}
	r := chi.NewRouter()
	r.Get(opts.Path, p.upgrade)
	p.srv = &http.Server{Handler: r, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := p.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", addr).Msg("websocket listener stopped")
		}
	}()
	return p, nil
}

func (p *WebSocketProvider) upgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := p.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Str("remote", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}
	select {
	case p.accepted <- conn:
	default:
		metrics.IncrCounterWithDimGroup("net", "accept_rejected_total", 1, metrics.Dimension{"reason": "queue_full"})
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "busy"),
			time.Now().Add(closeGrace))
		_ = conn.Close()
	}
}

// Accept returns the next upgraded connection, or ErrWouldBlock.
func (p *WebSocketProvider) Accept() (Connection, error) {
	select {
	case conn := <-p.accepted:
		return NewMessageConnection(newWSChannel(conn, p.inboxSize, p.writeTimeout)), nil
	default:
		return nil, ErrWouldBlock
	}
}

// Addr ...
func (p *WebSocketProvider) Addr() net.Addr {
	return p.ln.Addr()
}

// Close stops the HTTP server and drops upgraded connections nobody accepted.
func (p *WebSocketProvider) Close() error {
	var err error
	p.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), closeGrace)
		defer cancel()
		err = p.srv.Shutdown(ctx)
		for {
			select {
			case conn := <-p.accepted:
				_ = conn.Close()
			default:
				return
			}
		}
	})
	return err
}

// FactoryName implements plugin.Plugin.
func (p *WebSocketProvider) FactoryName() string {
	return "websocket"
}

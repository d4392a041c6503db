package net

import (
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"

	"github.com/lcx/hearth/metrics"
)

// tcpChannel is a StreamChannel over a TCP socket. Reads go straight to the
// socket without parking the calling goroutine.
type tcpChannel struct {
	conn         *net.TCPConn
	raw          syscall.RawConn
	writeTimeout time.Duration
}

func newTCPChannel(conn *net.TCPConn, writeTimeout time.Duration) (*tcpChannel, error) {
	raw, err := conn.SyscallConn()
	if err != nil {
		return nil, err
	}
	_ = conn.SetNoDelay(true)
	return &tcpChannel{conn: conn, raw: raw, writeTimeout: writeTimeout}, nil
}

func (t *tcpChannel) ReadAvailable(p []byte) (int, error) {
	return t.readNonBlocking(p)
}

// Writev writes header and payload with a single writev, without copying
// the payload, under the write deadline.
func (t *tcpChannel) Writev(bufs ...[]byte) error {
	if t.writeTimeout > 0 {
		if err := t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout)); err != nil {
			return err
		}
	}
	nb := net.Buffers(bufs)
	_, err := nb.WriteTo(t.conn)
	return err
}

func (t *tcpChannel) Close() error {
	return t.conn.Close()
}

func (t *tcpChannel) RemoteAddr() net.Addr {
	return t.conn.RemoteAddr()
}

// DialTCP connects to addr and returns a framed connection. Only the
// connect itself blocks, bounded by dialTimeout.
func DialTCP(addr string, dialTimeout, writeTimeout time.Duration) (Connection, error) {
	c, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		metrics.IncrCounterWithDimGroup("net", "dial_error_total", 1, metrics.Dimension{"transport": "tcp"})
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	tc, ok := c.(*net.TCPConn)
	if !ok {
		_ = c.Close()
		return nil, errors.New("dial: not a tcp connection")
	}
	ch, err := newTCPChannel(tc, writeTimeout)
	if err != nil {
		_ = tc.Close()
		return nil, err
	}
	return NewStreamConnection(ch), nil
}

// TCPProvider accepts TCP connections without blocking.
type TCPProvider struct {
	ln           *net.TCPListener
	raw          syscall.RawConn
	writeTimeout time.Duration
}

// ListenTCP binds addr. Use ":0" to pick a free port.
func ListenTCP(addr string, writeTimeout time.Duration) (*TCPProvider, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		metrics.IncrCounterWithDimGroup("net", "listen_error_total", 1, metrics.Dimension{"error_type": "resolve"})
		return nil, fmt.Errorf("resolve %s: %w", addr, err)
	}
	ln, err := net.ListenTCP("tcp", tcpAddr)
	if err != nil {
		metrics.IncrCounterWithDimGroup("net", "listen_error_total", 1, metrics.Dimension{"error_type": "listen"})
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	raw, err := ln.SyscallConn()
	if err != nil {
		_ = ln.Close()
		return nil, err
	}
	return &TCPProvider{ln: ln, raw: raw, writeTimeout: writeTimeout}, nil
}

// Accept returns the next pending connection, or ErrWouldBlock.
func (p *TCPProvider) Accept() (Connection, error) {
	conn, err := p.acceptNonBlocking()
	if err != nil {
		return nil, err
	}
	ch, err := newTCPChannel(conn, p.writeTimeout)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return NewStreamConnection(ch), nil
}

// Addr ...
func (p *TCPProvider) Addr() net.Addr {
	return p.ln.Addr()
}

// Close stops listening. Accepted connections are unaffected.
func (p *TCPProvider) Close() error {
	return p.ln.Close()
}

// FactoryName implements plugin.Plugin.
func (p *TCPProvider) FactoryName() string {
	return "tcp"
}

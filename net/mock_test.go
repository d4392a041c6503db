package net

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/lcx/hearth/log"
	"github.com/lcx/hearth/protocol"
	"github.com/stretchr/testify/require"
)

type tLogin struct {
	protocol.FromClient
	Name string
}

func (tLogin) PacketName() string { return "t.login" }

type tInput struct {
	protocol.FromClient
	Seq uint32
}

func (tInput) PacketName() string { return "t.input" }

type tWelcome struct {
	protocol.FromServer
	ID uint32
}

func (tWelcome) PacketName() string { return "t.welcome" }

type tChat struct {
	protocol.FromServer
	Text string
}

func (tChat) PacketName() string { return "t.chat" }

type tUnregistered struct {
	protocol.FromServer
}

func (tUnregistered) PacketName() string { return "t.unregistered" }

func testProtocol() *protocol.Protocol {
	return protocol.NewBuilder().Register(tLogin{}, tInput{}, tWelcome{}, tChat{}).MustBuild()
}

func quietLogger() *log.GameLogger {
	return log.NewLoggerWithWriter(io.Discard, log.ErrorLevel)
}

func encode(t *testing.T, proto *protocol.Protocol, p protocol.Packet) protocol.RawPacket {
	t.Helper()
	raw, err := protocol.Encode(proto, p)
	require.NoError(t, err)
	return raw
}

// readStep is one scripted result of ReadAvailable / NextFrame.
type readStep struct {
	data []byte
	err  error
}

// scriptedStream is a StreamChannel that replays reads; an empty script
// means nothing is available.
type scriptedStream struct {
	reads    []readStep
	written  bytes.Buffer
	writeErr error
	closed   bool
}

func (s *scriptedStream) ReadAvailable(p []byte) (int, error) {
	if len(s.reads) == 0 {
		return 0, ErrWouldBlock
	}
	st := &s.reads[0]
	n := copy(p, st.data)
	st.data = st.data[n:]
	if len(st.data) > 0 {
		return n, nil
	}
	s.reads = s.reads[1:]
	return n, st.err
}

func (s *scriptedStream) Writev(bufs ...[]byte) error {
	if s.writeErr != nil {
		return s.writeErr
	}
	for _, b := range bufs {
		s.written.Write(b)
	}
	return nil
}

func (s *scriptedStream) Close() error {
	s.closed = true
	return nil
}

func (s *scriptedStream) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 9090}
}

// mockConn is a Connection fed frame by frame.
type mockConn struct {
	remote  string
	steps   []readStep
	frames  []protocol.RawPacket
	emitted []protocol.RawPacket
	emitErr error
	closed  bool
}

func newMockConn(remote string) *mockConn {
	return &mockConn{remote: remote}
}

// push queues a frame for the next poll.
func (m *mockConn) push(pkt protocol.RawPacket) {
	m.steps = append(m.steps, readStep{})
	m.frames = append(m.frames, pkt)
}

// fail queues an error.
func (m *mockConn) fail(err error) {
	m.steps = append(m.steps, readStep{err: err})
	m.frames = append(m.frames, protocol.RawPacket{})
}

func (m *mockConn) NextFrame() (protocol.RawPacket, error) {
	if len(m.steps) == 0 {
		return protocol.RawPacket{}, ErrWouldBlock
	}
	st, pkt := m.steps[0], m.frames[0]
	m.steps, m.frames = m.steps[1:], m.frames[1:]
	if st.err != nil {
		return protocol.RawPacket{}, st.err
	}
	return pkt, nil
}

func (m *mockConn) Emit(pkt protocol.RawPacket) error {
	if m.emitErr != nil {
		return m.emitErr
	}
	m.emitted = append(m.emitted, pkt)
	return nil
}

func (m *mockConn) Close() error {
	m.closed = true
	return nil
}

func (m *mockConn) RemoteAddr() string {
	return m.remote
}

type mockProvider struct {
	pending []Connection
	closed  bool
}

func (p *mockProvider) Accept() (Connection, error) {
	if len(p.pending) == 0 {
		return nil, ErrWouldBlock
	}
	c := p.pending[0]
	p.pending = p.pending[1:]
	return c, nil
}

func (p *mockProvider) Close() error {
	p.closed = true
	return nil
}

// testServer is a server over a mock provider with a mock clock.
type testServer struct {
	*Server
	provider *mockProvider
	clock    *clock.Mock
	dialed   int
}

func newTestServer(opts ...Option) *testServer {
	mc := clock.NewMock()
	p := &mockProvider{}
	opts = append([]Option{WithClock(mc), WithLogger(quietLogger())}, opts...)
	s := NewServer(testProtocol(), opts...)
	s.AddProvider(p)
	return &testServer{Server: s, provider: p, clock: mc}
}

// connect accepts n mock connections and returns them with their handles.
func (ts *testServer) connect(t *testing.T, n int) ([]*mockConn, []ConnHandle) {
	t.Helper()
	conns := make([]*mockConn, n)
	for i := range conns {
		ts.dialed++
		conns[i] = newMockConn(fmt.Sprintf("10.0.0.%d:5000", ts.dialed))
		ts.provider.pending = append(ts.provider.pending, conns[i])
	}
	ts.Poll()
	byRemote := map[string]ConnHandle{}
	for _, h := range ts.AllConnections() {
		info, ok := ts.Peer(h)
		require.True(t, ok)
		byRemote[info.Remote] = h
	}
	handles := make([]ConnHandle, n)
	for i, c := range conns {
		h, ok := byRemote[c.remote]
		require.True(t, ok, "connection %s not accepted", c.remote)
		handles[i] = h
	}
	return conns, handles
}

func drainEvents(s *Server) []DisconnectEvent {
	var out []DisconnectEvent
	s.HandleDisconnections(func(ev DisconnectEvent) {
		out = append(out, ev)
	})
	return out
}

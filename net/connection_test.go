package net

import (
	"errors"
	"io"
	"net"
	"syscall"
	"testing"

	"github.com/lcx/hearth/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frameBytes(t *testing.T, id protocol.PacketID, body []byte) []byte {
	t.Helper()
	raw, err := protocol.NewRawPacket(id, body)
	require.NoError(t, err)
	return raw.AppendFrame(nil)
}

func TestStreamPartialFrameAcrossPolls(t *testing.T) {
	frame := frameBytes(t, 2, []byte("hello world"))
	ch := &scriptedStream{reads: []readStep{
		{data: frame[:2]},
		{err: ErrWouldBlock},
		{data: frame[2:7]},
		{err: ErrWouldBlock},
		{data: frame[7:]},
	}}
	conn := NewStreamConnection(ch)

	// 头都不完整
	_, err := conn.NextFrame()
	assert.ErrorIs(t, err, ErrWouldBlock)
	// 头完整, body 不完整
	_, err = conn.NextFrame()
	assert.ErrorIs(t, err, ErrWouldBlock)

	pkt, err := conn.NextFrame()
	require.NoError(t, err)
	assert.Equal(t, protocol.PacketID(2), pkt.ID)
	assert.Equal(t, uint16(11), pkt.Size)
	assert.Equal(t, []byte("hello world"), pkt.Payload)

	_, err = conn.NextFrame()
	assert.ErrorIs(t, err, ErrWouldBlock)
}

func TestStreamSeveralFramesInOneRead(t *testing.T) {
	var data []byte
	data = append(data, frameBytes(t, 0, []byte("a"))...)
	data = append(data, frameBytes(t, 1, nil)...)
	data = append(data, frameBytes(t, 3, []byte("ccc"))...)
	conn := NewStreamConnection(&scriptedStream{reads: []readStep{{data: data}}})

	want := []struct {
		id      protocol.PacketID
		payload []byte
	}{
		{0, []byte("a")},
		{1, nil},
		{3, []byte("ccc")},
	}
	for _, w := range want {
		pkt, err := conn.NextFrame()
		require.NoError(t, err)
		assert.Equal(t, w.id, pkt.ID)
		assert.Equal(t, w.payload, pkt.Payload)
	}
	_, err := conn.NextFrame()
	assert.ErrorIs(t, err, ErrWouldBlock)
}

func TestStreamPayloadDoesNotAliasBuffer(t *testing.T) {
	first := frameBytes(t, 0, []byte("first"))
	second := frameBytes(t, 0, []byte("other"))
	conn := NewStreamConnection(&scriptedStream{reads: []readStep{
		{data: first},
		{err: ErrWouldBlock},
		{data: second},
	}})
	a, err := conn.NextFrame()
	require.NoError(t, err)
	_, err = conn.NextFrame()
	require.ErrorIs(t, err, ErrWouldBlock)
	_, err = conn.NextFrame()
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), a.Payload)
}

func TestStreamLargeFrame(t *testing.T) {
	body := make([]byte, protocol.MaxBodySize)
	for i := range body {
		body[i] = byte(i)
	}
	frame := frameBytes(t, 1, body)
	var steps []readStep
	for off := 0; off < len(frame); off += 1000 {
		steps = append(steps, readStep{data: frame[off:min(off+1000, len(frame))]})
	}
	conn := NewStreamConnection(&scriptedStream{reads: steps})
	pkt, err := conn.NextFrame()
	require.NoError(t, err)
	assert.Equal(t, uint16(protocol.MaxBodySize), pkt.Size)
	assert.Equal(t, body, pkt.Payload)
}

func TestStreamFatalAfterData(t *testing.T) {
	var data []byte
	data = append(data, frameBytes(t, 0, []byte("x"))...)
	data = append(data, frameBytes(t, 1, []byte("y"))...)
	conn := NewStreamConnection(&scriptedStream{reads: []readStep{{data: data, err: io.EOF}}})

	for _, id := range []protocol.PacketID{0, 1} {
		pkt, err := conn.NextFrame()
		require.NoError(t, err)
		assert.Equal(t, id, pkt.ID)
	}
	_, err := conn.NextFrame()
	assert.ErrorIs(t, err, io.EOF)
	_, err = conn.NextFrame()
	assert.ErrorIs(t, err, io.EOF, "fatal errors stay fatal")
}

func TestStreamEmit(t *testing.T) {
	ch := &scriptedStream{}
	conn := NewStreamConnection(ch)
	raw, err := protocol.NewRawPacket(0x0102, []byte{0xAA, 0xBB, 0xCC})
	require.NoError(t, err)
	require.NoError(t, conn.Emit(raw))
	empty, err := protocol.NewRawPacket(7, nil)
	require.NoError(t, err)
	require.NoError(t, conn.Emit(empty))

	assert.Equal(t, []byte{
		0x01, 0x02, 0x00, 0x03, 0xAA, 0xBB, 0xCC,
		0x00, 0x07, 0x00, 0x00,
	}, ch.written.Bytes())
	assert.Equal(t, []byte{0xAA, 0xBB, 0xCC}, raw.Payload)
	assert.Equal(t, "127.0.0.1:9090", conn.RemoteAddr())
}

// scriptedMessages is a MessageChannel that replays messages.
type scriptedMessages struct {
	msgs    [][]byte
	written [][]byte
}

func (s *scriptedMessages) ReadMessage() ([]byte, error) {
	if len(s.msgs) == 0 {
		return nil, ErrWouldBlock
	}
	m := s.msgs[0]
	s.msgs = s.msgs[1:]
	return m, nil
}

func (s *scriptedMessages) WriteMessage(msg []byte) error {
	s.written = append(s.written, msg)
	return nil
}

func (s *scriptedMessages) Close() error         { return nil }
func (s *scriptedMessages) RemoteAddr() net.Addr { return nil }

func TestMessageConnMalformedSurvives(t *testing.T) {
	good := frameBytes(t, 1, []byte("ok"))
	lying := []byte{0x00, 0x01, 0x00, 0x05, 'a', 'b'}
	short := []byte{0x00}
	ch := &scriptedMessages{msgs: [][]byte{good, lying, short, good}}
	conn := NewMessageConnection(ch)

	pkt, err := conn.NextFrame()
	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), pkt.Payload)

	for i := 0; i < 2; i++ {
		_, err = conn.NextFrame()
		assert.ErrorIs(t, err, protocol.ErrMalformedFrame)
		assert.Equal(t, outcomeMalformed, classify(err))
	}

	pkt, err = conn.NextFrame()
	require.NoError(t, err)
	assert.Equal(t, protocol.PacketID(1), pkt.ID)

	_, err = conn.NextFrame()
	assert.ErrorIs(t, err, ErrWouldBlock)
	assert.Equal(t, "", conn.RemoteAddr())
}

func TestMessageConnEmitWholeFrame(t *testing.T) {
	ch := &scriptedMessages{}
	conn := NewMessageConnection(ch)
	raw, err := protocol.NewRawPacket(3, []byte("abc"))
	require.NoError(t, err)
	require.NoError(t, conn.Emit(raw))
	require.Len(t, ch.written, 1)
	assert.Equal(t, raw.AppendFrame(nil), ch.written[0])
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want outcome
	}{
		{"would block", ErrWouldBlock, outcomeTransient},
		{"wrapped would block", errors.Join(errors.New("ctx"), ErrWouldBlock), outcomeTransient},
		{"malformed", protocol.ErrMalformedFrame, outcomeMalformed},
		{"eof", io.EOF, outcomeFatal},
		{"unexpected eof", io.ErrUnexpectedEOF, outcomeFatal},
		{"closed", net.ErrClosed, outcomeFatal},
		{"reset", &net.OpError{Op: "read", Err: syscall.ECONNRESET}, outcomeFatal},
		{"aborted", syscall.ECONNABORTED, outcomeFatal},
		{"refused", syscall.ECONNREFUSED, outcomeFatal},
		{"broken pipe", syscall.EPIPE, outcomeFatal},
		{"unsupported", errors.ErrUnsupported, outcomeFatal},
		{"other", errors.New("boom"), outcomeOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classify(tt.err); got != tt.want {
				t.Errorf("classify(%v) = %s, want %s", tt.err, got, tt.want)
			}
		})
	}
}

func TestConnStateAggregateIsSticky(t *testing.T) {
	s := stateValid
	s.aggregate(stateValid)
	assert.Equal(t, stateValid, s)
	s.aggregate(stateShouldClose)
	s.aggregate(stateValid)
	assert.Equal(t, stateShouldClose, s)
}

package protocol

import (
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type hello struct {
	FromClient
	Name string
}

func (hello) PacketName() string { return "test.hello" }

type welcome struct {
	FromServer
	ID    uint32
	Motd  string
	Flags []string
}

func (welcome) PacketName() string { return "test.welcome" }

type tick struct {
	FromServer
}

func (tick) PacketName() string { return "test.tick" }

type unregistered struct {
	FromClient
}

func (unregistered) PacketName() string { return "test.unregistered" }

type impostor struct {
	FromClient
	Nick string
}

func (impostor) PacketName() string { return "test.hello" }

type orphan struct{}

func (orphan) PacketName() string { return "test.orphan" }
func (orphan) Side() Side         { return 0 }

func testProtocol(t *testing.T) *Protocol {
	t.Helper()
	p, err := NewBuilder().Register(hello{}, welcome{}, tick{}).Build()
	require.NoError(t, err)
	return p
}

func TestRegistrationOrder(t *testing.T) {
	p := testProtocol(t)
	require.Equal(t, 3, p.Len())

	tests := []struct {
		name string
		id   PacketID
		side Side
	}{
		{"test.hello", 0, SideClient},
		{"test.welcome", 1, SideServer},
		{"test.tick", 2, SideServer},
	}
	for _, tt := range tests {
		id, err := p.IDOf(tt.name)
		require.NoError(t, err)
		assert.Equal(t, tt.id, id)

		e, err := p.EntryOf(id)
		require.NoError(t, err)
		assert.Equal(t, tt.name, e.Name)
		assert.Equal(t, tt.side, e.Side)
	}

	_, err := p.EntryOf(3)
	assert.ErrorIs(t, err, ErrUnknownID)
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.NotErrorIs(t, err, ErrMalformedFrame)
}

func TestRegistrationErrors(t *testing.T) {
	tests := []struct {
		name    string
		packets []Packet
		want    error
	}{
		{"duplicate", []Packet{hello{}, welcome{}, hello{}}, ErrDuplicatePacket},
		{"pointer", []Packet{&hello{}}, ErrInvalidPacket},
		{"nil", []Packet{nil}, ErrInvalidPacket},
		{"no side", []Packet{orphan{}}, ErrInvalidPacket},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBuilder().Register(tt.packets...).Build()
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, ErrConfiguration)
		})
	}
}

func TestMustBuildPanics(t *testing.T) {
	assert.Panics(t, func() {
		NewBuilder().Register(hello{}, hello{}).MustBuild()
	})
}

func TestGroupKeepsOrder(t *testing.T) {
	login := func(b *Builder) { b.Register(hello{}, welcome{}) }
	p := NewBuilder().Group(login).Register(tick{}).MustBuild()
	id, err := p.IDFor(tick{})
	require.NoError(t, err)
	assert.Equal(t, PacketID(2), id)
}

func TestFingerprint(t *testing.T) {
	a := testProtocol(t)
	b := testProtocol(t)
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	reordered := NewBuilder().Register(welcome{}, hello{}, tick{}).MustBuild()
	assert.NotEqual(t, a.Fingerprint(), reordered.Fingerprint())
}

func TestEntriesIsCopy(t *testing.T) {
	p := testProtocol(t)
	entries := p.Entries()
	entries[0].Name = "mutated"
	e, _ := p.EntryOf(0)
	assert.Equal(t, "test.hello", e.Name)
}

func TestUnknownPacket(t *testing.T) {
	p := testProtocol(t)
	_, err := p.IDFor(unregistered{})
	assert.ErrorIs(t, err, ErrUnknownPacket)

	_, err = Encode(p, unregistered{})
	assert.ErrorIs(t, err, ErrConfiguration)

	// 同名不同类型
	_, err = p.IDFor(impostor{})
	assert.ErrorIs(t, err, ErrUnknownPacket)
	_, err = p.IDFor(&hello{})
	assert.ErrorIs(t, err, ErrUnknownPacket)
	_, err = Decode[impostor](p, RawPacket{ID: 0})
	assert.ErrorIs(t, err, ErrConfiguration)

	id, err := p.IDFor(hello{Name: "x"})
	require.NoError(t, err)
	e, err := p.EntryOf(id)
	require.NoError(t, err)
	assert.Equal(t, reflect.TypeOf(hello{}), e.Type)
}

func TestSide(t *testing.T) {
	assert.Equal(t, "client", SideClient.String())
	assert.Equal(t, "server", SideServer.String())
	assert.Equal(t, SideServer, SideClient.Opposite())
	assert.Equal(t, SideClient, SideServer.Opposite())
	assert.Equal(t, "unknown", Side(9).String())
	assert.Equal(t, "test.hello", NameOf[hello]())
}

type panicCodec struct{}

func (panicCodec) Name() string                { return "panic" }
func (panicCodec) Marshal(any) ([]byte, error) { return []byte{0}, nil }
func (panicCodec) Unmarshal(data []byte, _ any) error {
	panic("short buffer")
}

func TestDecodeBodyRecoversCodecPanic(t *testing.T) {
	p := NewBuilder().WithCodec(panicCodec{}).Register(hello{}).MustBuild()
	var got hello
	var err error
	require.NotPanics(t, func() {
		got, err = DecodeBody[hello](p, []byte{1})
	})
	assert.ErrorIs(t, err, ErrMalformedFrame)
	assert.Equal(t, hello{}, got)
}

func FuzzDecodeBody(f *testing.F) {
	p, err := NewBuilder().Register(hello{}, welcome{}, tick{}).Build()
	if err != nil {
		f.Fatal(err)
	}
	for _, pkt := range []Packet{hello{Name: "ada"}, welcome{ID: 7, Motd: "hi", Flags: []string{"a", "b"}}} {
		raw, err := Encode(p, pkt)
		if err != nil {
			f.Fatal(err)
		}
		f.Add(raw.Payload)
		f.Add(raw.Payload[:len(raw.Payload)/2])
	}
	f.Add([]byte{0x94, 0x9c, 0x74, 0x03, 0x6b, 0x5b, 0x3d, 0xa8, 0xb1, 0xa0, 0xb9, 0x31, 0x35, 0xa7, 0x10, 0x35, 0x2d, 0xa0, 0xf6, 0xc3, 0x12, 0x03})
	f.Add([]byte{0xc1, 0xc1})

	f.Fuzz(func(t *testing.T, body []byte) {
		if _, err := DecodeBody[hello](p, body); err != nil && !errors.Is(err, ErrMalformedFrame) {
			t.Errorf("hello: unexpected error %v", err)
		}
		if _, err := DecodeBody[welcome](p, body); err != nil && !errors.Is(err, ErrMalformedFrame) {
			t.Errorf("welcome: unexpected error %v", err)
		}
	})
}

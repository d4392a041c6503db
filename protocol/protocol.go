package protocol

import (
	"fmt"
	"math"
	"reflect"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/lcx/hearth/codec"
)

// PacketID is the dense wire identifier of a registered packet. IDs are
// assigned from zero in registration order.
type PacketID uint16

// Entry describes one registered packet.
type Entry struct {
	ID   PacketID
	Name string
	Side Side
	Type reflect.Type
}

// Builder collects packet registrations. The first error is kept and
// reported by Build, so registrations can be chained.
type Builder struct {
	entries []Entry
	index   map[string]PacketID
	codec   codec.Codec
	err     error
}

// NewBuilder creates an empty Builder using the default codec.
func NewBuilder() *Builder {
	return &Builder{
		index: make(map[string]PacketID),
		codec: codec.Default(),
	}
}

// WithCodec sets the codec used for every packet body of the protocol.
func (b *Builder) WithCodec(c codec.Codec) *Builder {
	if c != nil {
		b.codec = c
	}
	return b
}

// Register appends packets to the table. Each packet receives the next free id.
// Parameters:
// - packets: zero values of the packet types, only their type and name are used
func (b *Builder) Register(packets ...Packet) *Builder {
	for _, p := range packets {
		if b.err != nil {
			return b
		}
		b.err = b.register(p)
	}
	return b
}

func (b *Builder) register(p Packet) error {
	if p == nil {
		return fmt.Errorf("%w: nil packet", ErrInvalidPacket)
	}
	t := reflect.TypeOf(p)
	if t.Kind() == reflect.Pointer {
		return fmt.Errorf("%w: %s must be registered by value", ErrInvalidPacket, t)
	}
	name := p.PacketName()
	if name == "" {
		return fmt.Errorf("%w: %s has an empty name", ErrInvalidPacket, t)
	}
	side := p.Side()
	if side != SideClient && side != SideServer {
		return fmt.Errorf("%w: %s has no side", ErrInvalidPacket, name)
	}
	if _, ok := b.index[name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicatePacket, name)
	}
	if len(b.entries) > math.MaxUint16 {
		return fmt.Errorf("%w: %q", ErrTooManyPackets, name)
	}
	id := PacketID(len(b.entries))
	b.entries = append(b.entries, Entry{ID: id, Name: name, Side: side, Type: t})
	b.index[name] = id
	return nil
}

// Group runs fn against the builder. Modules use it to keep their packets
// together in the id space.
func (b *Builder) Group(fn func(b *Builder)) *Builder {
	if b.err == nil {
		fn(b)
	}
	return b
}

// Build freezes the registrations into a Protocol.
func (b *Builder) Build() (*Protocol, error) {
	if b.err != nil {
		return nil, b.err
	}
	p := &Protocol{
		entries: make([]Entry, len(b.entries)),
		index:   make(map[string]PacketID, len(b.index)),
		codec:   b.codec,
	}
	copy(p.entries, b.entries)
	for k, v := range b.index {
		p.index[k] = v
	}
	p.fingerprint = fingerprint(p.codec.Name(), p.entries)
	return p, nil
}

// MustBuild is Build that panics on a configuration error.
func (b *Builder) MustBuild() *Protocol {
	p, err := b.Build()
	if err != nil {
		panic(err)
	}
	return p
}

// Protocol is the immutable packet table shared by both peers. Two peers can
// talk only if they built identical tables, see Fingerprint.
type Protocol struct {
	entries     []Entry
	index       map[string]PacketID
	codec       codec.Codec
	fingerprint uint64
}

// Len returns the number of registered packets.
func (p *Protocol) Len() int {
	return len(p.entries)
}

// Codec ...
func (p *Protocol) Codec() codec.Codec {
	return p.codec
}

// IDOf looks up the id registered under name.
func (p *Protocol) IDOf(name string) (PacketID, error) {
	id, ok := p.index[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownPacket, name)
	}
	return id, nil
}

// IDFor looks up the id of pkt's type. A type that merely shares the name
// of a registered packet is unknown.
func (p *Protocol) IDFor(pkt Packet) (PacketID, error) {
	id, err := p.IDOf(pkt.PacketName())
	if err != nil {
		return 0, err
	}
	if t := reflect.TypeOf(pkt); t != p.entries[id].Type {
		return 0, fmt.Errorf("%w: %q is registered as %s, got %s", ErrUnknownPacket, pkt.PacketName(), p.entries[id].Type, t)
	}
	return id, nil
}

// EntryOf returns the registration for id.
func (p *Protocol) EntryOf(id PacketID) (Entry, error) {
	if int(id) >= len(p.entries) {
		return Entry{}, fmt.Errorf("%w: %d", ErrUnknownID, id)
	}
	return p.entries[id], nil
}

// Entries returns a copy of the table in id order.
func (p *Protocol) Entries() []Entry {
	out := make([]Entry, len(p.entries))
	copy(out, p.entries)
	return out
}

// Fingerprint is a hash of the ordered (name, side) table and the codec name.
func (p *Protocol) Fingerprint() uint64 {
	return p.fingerprint
}

func fingerprint(codecName string, entries []Entry) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(codecName)
	_, _ = d.WriteString(";")
	for _, e := range entries {
		_, _ = d.WriteString(e.Name)
		_, _ = d.WriteString("/")
		_, _ = d.WriteString(strconv.Itoa(int(e.Side)))
		_, _ = d.WriteString(";")
	}
	return d.Sum64()
}

// NameOf returns the registry key of packet type P.
func NameOf[P Packet]() string {
	var zero P
	return zero.PacketName()
}

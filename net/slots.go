package net

import (
	"fmt"
)

// ConnHandle names a server-side connection. A handle stays unique for the
// life of the server: once its connection is removed the slot generation
// moves on and the old handle goes stale.
type ConnHandle struct {
	index uint32
	gen   uint32
}

// Index is the slot position.
func (h ConnHandle) Index() uint32 { return h.index }

// Generation starts at 1, so the zero handle never refers to a connection.
func (h ConnHandle) Generation() uint32 { return h.gen }

// IsZero reports whether h is the zero handle.
func (h ConnHandle) IsZero() bool { return h.gen == 0 }

func (h ConnHandle) String() string {
	return fmt.Sprintf("%d:%d", h.index, h.gen)
}

// PeerHandle is the origin of packets a client receives: the server.
type PeerHandle struct{}

type slot[T any] struct {
	gen      uint32
	occupied bool
	value    T
}

// slotTable is a generational arena. Freed slots are reused last in first
// out with their generation bumped.
type slotTable[T any] struct {
	slots []slot[T]
	free  []uint32
	count int
}

func (t *slotTable[T]) insert(v T) ConnHandle {
	var idx uint32
	if n := len(t.free); n > 0 {
		idx = t.free[n-1]
		t.free = t.free[:n-1]
	} else {
		idx = uint32(len(t.slots))
		t.slots = append(t.slots, slot[T]{})
	}
	s := &t.slots[idx]
	s.gen++
	if s.gen == 0 {
		s.gen = 1
	}
	s.occupied = true
	s.value = v
	t.count++
	return ConnHandle{index: idx, gen: s.gen}
}

func (t *slotTable[T]) get(h ConnHandle) (T, bool) {
	if int(h.index) >= len(t.slots) {
		var zero T
		return zero, false
	}
	s := &t.slots[h.index]
	if !s.occupied || s.gen != h.gen {
		var zero T
		return zero, false
	}
	return s.value, true
}

func (t *slotTable[T]) remove(h ConnHandle) (T, bool) {
	v, ok := t.get(h)
	if !ok {
		return v, false
	}
	s := &t.slots[h.index]
	var zero T
	s.value = zero
	s.occupied = false
	t.free = append(t.free, h.index)
	t.count--
	return v, true
}

func (t *slotTable[T]) len() int {
	return t.count
}

// each visits occupied slots in index order. fn must not insert or remove.
func (t *slotTable[T]) each(fn func(h ConnHandle, v T)) {
	for i := range t.slots {
		s := &t.slots[i]
		if s.occupied {
			fn(ConnHandle{index: uint32(i), gen: s.gen}, s.value)
		}
	}
}

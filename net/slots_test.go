package net

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlotTableHandlesNeverAlias(t *testing.T) {
	var tab slotTable[string]
	a := tab.insert("a")
	b := tab.insert("b")
	assert.NotEqual(t, a, b)
	assert.Equal(t, uint32(1), a.Generation())
	assert.False(t, a.IsZero())

	v, ok := tab.remove(a)
	require.True(t, ok)
	assert.Equal(t, "a", v)

	c := tab.insert("c")
	assert.Equal(t, a.Index(), c.Index(), "freed slot is reused")
	assert.NotEqual(t, a, c)
	assert.Equal(t, uint32(2), c.Generation())

	_, ok = tab.get(a)
	assert.False(t, ok, "old handle is stale")
	got, ok := tab.get(c)
	require.True(t, ok)
	assert.Equal(t, "c", got)

	_, ok = tab.remove(a)
	assert.False(t, ok)
	assert.Equal(t, 2, tab.len())
}

func TestSlotTableFreeListIsLIFO(t *testing.T) {
	var tab slotTable[int]
	hs := []ConnHandle{tab.insert(0), tab.insert(1), tab.insert(2)}
	tab.remove(hs[0])
	tab.remove(hs[2])
	assert.Equal(t, hs[2].Index(), tab.insert(3).Index())
	assert.Equal(t, hs[0].Index(), tab.insert(4).Index())
}

func TestSlotTableEach(t *testing.T) {
	var tab slotTable[string]
	a := tab.insert("a")
	tab.insert("b")
	tab.insert("c")
	tab.remove(a)

	var seen []string
	tab.each(func(_ ConnHandle, v string) {
		seen = append(seen, v)
	})
	assert.Equal(t, []string{"b", "c"}, seen)
}

func TestZeroHandleIsNeverLive(t *testing.T) {
	var tab slotTable[int]
	tab.insert(1)
	_, ok := tab.get(ConnHandle{})
	assert.False(t, ok)
	assert.True(t, ConnHandle{}.IsZero())
	assert.Equal(t, "0:1", ConnHandle{index: 0, gen: 1}.String())
}

package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func id(b byte) BlockId {
	var out BlockId
	out[31] = b
	return out
}

func TestChainDeepestPrefersTailOverBase(t *testing.T) {
	c := Chain{BaseBlock: id(0), Blocks: []BlockId{id(1), id(2), id(3)}}

	known := map[BlockId]bool{id(0): true, id(1): true}
	got, ok := c.Deepest(func(x BlockId) bool { return known[x] })
	require.True(t, ok)
	require.Equal(t, id(1), got)
}

func TestChainDeepestFallsBackToBase(t *testing.T) {
	c := Chain{BaseBlock: id(0), Blocks: []BlockId{id(1), id(2)}}
	got, ok := c.Deepest(func(x BlockId) bool { return x == id(0) })
	require.True(t, ok)
	require.Equal(t, id(0), got)
}

func TestChainDeepestReturnsFalseWhenNothingKnown(t *testing.T) {
	c := Chain{BaseBlock: id(0), Blocks: []BlockId{id(1)}}
	_, ok := c.Deepest(func(x BlockId) bool { return false })
	require.False(t, ok)
}

func TestChainContains(t *testing.T) {
	c := Chain{BaseBlock: id(0), Blocks: []BlockId{id(1), id(2)}}
	require.True(t, c.Contains(id(0)))
	require.True(t, c.Contains(id(2)))
	require.False(t, c.Contains(id(9)))
}

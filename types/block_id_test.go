package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewBlockIdEncodesHeight(t *testing.T) {
	var tail [28]byte
	tail[0] = 0xAB
	id := NewBlockId(42, tail)
	require.Equal(t, uint32(42), id.Height())
	require.Equal(t, byte(0xAB), id[4])
}

func TestBlockIdHexRoundTrip(t *testing.T) {
	var tail [28]byte
	tail[5] = 0x7f
	id := NewBlockId(7, tail)

	parsed, err := BlockIdFromHex(id.String())
	require.NoError(t, err)
	require.Equal(t, id, parsed)
}

func TestBlockIdJSONRoundTrip(t *testing.T) {
	var tail [28]byte
	id := NewBlockId(1, tail)

	b, err := id.MarshalJSON()
	require.NoError(t, err)

	var got BlockId
	require.NoError(t, got.UnmarshalJSON(b))
	require.Equal(t, id, got)
}

func TestZeroBlockIdIsZero(t *testing.T) {
	require.True(t, ZeroBlockId.IsZero())
	require.True(t, BlockId{}.IsZero())
}

func TestLessOrdersByHeightOnly(t *testing.T) {
	var tailA, tailB [28]byte
	tailA[0] = 0xFF // higher tail bytes, lower height
	a := NewBlockId(1, tailA)
	b := NewBlockId(2, tailB)
	require.True(t, Less(a, b))
	require.False(t, Less(b, a))
}

func TestBlockIdFromHexRejectsWrongLength(t *testing.T) {
	_, err := BlockIdFromHex("abcd")
	require.Error(t, err)
}

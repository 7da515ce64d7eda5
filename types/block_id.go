package types

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// BlockId is the gadget's opaque 256-bit block identifier. The first 32 bits
// of the id, byte-reversed, carry the block height; it is the only numeric
// ordering the gadget relies on (spec.md §3 "BlockId").
type BlockId [32]byte

// ZeroBlockId is the sentinel used before any block has been observed.
var ZeroBlockId = BlockId{}

func (id BlockId) String() string {
	return hex.EncodeToString(id[:])
}

// Equal implements bitwise equality, per spec.md §3.
func (id BlockId) Equal(other BlockId) bool {
	return id == other
}

func (id BlockId) IsZero() bool {
	return id == ZeroBlockId
}

// Height returns the block height encoded in the first 4 bytes of the id,
// read as a big-endian uint32 (the layout NewBlockId writes), matching the
// EOSIO block-id convention the gadget was distilled from.
func (id BlockId) Height() uint32 {
	return uint32(id[0])<<24 | uint32(id[1])<<16 | uint32(id[2])<<8 | uint32(id[3])
}

// NewBlockId builds a BlockId with the given height encoded in its leading
// bytes and the remainder filled from a content digest. Used by tests and by
// any component that needs to synthesize an id (e.g. genesis/root blocks).
func NewBlockId(height uint32, tail [28]byte) BlockId {
	var id BlockId
	id[0] = byte(height >> 24)
	id[1] = byte(height >> 16)
	id[2] = byte(height >> 8)
	id[3] = byte(height)
	copy(id[4:], tail[:])
	return id
}

// BlockIdFromHex parses a hex-encoded 32-byte block id.
func BlockIdFromHex(s string) (BlockId, error) {
	var id BlockId
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("block id: %w", err)
	}
	if len(b) != len(id) {
		return id, fmt.Errorf("block id: expected %d bytes, got %d", len(id), len(b))
	}
	copy(id[:], b)
	return id, nil
}

// Less orders block ids by height only, which is the gadget's sole ordering
// relation (spec.md §3).
func Less(a, b BlockId) bool {
	return a.Height() < b.Height()
}

// MarshalJSON renders a BlockId as a hex string, so the adapter's tmjson
// encoding of wire messages is human-legible rather than an array of ints.
func (id BlockId) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.String())
}

func (id *BlockId) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := BlockIdFromHex(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

package types

// Chain is a contiguous path of blocks: blocks[0] is a child of BaseBlock,
// blocks[i] is a child of blocks[i-1] for i>0 (spec.md §3 "Chain").
type Chain struct {
	BaseBlock BlockId
	Blocks    []BlockId
}

// Deepest returns the deepest block the tree (per the predicate `known`)
// recognizes, walking from the tail of Blocks back to BaseBlock. Used by
// round prevote validation to find the target node (spec.md §4.2 "the
// target node").
func (c Chain) Deepest(known func(BlockId) bool) (BlockId, bool) {
	for i := len(c.Blocks) - 1; i >= 0; i-- {
		if known(c.Blocks[i]) {
			return c.Blocks[i], true
		}
	}
	if known(c.BaseBlock) {
		return c.BaseBlock, true
	}
	return BlockId{}, false
}

// Contains reports whether target equals BaseBlock or appears in Blocks,
// used by proof/prevote validation (spec.md §4.2, §4.3 validate_prevote).
func (c Chain) Contains(target BlockId) bool {
	if c.BaseBlock == target {
		return true
	}
	for _, b := range c.Blocks {
		if b == target {
			return true
		}
	}
	return false
}

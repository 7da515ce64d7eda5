package types

// SessionId is the host transport's opaque handle for a peer connection
// (spec.md §3 "Session ID", GLOSSARY).
type SessionId uint32

// BPKeySet is the active block-producer set as known at a given block,
// used to size quorum for votes at that height (spec.md §3 "active_bp_keys").
type BPKeySet map[[33]byte]struct{}

func NewBPKeySet(keys ...PublicKey) BPKeySet {
	s := make(BPKeySet, len(keys))
	for _, k := range keys {
		s[k.Comparable()] = struct{}{}
	}
	return s
}

func (s BPKeySet) Has(k PublicKey) bool {
	_, ok := s[k.Comparable()]
	return ok
}

func (s BPKeySet) Len() int { return len(s) }

// Threshold returns true if count exceeds two-thirds of the set (spec.md's
// "strictly more than two-thirds" quorum rule, used throughout §4).
func (s BPKeySet) Threshold(count int) bool {
	return count > 2*len(s)/3
}

// AcceptedBlockEvent is fired by the host when a new block enters its fork
// tree (spec.md §6 "events in: accepted_block(state)").
type AcceptedBlockEvent struct {
	BlockId       BlockId
	PrevBlockId   BlockId
	CreatorKey    PublicKey
	ActiveBPKeys  BPKeySet
	Sync          bool // true if the host is still catching up (spec.md §4.3)
}

// IrreversibleEvent is fired by the host when it independently determines a
// block is irreversible by its own (non-gadget) rule, or when the gadget's
// own finalization decision is echoed back (spec.md §6).
type IrreversibleEvent struct {
	BlockId BlockId
}

// NewPeerEvent is fired by the host transport when a new peer session opens
// (spec.md §6 "events in: new_peer(session_id)").
type NewPeerEvent struct {
	SessionId SessionId
}

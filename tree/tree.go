// Package tree implements the PrefixTree described in spec.md §4.1: an
// in-memory tree of block ids rooted at the current LIB, with a
// per-node confirmation map used by the round state machine (package
// round) to track votes.
//
// The tree is not shared across goroutines -- spec.md §5 assigns it to a
// single worker -- so no synchronization is used here, matching the
// original randpa_plugin's prefix_chain_tree (grounded in
// eosio/grandpa_plugin/prefix_chain_tree.hpp, which randpa_plugin reused).
package tree

import (
	"errors"
	"fmt"

	"github.com/mixbytes/randpa/types"
)

// ErrNodeNotFound is returned by Insert when neither the chain's base block
// nor any of its listed blocks is already in the tree (spec.md §4.1).
var ErrNodeNotFound = errors.New("tree: node not found")

// Node is one TreeNode per distinct block observed since the current LIB
// (spec.md §3 "TreeNode").
type Node struct {
	BlockId      types.BlockId
	Parent       *Node // weak back-reference; nil for the root
	Children     []*Node
	CreatorKey   types.PublicKey
	ActiveBPKeys types.BPKeySet

	// Confirmations maps voter -> the signed prevote covering this node in
	// the current round (spec.md §3 invariant I4: keys subset of ActiveBPKeys).
	Confirmations map[[33]byte]types.PrevoteEnvelope
}

// ConfirmationCount returns the number of distinct voters confirming this
// node in the current round.
func (n *Node) ConfirmationCount() int { return len(n.Confirmations) }

// HasConfirmation reports whether key has confirmed this node.
func (n *Node) HasConfirmation(key types.PublicKey) bool {
	_, ok := n.Confirmations[key.Comparable()]
	return ok
}

func (n *Node) childWithId(id types.BlockId) *Node {
	for _, c := range n.Children {
		if c.BlockId == id {
			return c
		}
	}
	return nil
}

func newNode(id types.BlockId, parent *Node, creator types.PublicKey, bpKeys types.BPKeySet) *Node {
	return &Node{
		BlockId:       id,
		Parent:        parent,
		CreatorKey:    creator,
		ActiveBPKeys:  bpKeys,
		Confirmations: make(map[[33]byte]types.PrevoteEnvelope),
	}
}

// Tree is the PrefixTree of spec.md §4.1.
type Tree struct {
	root *Node

	// lastInserted maps a block producer's key to the deepest node it is
	// known to have built on -- the tree-level table spec.md §3 calls
	// "last_inserted_block", used to pick each round's prevote target.
	lastInserted map[[33]byte]*Node
}

// New creates a PrefixTree rooted at root (typically the current LIB, with
// no confirmations and an empty active-BP set until blocks are inserted on
// top of it).
func New(root types.BlockId) *Tree {
	return &Tree{
		root:         newNode(root, nil, types.PublicKey{}, types.BPKeySet{}),
		lastInserted: make(map[[33]byte]*Node),
	}
}

// Root returns the current root node (the LIB).
func (t *Tree) Root() *Node { return t.root }

// Find performs a depth-first search from the root (spec.md §4.1 "find").
func (t *Tree) Find(id types.BlockId) *Node {
	return find(t.root, id)
}

func find(n *Node, id types.BlockId) *Node {
	if n.BlockId == id {
		return n
	}
	for _, c := range n.Children {
		if found := find(c, id); found != nil {
			return found
		}
	}
	return nil
}

// Insert locates chain.BaseBlock, or the first of chain.Blocks already
// present, then appends any missing blocks beneath it. Each newly created
// node carries creatorKey and activeBPKeys from the inserting event.
// lastInserted[creatorKey] is updated to the deepest node this call
// inserted. Returns ErrNodeNotFound per spec.md §4.1 when neither base nor
// any listed block is already known.
func (t *Tree) Insert(chain types.Chain, creatorKey types.PublicKey, activeBPKeys types.BPKeySet) (*Node, error) {
	anchor := t.Find(chain.BaseBlock)
	blocks := chain.Blocks

	if anchor == nil {
		for i, b := range chain.Blocks {
			if n := t.Find(b); n != nil {
				anchor = n
				blocks = chain.Blocks[i+1:]
				break
			}
		}
	}

	if anchor == nil {
		return nil, fmt.Errorf("%w: base=%s", ErrNodeNotFound, chain.BaseBlock)
	}

	cur := anchor
	var deepestNew *Node
	for _, id := range blocks {
		if next := cur.childWithId(id); next != nil {
			cur = next
			continue
		}
		next := newNode(id, cur, creatorKey, activeBPKeys)
		cur.Children = append(cur.Children, next)
		cur = next
		deepestNew = next
	}

	if deepestNew == nil {
		// The whole chain was already present; the deepest matched node is
		// still the producer's most recently known block.
		deepestNew = cur
	}
	if !creatorKey.IsZero() {
		t.lastInserted[creatorKey.Comparable()] = deepestNew
	}

	return deepestNew, nil
}

// AddConfirmations behaves like Insert for an already-existing path: it
// records envelope in Confirmations at chain.BaseBlock and every listed
// descendant present in the tree, but never creates new nodes -- it stops
// silently at the first unknown descendant (spec.md §4.1). It returns the
// deepest node whose confirmation count reached a new maximum across this
// call, the "max-confirmation node" fed to the round state machine.
func (t *Tree) AddConfirmations(chain types.Chain, voterKey types.PublicKey, envelope types.PrevoteEnvelope) (*Node, error) {
	node := t.Find(chain.BaseBlock)
	if node == nil {
		return nil, fmt.Errorf("%w: base=%s", ErrNodeNotFound, chain.BaseBlock)
	}

	maxNode := node
	recordConfirmation(node, voterKey, envelope)

	for _, id := range chain.Blocks {
		next := node.childWithId(id)
		if next == nil {
			break
		}
		recordConfirmation(next, voterKey, envelope)
		if next.ConfirmationCount() >= maxNode.ConfirmationCount() {
			maxNode = next
		}
		node = next
	}

	return maxNode, nil
}

func recordConfirmation(n *Node, voterKey types.PublicKey, envelope types.PrevoteEnvelope) {
	n.Confirmations[voterKey.Comparable()] = envelope
}

// RemoveConfirmations clears Confirmations on every node, called between
// rounds (spec.md §4.1, §4.3 clear_round_data).
func (t *Tree) RemoveConfirmations() {
	var walk func(*Node)
	walk = func(n *Node) {
		n.Confirmations = make(map[[33]byte]types.PrevoteEnvelope)
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(t.root)
}

// SetRoot makes node the new root, drops its parent edge, and releases all
// siblings and their subtrees (spec.md §4.1, invariant I5).
func (t *Tree) SetRoot(node *Node) {
	node.Parent = nil
	t.root = node
	// lastInserted entries pointing outside the new root's subtree become
	// stale; pruning them lazily (on next lookup miss) would be equally
	// correct, but dropping eagerly keeps the table small and avoids
	// leaking detached subtrees through it.
	for k, n := range t.lastInserted {
		if !isDescendantOrSelf(node, n) {
			delete(t.lastInserted, k)
		}
	}
}

func isDescendantOrSelf(root, n *Node) bool {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur == root {
			return true
		}
	}
	return false
}

// GetBranch walks parents from headId to the root, producing
// {base=root, blocks=[root.child...head]} (spec.md §4.1).
func (t *Tree) GetBranch(headId types.BlockId) (types.Chain, error) {
	head := t.Find(headId)
	if head == nil {
		return types.Chain{}, fmt.Errorf("%w: %s", ErrNodeNotFound, headId)
	}

	var blocks []types.BlockId
	for cur := head; cur != t.root; cur = cur.Parent {
		if cur == nil {
			return types.Chain{}, fmt.Errorf("tree: %s is not a descendant of root", headId)
		}
		blocks = append([]types.BlockId{cur.BlockId}, blocks...)
	}

	return types.Chain{BaseBlock: t.root.BlockId, Blocks: blocks}, nil
}

// LastInsertedBlock returns the deepest block known to have been built by
// key, used to choose each round's prevote target (spec.md §4.1,
// §4.2 "the longest branch built by primary").
func (t *Tree) LastInsertedBlock(key types.PublicKey) *Node {
	return t.lastInserted[key.Comparable()]
}

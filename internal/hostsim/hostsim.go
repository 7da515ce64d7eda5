// Package hostsim is a deterministic, in-memory stand-in for the host
// chain and its peer-to-peer transport: an adapter.Host plus a set of
// adapter.Transport endpoints wired directly together in memory, with no
// real networking or block production underneath. It exists only to drive
// the scenarios spec.md §8 describes (single node, N-node symmetric, a
// slow link, below-threshold quorum, proof-only catch-up) from tests and
// the bundled CLI's debug-sim command, never from production wiring --
// node.DefaultNewNode falls back to it only because this module ships no
// real chain to embed against, the same gap the teacher's own
// DefaultNewNode leaves for callers to fill with their own Provider.
package hostsim

import (
	"sync"
	"time"

	"github.com/mixbytes/randpa/adapter"
	"github.com/mixbytes/randpa/types"
)

// Chain is a single linear in-memory block list, the simplest possible
// stand-in for a host's fork database: no actual forking, one producer at
// a time, new blocks appended by Produce.
type Chain struct {
	mtx          sync.Mutex
	blocks       []adapter.BlockInfo // index 0 is genesis/lib
	libIdx       int
	activeBPKeys types.BPKeySet
	finalized    []types.BlockId
}

// NewChain seeds a chain with a zero-height genesis block and bpKeys as the
// permanent active block-producer set (spec.md §8 scenarios all hold the
// BP set fixed for the run).
func NewChain(bpKeys types.BPKeySet) *Chain {
	genesis := adapter.BlockInfo{
		BlockId:      blockIdAt(0, 0),
		ActiveBPKeys: bpKeys,
	}
	return &Chain{
		blocks:       []adapter.BlockInfo{genesis},
		activeBPKeys: bpKeys,
	}
}

func blockIdAt(height uint32, nonce byte) types.BlockId {
	var tail [28]byte
	tail[27] = nonce
	return types.NewBlockId(height, tail)
}

// Produce appends a new block built by creator on top of the current head
// and returns it, ready to be handed to adapter.Adapter.AcceptedBlock by
// the caller (this package never touches an adapter directly, so tests can
// control exactly when/whether a block is delivered -- spec.md §8's
// "slow link" scenario delays exactly this handoff for one peer). The
// block's Timestamp is wall-clock now, so adapter.Adapter never mistakes a
// freshly produced block for catch-up (adapter.SyncAge).
func (c *Chain) Produce(creator types.PublicKey) adapter.BlockInfo {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	head := c.blocks[len(c.blocks)-1]
	height := head.BlockId.Height() + 1
	b := adapter.BlockInfo{
		BlockId:      blockIdAt(height, byte(len(c.blocks))),
		PrevBlockId:  head.BlockId,
		CreatorKey:   creator,
		ActiveBPKeys: c.activeBPKeys,
		Timestamp:    time.Now(),
	}
	c.blocks = append(c.blocks, b)
	return b
}

// ForkDBBlocks implements adapter.Host: every block strictly after lib, in
// ascending height order.
func (c *Chain) ForkDBBlocks(lib types.BlockId) ([]adapter.BlockInfo, error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	for i, b := range c.blocks {
		if b.BlockId == lib {
			out := make([]adapter.BlockInfo, len(c.blocks)-i-1)
			copy(out, c.blocks[i+1:])
			return out, nil
		}
	}
	return nil, nil
}

// LastIrreversibleBlockId implements adapter.Host.
func (c *Chain) LastIrreversibleBlockId() types.BlockId {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.blocks[c.libIdx].BlockId
}

// BFTFinalize implements adapter.Host: records id and advances the
// chain's own notion of LIB if id is a block this chain actually produced.
func (c *Chain) BFTFinalize(id types.BlockId) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.finalized = append(c.finalized, id)
	for i, b := range c.blocks {
		if b.BlockId == id {
			c.libIdx = i
			return
		}
	}
}

// Finalized returns every block id BFTFinalize has been called with, in
// call order -- the assertion surface for tests.
func (c *Chain) Finalized() []types.BlockId {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	out := make([]types.BlockId, len(c.finalized))
	copy(out, c.finalized)
	return out
}

// Network is a fully-connected, in-memory transport fabric: every Endpoint
// it hands out can reach every other by the small integer session id
// assigned at creation (spec.md §8's star/symmetric topologies don't need
// anything richer than "address a peer by an opaque numeric handle").
type Network struct {
	mtx       sync.Mutex
	endpoints []*Endpoint
	drop      map[[2]types.SessionId]bool // endpoints[i] -> endpoints[j] link dropped/delayed
}

// NewNetwork allocates n endpoints, each aware of the other n-1 by session
// id 1..n (its own index skipped).
func NewNetwork(n int) *Network {
	net := &Network{drop: make(map[[2]types.SessionId]bool)}
	net.endpoints = make([]*Endpoint, n)
	for i := range net.endpoints {
		net.endpoints[i] = &Endpoint{net: net, self: types.SessionId(i + 1)}
	}
	return net
}

// Endpoints returns every member of the fabric, in session-id order.
func (n *Network) Endpoints() []*Endpoint { return n.endpoints }

// Sever blocks delivery from a to b in one direction, modelling spec.md
// §8's "one slow/broken link" scenario. Call again with the same pair to
// leave it severed; there is no un-sever because no test needs one yet.
func (n *Network) Sever(a, b types.SessionId) {
	n.mtx.Lock()
	defer n.mtx.Unlock()
	n.drop[[2]types.SessionId{a, b}] = true
}

// Endpoint implements adapter.Transport for one simulated node.
type Endpoint struct {
	net     *Network
	self    types.SessionId
	receive func(ses types.SessionId, msgType uint32, payload []byte)
}

// Self returns this endpoint's own session id, as every peer addresses it.
func (e *Endpoint) Self() types.SessionId { return e.self }

// OnReceive registers the callback driven by inbound sends -- normally
// adapter.Adapter.Receive bound to this endpoint's own adapter.
func (e *Endpoint) OnReceive(fn func(ses types.SessionId, msgType uint32, payload []byte)) {
	e.receive = fn
}

// SendTo implements adapter.Transport, delivering synchronously to the
// peer at session id ses (1-indexed into the network's endpoint list).
func (e *Endpoint) SendTo(ses types.SessionId, msgType uint32, payload []byte) error {
	e.net.mtx.Lock()
	dropped := e.net.drop[[2]types.SessionId{e.self, ses}]
	e.net.mtx.Unlock()
	if dropped {
		return nil
	}
	idx := int(ses) - 1
	if idx < 0 || idx >= len(e.net.endpoints) {
		return nil
	}
	peer := e.net.endpoints[idx]
	if peer.receive != nil {
		peer.receive(e.self, msgType, payload)
	}
	return nil
}

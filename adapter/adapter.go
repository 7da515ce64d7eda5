// Package adapter implements spec.md §4.5: the glue between the opaque
// host/transport world and the gadget's typed messages. Outbound envelopes
// are encoded with tendermint's own JSON codec, the same tmjson.Marshal the
// teacher's consensus reactor uses to put types.Proposal/types.Vote on the
// wire -- the gadget's messages get the same treatment rather than a
// bespoke binary codec.
package adapter

import (
	"fmt"
	"time"

	"github.com/tendermint/tendermint/libs/log"

	"github.com/mixbytes/randpa/queue"
	"github.com/mixbytes/randpa/tree"
	"github.com/mixbytes/randpa/types"
)

// SyncAge is how stale a block's timestamp must be, relative to wall clock,
// for the adapter to mark it as arriving during catch-up rather than live
// production (spec.md §4.5, §6 sync_age_s=2).
const SyncAge = 2 * time.Second

// BlockInfo is one fork-DB entry, surfaced by Host both at bootstrap and
// on every accepted_block event (spec.md §4.5, §6 "fetch_block_state_by_id").
type BlockInfo struct {
	BlockId      types.BlockId
	PrevBlockId  types.BlockId
	CreatorKey   types.PublicKey
	ActiveBPKeys types.BPKeySet
	Timestamp    time.Time
}

// Host is the external block-producer/chain-state collaborator the gadget
// consumes but never implements (spec.md §1, §6 "Host interface").
type Host interface {
	// ForkDBBlocks returns every block after lib up to the current head, in
	// ascending height order, for bootstrap seeding (spec.md §4.5
	// "Bootstrap").
	ForkDBBlocks(lib types.BlockId) ([]BlockInfo, error)
	// LastIrreversibleBlockId reports the host's own fork-DB root, the
	// gadget's starting LIB.
	LastIrreversibleBlockId() types.BlockId
	// BFTFinalize notifies the host that a block gathered a finality proof
	// (spec.md §6 "operations in: bft_finalize(id)").
	BFTFinalize(id types.BlockId)
}

// Transport is the opaque peer-to-peer session the gadget sends typed
// messages over (spec.md §1, §6). msgType is 100+tag (spec.md §6 "Message
// type IDs").
type Transport interface {
	SendTo(ses types.SessionId, msgType uint32, data []byte) error
}

// Adapter is the single point where host and transport callbacks enter the
// gadget's MessageQueue, and implements engine.Sender/engine.Finalizer for
// the outbound direction.
type Adapter struct {
	logger    log.Logger
	host      Host
	transport Transport
	queue     queue.Queue
}

func New(host Host, transport Transport, q queue.Queue, logger log.Logger) *Adapter {
	return &Adapter{logger: logger, host: host, transport: transport, queue: q}
}

// Bootstrap seeds t by walking the host's fork DB from its last
// irreversible block to head (spec.md §4.5 "Bootstrap"), in ascending
// order so each insert finds its parent already present.
func (a *Adapter) Bootstrap(t *tree.Tree) error {
	lib := a.host.LastIrreversibleBlockId()
	blocks, err := a.host.ForkDBBlocks(lib)
	if err != nil {
		return fmt.Errorf("adapter: bootstrap: %w", err)
	}
	for _, b := range blocks {
		if _, err := t.Insert(
			types.Chain{BaseBlock: b.PrevBlockId, Blocks: []types.BlockId{b.BlockId}},
			b.CreatorKey,
			b.ActiveBPKeys,
		); err != nil {
			a.logger.Error("randpa bootstrap could not insert fork-db block", "id", b.BlockId, "err", err)
		}
	}
	return nil
}

// Send implements engine.Sender: encode msg's payload and hand it to the
// transport (spec.md §4.5 "Outbound").
func (a *Adapter) Send(msg types.NetMessage) {
	payload, err := EncodeEnvelope(msg)
	if err != nil {
		a.logger.Error("randpa cannot encode outbound message", "tag", msg.Tag, "err", err)
		return
	}
	if err := a.transport.SendTo(msg.SessionId, msg.Tag.NetType(), payload); err != nil {
		a.logger.Error("randpa cannot send message", "session", msg.SessionId, "tag", msg.Tag, "err", err)
	}
}

// Finalize implements engine.Finalizer: post bft_finalize back to the host
// (spec.md §4.5 "Finalization output"). This hops off the gadget's own
// worker goroutine deliberately -- the gadget must never call host chain
// APIs from its own worker -- and is fire-and-forget: if the host has
// already shut down, BFTFinalize is expected to no-op rather than block.
func (a *Adapter) Finalize(id types.BlockId) {
	go a.host.BFTFinalize(id)
}

// Receive implements the inbound half of spec.md §4.5: decode payload per
// msgType's tag, stamp it with the current time and session id, and push
// it into the queue.
func (a *Adapter) Receive(ses types.SessionId, msgType uint32, payload []byte) {
	if msgType < types.NetMessageTypeBase {
		a.logger.Error("randpa received message below type base", "msg_type", msgType)
		return
	}
	tag := types.MessageTag(msgType - types.NetMessageTypeBase)

	msg, err := DecodeEnvelope(tag, payload)
	if err != nil {
		a.logger.Error("randpa cannot decode inbound message", "session", ses, "tag", tag, "err", err)
		return
	}
	msg.SessionId = ses
	msg.ReceiveTime = time.Now()
	a.queue.PushNet(msg)
}

// AcceptedBlock implements the host accepted_block event (spec.md §4.5,
// §4.3): compute sync from the block's timestamp relative to wall clock
// and forward as an Event.
func (a *Adapter) AcceptedBlock(b BlockInfo) {
	a.queue.PushEvent(types.Event{AcceptedBlock: &types.AcceptedBlockEvent{
		BlockId:      b.BlockId,
		PrevBlockId:  b.PrevBlockId,
		CreatorKey:   b.CreatorKey,
		ActiveBPKeys: b.ActiveBPKeys,
		Sync:         time.Since(b.Timestamp) > SyncAge,
	}})
}

// IrreversibleBlock implements the host irreversible_block event.
func (a *Adapter) IrreversibleBlock(id types.BlockId) {
	a.queue.PushEvent(types.Event{Irreversible: &types.IrreversibleEvent{BlockId: id}})
}

// NewPeer implements the transport's new_peer event.
func (a *Adapter) NewPeer(ses types.SessionId) {
	a.queue.PushEvent(types.Event{NewPeer: &types.NewPeerEvent{SessionId: ses}})
}

package node

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/tendermint/tendermint/p2p"

	"github.com/mixbytes/randpa/types"
)

// RandpaChannel is the single p2p channel the gadget's messages travel on.
// Unlike the teacher's consensus reactor, which dedicates one channel per
// message kind (ProposalChannel, VoteChannel, ...), the gadget's wire
// envelopes are already self-describing via MessageTag, so one channel
// carries all five, framed with a 4-byte message-type header (spec.md §6
// "Message type IDs") ahead of the tmjson payload.
const RandpaChannel = byte(0x40)

const maxMsgSize = 1 << 20

// Reactor bridges the tendermint p2p.Switch to the gadget's adapter: it
// is the concrete adapter.Transport, and it feeds every inbound byte
// string back into adapter.Receive (spec.md §4.5 "Transport").
//
// Grounded on the teacher's consensus/reactor.go: same p2p.BaseReactor
// embedding, same peer cmap, same Receive-dispatch shape, but RANDPA's
// single channel and typed SessionIds replace the teacher's
// per-message-kind channels and p2p.ID-keyed maps.
type Reactor struct {
	p2p.BaseReactor

	mtx       sync.Mutex
	peers     map[types.SessionId]p2p.Peer
	sessionOf map[p2p.ID]types.SessionId
	nextSes   types.SessionId

	onReceive func(ses types.SessionId, msgType uint32, payload []byte)
	onNewPeer func(ses types.SessionId)
}

// NewReactor builds a Reactor. onReceive and onNewPeer are normally
// adapter.Adapter.Receive and adapter.Adapter.NewPeer; they are passed as
// plain funcs rather than an adapter.Adapter so this package does not need
// to import adapter at all -- it only needs the two callbacks.
func NewReactor(
	onReceive func(ses types.SessionId, msgType uint32, payload []byte),
	onNewPeer func(ses types.SessionId),
) *Reactor {
	r := &Reactor{
		peers:     make(map[types.SessionId]p2p.Peer),
		sessionOf: make(map[p2p.ID]types.SessionId),
		onReceive: onReceive,
		onNewPeer: onNewPeer,
	}
	r.BaseReactor = *p2p.NewBaseReactor("Randpa", r)
	return r
}

func (r *Reactor) GetChannels() []*p2p.ChannelDescriptor {
	return []*p2p.ChannelDescriptor{
		{
			ID:                  RandpaChannel,
			Priority:            10,
			SendQueueCapacity:   100,
			RecvMessageCapacity: maxMsgSize,
			RecvBufferCapacity:  maxMsgSize,
		},
	}
}

func (r *Reactor) InitPeer(peer p2p.Peer) p2p.Peer { return peer }

func (r *Reactor) AddPeer(peer p2p.Peer) {
	ses := r.registerPeer(peer)
	r.onNewPeer(ses)
}

func (r *Reactor) RemovePeer(peer p2p.Peer, reason interface{}) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	if ses, ok := r.sessionOf[peer.ID()]; ok {
		delete(r.peers, ses)
		delete(r.sessionOf, peer.ID())
	}
}

func (r *Reactor) registerPeer(peer p2p.Peer) types.SessionId {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	if ses, ok := r.sessionOf[peer.ID()]; ok {
		return ses
	}
	r.nextSes++
	ses := r.nextSes
	r.peers[ses] = peer
	r.sessionOf[peer.ID()] = ses
	return ses
}

func (r *Reactor) Receive(chID byte, src p2p.Peer, msgBytes []byte) {
	if chID != RandpaChannel {
		r.Logger.Error("randpa reactor received on unknown channel", "chID", chID)
		return
	}
	if len(msgBytes) < 4 {
		r.Logger.Error("randpa reactor received undersized frame", "len", len(msgBytes))
		return
	}
	msgType := binary.BigEndian.Uint32(msgBytes[:4])
	payload := msgBytes[4:]

	ses := r.registerPeer(src)
	r.onReceive(ses, msgType, payload)
}

// SendTo implements adapter.Transport: frame payload with its 4-byte
// message type and push it down the peer's send queue.
func (r *Reactor) SendTo(ses types.SessionId, msgType uint32, payload []byte) error {
	r.mtx.Lock()
	peer, ok := r.peers[ses]
	r.mtx.Unlock()
	if !ok {
		return fmt.Errorf("randpa reactor: no peer for session %d", ses)
	}

	frame := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(frame[:4], msgType)
	copy(frame[4:], payload)

	if !peer.Send(RandpaChannel, frame) {
		return fmt.Errorf("randpa reactor: send to session %d dropped", ses)
	}
	return nil
}

// Broadcast sends payload to every connected peer directly through the
// switch. The gadget itself never calls this -- it addresses each peer by
// its own session id via adapter.Adapter.Send, so de-duplication stays in
// engine.bcast -- but it's kept for manual/debug tooling built on this
// reactor, e.g. a status query fanned out to all peers at once.
func (r *Reactor) Broadcast(msgType uint32, payload []byte) {
	frame := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(frame[:4], msgType)
	copy(frame[4:], payload)
	r.Switch.Broadcast(RandpaChannel, frame)
}

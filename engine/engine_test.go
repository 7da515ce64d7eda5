package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tendermint/tendermint/libs/log"

	"github.com/mixbytes/randpa/queue"
	"github.com/mixbytes/randpa/tree"
	"github.com/mixbytes/randpa/types"
)

type fakeSender struct {
	mtx  sync.Mutex
	sent []types.NetMessage
}

func (s *fakeSender) Send(m types.NetMessage) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.sent = append(s.sent, m)
}

type fakeFinalizer struct {
	mtx       sync.Mutex
	finalized []types.BlockId
}

func (f *fakeFinalizer) Finalize(id types.BlockId) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	f.finalized = append(f.finalized, id)
}

func (f *fakeFinalizer) ids() []types.BlockId {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	out := make([]types.BlockId, len(f.finalized))
	copy(out, f.finalized)
	return out
}

func blockId(b byte) types.BlockId {
	var tail [28]byte
	tail[27] = b
	return types.NewBlockId(uint32(b), tail)
}

type bpSet struct {
	privs []types.PrivateKey
	pubs  []types.PublicKey
	keys  types.BPKeySet
}

func makeBPSet(t *testing.T, n int) bpSet {
	t.Helper()
	s := bpSet{}
	for i := 0; i < n; i++ {
		priv, err := types.GeneratePrivateKey()
		require.NoError(t, err)
		s.privs = append(s.privs, priv)
		s.pubs = append(s.pubs, priv.PublicKey())
	}
	s.keys = types.NewBPKeySet(s.pubs...)
	return s
}

func signPrevote(t *testing.T, priv types.PrivateKey, roundNum uint32, base types.BlockId, blocks []types.BlockId) types.PrevoteEnvelope {
	t.Helper()
	env, err := types.NewSignedEnvelope(types.PrevoteData{RoundNum: roundNum, BaseBlock: base, Blocks: blocks}, priv)
	require.NoError(t, err)
	return env
}

func signPrecommit(t *testing.T, priv types.PrivateKey, roundNum uint32, id types.BlockId) types.PrecommitEnvelope {
	t.Helper()
	env, err := types.NewSignedEnvelope(types.PrecommitData{RoundNum: roundNum, BlockId: id}, priv)
	require.NoError(t, err)
	return env
}

// TestEngineRunsRoundToFinalization drives a full round end to end through
// Process, the way the queue's worker would: accepted_block opens the
// round, two peer prevotes cross the prevote quorum, the prevote-width
// boundary ends the prevote phase, and two peer precommits cross the
// precommit quorum -- at which point the engine must call Finalize exactly
// once with the round's best block (spec.md §4.3, §8 "symmetric N-node
// quorum").
func TestEngineRunsRoundToFinalization(t *testing.T) {
	root := blockId(0)
	bps := makeBPSet(t, 4)
	tr := tree.New(root)

	sender := &fakeSender{}
	finalizer := &fakeFinalizer{}
	e := New(tr, sender, finalizer, log.NewNopLogger(), WithPrivateKey(bps.privs[0]))

	e.Process(queue.Message{Event: &types.Event{AcceptedBlock: &types.AcceptedBlockEvent{
		BlockId: blockId(1), PrevBlockId: root, CreatorKey: bps.pubs[0], ActiveBPKeys: bps.keys,
	}}})
	require.NotNil(t, e.curRound)
	require.Equal(t, uint32(0), e.curRound.Num())

	pv1 := signPrevote(t, bps.privs[1], 0, root, []types.BlockId{blockId(1)})
	e.Process(queue.Message{Net: &types.NetMessage{Tag: types.TagPrevote, Prevote: &pv1}})
	pv2 := signPrevote(t, bps.privs[2], 0, root, []types.BlockId{blockId(1)})
	e.Process(queue.Message{Net: &types.NetMessage{Tag: types.TagPrevote, Prevote: &pv2}})

	e.Process(queue.Message{Event: &types.Event{AcceptedBlock: &types.AcceptedBlockEvent{
		BlockId: blockId(2), PrevBlockId: blockId(1), CreatorKey: bps.pubs[0], ActiveBPKeys: bps.keys,
	}}})

	pc1 := signPrecommit(t, bps.privs[1], 0, blockId(1))
	e.Process(queue.Message{Net: &types.NetMessage{Tag: types.TagPrecommit, Precommit: &pc1}})
	require.Empty(t, finalizer.ids())

	pc2 := signPrecommit(t, bps.privs[2], 0, blockId(1))
	e.Process(queue.Message{Net: &types.NetMessage{Tag: types.TagPrecommit, Precommit: &pc2}})

	require.Equal(t, []types.BlockId{blockId(1)}, finalizer.ids())
	require.Equal(t, root, e.LIB(), "lib only advances on an explicit irreversible_block event, not on Finalize")

	e.Process(queue.Message{Event: &types.Event{Irreversible: &types.IrreversibleEvent{BlockId: blockId(1)}}})
	require.Equal(t, blockId(1), e.LIB())
}

func TestEngineNewPeerTriggersHandshake(t *testing.T) {
	tr := tree.New(blockId(0))
	sender := &fakeSender{}
	e := New(tr, sender, &fakeFinalizer{}, log.NewNopLogger())

	e.Process(queue.Message{Event: &types.Event{NewPeer: &types.NewPeerEvent{SessionId: 7}}})

	require.Len(t, sender.sent, 1)
	require.Equal(t, types.TagHandshake, sender.sent[0].Tag)
	require.Equal(t, types.SessionId(7), sender.sent[0].SessionId)
}

func TestEngineHandshakeRegistersPeerAndReplies(t *testing.T) {
	tr := tree.New(blockId(0))
	sender := &fakeSender{}
	e := New(tr, sender, &fakeFinalizer{}, log.NewNopLogger())

	priv, err := types.GeneratePrivateKey()
	require.NoError(t, err)
	hs, err := types.NewSignedEnvelope(types.HandshakeData{Lib: blockId(0)}, priv)
	require.NoError(t, err)

	e.Process(queue.Message{Net: &types.NetMessage{SessionId: 3, Tag: types.TagHandshake, Handshake: &hs}})

	require.Len(t, sender.sent, 1)
	require.Equal(t, types.TagHandshakeAns, sender.sent[0].Tag)
	require.Equal(t, types.SessionId(3), sender.sent[0].SessionId)
	require.Equal(t, types.SessionId(3), e.peers[priv.PublicKey().Comparable()])
}

func TestEngineWithoutPrivateKeyGeneratesEphemeralIdentity(t *testing.T) {
	tr := tree.New(blockId(0))
	e := New(tr, &fakeSender{}, &fakeFinalizer{}, log.NewNopLogger())
	require.False(t, e.privateKey.IsZero())
}

func TestEngineSnapshotReflectsRoundState(t *testing.T) {
	root := blockId(0)
	bps := makeBPSet(t, 4)
	tr := tree.New(root)
	e := New(tr, &fakeSender{}, &fakeFinalizer{}, log.NewNopLogger(), WithPrivateKey(bps.privs[0]))

	initial := e.Snapshot()
	require.Equal(t, root, initial.Lib)

	e.Process(queue.Message{Event: &types.Event{AcceptedBlock: &types.AcceptedBlockEvent{
		BlockId: blockId(1), PrevBlockId: root, CreatorKey: bps.pubs[0], ActiveBPKeys: bps.keys,
	}}})

	snap := e.Snapshot()
	require.Equal(t, uint32(0), snap.RoundNum)
}

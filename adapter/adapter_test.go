package adapter

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tendermint/tendermint/libs/log"

	"github.com/mixbytes/randpa/tree"
	"github.com/mixbytes/randpa/types"
)

type fakeQueue struct {
	mtx    sync.Mutex
	nets   []types.NetMessage
	events []types.Event
}

func (q *fakeQueue) PushNet(msg types.NetMessage) {
	q.mtx.Lock()
	defer q.mtx.Unlock()
	q.nets = append(q.nets, msg)
}

func (q *fakeQueue) PushEvent(ev types.Event) {
	q.mtx.Lock()
	defer q.mtx.Unlock()
	q.events = append(q.events, ev)
}

func (q *fakeQueue) Start() {}
func (q *fakeQueue) Stop()  {}

type fakeHost struct {
	lib        types.BlockId
	forkBlocks []BlockInfo
	forkErr    error

	mtx        sync.Mutex
	finalized  []types.BlockId
	finalizeWG *sync.WaitGroup
}

func (h *fakeHost) ForkDBBlocks(types.BlockId) ([]BlockInfo, error) { return h.forkBlocks, h.forkErr }
func (h *fakeHost) LastIrreversibleBlockId() types.BlockId          { return h.lib }
func (h *fakeHost) BFTFinalize(id types.BlockId) {
	h.mtx.Lock()
	h.finalized = append(h.finalized, id)
	h.mtx.Unlock()
	if h.finalizeWG != nil {
		h.finalizeWG.Done()
	}
}

type fakeTransport struct {
	mtx  sync.Mutex
	sent []struct {
		ses     types.SessionId
		msgType uint32
		data    []byte
	}
}

func (t *fakeTransport) SendTo(ses types.SessionId, msgType uint32, data []byte) error {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	t.sent = append(t.sent, struct {
		ses     types.SessionId
		msgType uint32
		data    []byte
	}{ses, msgType, data})
	return nil
}

func TestAdapterBootstrapSeedsTree(t *testing.T) {
	root := sampleBlockId(0)
	child := sampleBlockId(1)

	host := &fakeHost{
		lib: root,
		forkBlocks: []BlockInfo{
			{BlockId: child, PrevBlockId: root, ActiveBPKeys: types.BPKeySet{}},
		},
	}
	a := New(host, &fakeTransport{}, &fakeQueue{}, log.NewNopLogger())

	tr := tree.New(root)
	require.NoError(t, a.Bootstrap(tr))
	require.NotNil(t, tr.Find(child))
}

func TestAdapterSendEncodesAndDispatches(t *testing.T) {
	transport := &fakeTransport{}
	a := New(&fakeHost{}, transport, &fakeQueue{}, log.NewNopLogger())

	priv, err := types.GeneratePrivateKey()
	require.NoError(t, err)
	env, err := types.NewSignedEnvelope[types.HandshakeData](types.HandshakeData{Lib: sampleBlockId(5)}, priv)
	require.NoError(t, err)

	a.Send(types.NewHandshakeMessage(3, env))

	require.Len(t, transport.sent, 1)
	require.Equal(t, types.SessionId(3), transport.sent[0].ses)
	require.Equal(t, types.TagHandshake.NetType(), transport.sent[0].msgType)
}

func TestAdapterReceivePushesDecodedMessage(t *testing.T) {
	q := &fakeQueue{}
	a := New(&fakeHost{}, &fakeTransport{}, q, log.NewNopLogger())

	priv, err := types.GeneratePrivateKey()
	require.NoError(t, err)
	env, err := types.NewSignedEnvelope[types.PrecommitData](types.PrecommitData{RoundNum: 1, BlockId: sampleBlockId(9)}, priv)
	require.NoError(t, err)
	payload, err := EncodeEnvelope(types.NewPrecommitMessage(0, env))
	require.NoError(t, err)

	a.Receive(types.SessionId(11), types.TagPrecommit.NetType(), payload)

	require.Len(t, q.nets, 1)
	require.Equal(t, types.SessionId(11), q.nets[0].SessionId)
	require.Equal(t, types.TagPrecommit, q.nets[0].Tag)
}

func TestAdapterAcceptedBlockComputesSync(t *testing.T) {
	q := &fakeQueue{}
	a := New(&fakeHost{}, &fakeTransport{}, q, log.NewNopLogger())

	a.AcceptedBlock(BlockInfo{BlockId: sampleBlockId(1), Timestamp: time.Now()})
	a.AcceptedBlock(BlockInfo{BlockId: sampleBlockId(2), Timestamp: time.Now().Add(-10 * time.Second)})

	require.Len(t, q.events, 2)
	require.False(t, q.events[0].AcceptedBlock.Sync)
	require.True(t, q.events[1].AcceptedBlock.Sync)
}

func TestAdapterFinalizeCallsHostAsync(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(1)
	host := &fakeHost{finalizeWG: &wg}
	a := New(host, &fakeTransport{}, &fakeQueue{}, log.NewNopLogger())

	a.Finalize(sampleBlockId(3))
	wg.Wait()

	require.Len(t, host.finalized, 1)
}

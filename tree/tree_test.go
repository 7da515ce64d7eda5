package tree

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mixbytes/randpa/types"
)

func blockId(b byte) types.BlockId {
	var id types.BlockId
	id[31] = b
	return id
}

func genKey(t *testing.T) types.PublicKey {
	t.Helper()
	priv, err := types.GeneratePrivateKey()
	require.NoError(t, err)
	return priv.PublicKey()
}

func TestInsertExtendsFromBase(t *testing.T) {
	root := blockId(0)
	tr := New(root)
	creator := genKey(t)
	bpKeys := types.NewBPKeySet(creator)

	chain := types.Chain{BaseBlock: root, Blocks: []types.BlockId{blockId(1), blockId(2)}}
	n, err := tr.Insert(chain, creator, bpKeys)
	require.NoError(t, err)
	require.Equal(t, blockId(2), n.BlockId)
	require.NotNil(t, tr.Find(blockId(1)))
	require.Equal(t, n, tr.LastInsertedBlock(creator))
}

func TestInsertAnchorsOnKnownDescendant(t *testing.T) {
	root := blockId(0)
	tr := New(root)
	creator := genKey(t)
	bpKeys := types.NewBPKeySet(creator)

	_, err := tr.Insert(types.Chain{BaseBlock: root, Blocks: []types.BlockId{blockId(1)}}, creator, bpKeys)
	require.NoError(t, err)

	// base unknown to the tree, but blocks[0] already present -- anchors there.
	n, err := tr.Insert(types.Chain{BaseBlock: blockId(99), Blocks: []types.BlockId{blockId(1), blockId(2)}}, creator, bpKeys)
	require.NoError(t, err)
	require.Equal(t, blockId(2), n.BlockId)
}

func TestInsertUnknownChainErrors(t *testing.T) {
	tr := New(blockId(0))
	_, err := tr.Insert(types.Chain{BaseBlock: blockId(7), Blocks: []types.BlockId{blockId(8)}}, types.PublicKey{}, types.BPKeySet{})
	require.ErrorIs(t, err, ErrNodeNotFound)
}

func TestAddConfirmationsStopsAtUnknownBlock(t *testing.T) {
	root := blockId(0)
	tr := New(root)
	creator := genKey(t)
	bpKeys := types.NewBPKeySet(creator)
	_, err := tr.Insert(types.Chain{BaseBlock: root, Blocks: []types.BlockId{blockId(1)}}, creator, bpKeys)
	require.NoError(t, err)

	voter := genKey(t)
	env := types.PrevoteEnvelope{}
	maxNode, err := tr.AddConfirmations(types.Chain{BaseBlock: root, Blocks: []types.BlockId{blockId(1), blockId(2)}}, voter, env)
	require.NoError(t, err)
	require.Equal(t, blockId(1), maxNode.BlockId)
	require.True(t, tr.Find(blockId(1)).HasConfirmation(voter))
	require.Nil(t, tr.Find(blockId(2)))
}

func TestAddConfirmationsTracksMaxConfirmationNode(t *testing.T) {
	root := blockId(0)
	tr := New(root)
	creator := genKey(t)
	bpKeys := types.NewBPKeySet(creator)
	_, err := tr.Insert(types.Chain{BaseBlock: root, Blocks: []types.BlockId{blockId(1), blockId(2)}}, creator, bpKeys)
	require.NoError(t, err)

	v1, v2 := genKey(t), genKey(t)
	_, err = tr.AddConfirmations(types.Chain{BaseBlock: root, Blocks: []types.BlockId{blockId(1), blockId(2)}}, v1, types.PrevoteEnvelope{})
	require.NoError(t, err)
	maxNode, err := tr.AddConfirmations(types.Chain{BaseBlock: root, Blocks: []types.BlockId{blockId(1)}}, v2, types.PrevoteEnvelope{})
	require.NoError(t, err)

	require.Equal(t, blockId(1), maxNode.BlockId)
	require.Equal(t, 2, tr.Find(blockId(1)).ConfirmationCount())
	require.Equal(t, 1, tr.Find(blockId(2)).ConfirmationCount())
}

func TestRemoveConfirmationsClearsWholeTree(t *testing.T) {
	root := blockId(0)
	tr := New(root)
	creator := genKey(t)
	_, err := tr.Insert(types.Chain{BaseBlock: root, Blocks: []types.BlockId{blockId(1)}}, creator, types.NewBPKeySet(creator))
	require.NoError(t, err)
	voter := genKey(t)
	_, err = tr.AddConfirmations(types.Chain{BaseBlock: root, Blocks: []types.BlockId{blockId(1)}}, voter, types.PrevoteEnvelope{})
	require.NoError(t, err)
	require.Equal(t, 1, tr.Find(blockId(1)).ConfirmationCount())

	tr.RemoveConfirmations()
	require.Equal(t, 0, tr.Find(blockId(1)).ConfirmationCount())
}

func TestSetRootPrunesStaleLastInserted(t *testing.T) {
	root := blockId(0)
	tr := New(root)
	a, b := genKey(t), genKey(t)
	nodeA, err := tr.Insert(types.Chain{BaseBlock: root, Blocks: []types.BlockId{blockId(1)}}, a, types.NewBPKeySet(a, b))
	require.NoError(t, err)
	_, err = tr.Insert(types.Chain{BaseBlock: root, Blocks: []types.BlockId{blockId(2)}}, b, types.NewBPKeySet(a, b))
	require.NoError(t, err)

	tr.SetRoot(nodeA)
	require.Equal(t, nodeA, tr.Root())
	require.NotNil(t, tr.LastInsertedBlock(a))
	require.Nil(t, tr.LastInsertedBlock(b))
	require.Nil(t, tr.Find(blockId(2)))
}

func TestGetBranchWalksFromHeadToRoot(t *testing.T) {
	root := blockId(0)
	tr := New(root)
	creator := genKey(t)
	_, err := tr.Insert(types.Chain{BaseBlock: root, Blocks: []types.BlockId{blockId(1), blockId(2)}}, creator, types.NewBPKeySet(creator))
	require.NoError(t, err)

	chain, err := tr.GetBranch(blockId(2))
	require.NoError(t, err)
	require.Equal(t, root, chain.BaseBlock)
	require.Equal(t, []types.BlockId{blockId(1), blockId(2)}, chain.Blocks)
}

func TestGetBranchUnknownHeadErrors(t *testing.T) {
	tr := New(blockId(0))
	_, err := tr.GetBranch(blockId(9))
	require.ErrorIs(t, err, ErrNodeNotFound)
}

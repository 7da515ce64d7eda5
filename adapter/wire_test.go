package adapter

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mixbytes/randpa/types"
)

func sampleBlockId(height byte) types.BlockId {
	var id types.BlockId
	id[0] = height
	id[31] = 0xAB
	return id
}

func TestEncodeDecodeEnvelopeRoundTrip(t *testing.T) {
	priv, err := types.GeneratePrivateKey()
	require.NoError(t, err)

	env, err := types.NewSignedEnvelope[types.PrevoteData](types.PrevoteData{
		RoundNum:  7,
		BaseBlock: sampleBlockId(1),
		Blocks:    []types.BlockId{sampleBlockId(2), sampleBlockId(3)},
	}, priv)
	require.NoError(t, err)

	msg := types.NewPrevoteMessage(42, env)

	payload, err := EncodeEnvelope(msg)
	require.NoError(t, err)

	decoded, err := DecodeEnvelope(types.TagPrevote, payload)
	require.NoError(t, err)
	require.Equal(t, env.Data, decoded.Prevote.Data)
	require.Equal(t, env.Signature, decoded.Prevote.Signature)

	signer, err := decoded.Prevote.PublicKey()
	require.NoError(t, err)
	require.True(t, signer.Equal(priv.PublicKey()))
}

func TestDecodeEnvelopeRejectsUnknownTag(t *testing.T) {
	_, err := DecodeEnvelope(types.MessageTag(99), nil)
	require.Error(t, err)
}

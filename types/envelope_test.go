package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSignedEnvelopeRecoversSigner(t *testing.T) {
	priv, err := GeneratePrivateKey()
	require.NoError(t, err)

	env, err := NewSignedEnvelope(PrecommitData{RoundNum: 1, BlockId: id(1)}, priv)
	require.NoError(t, err)

	recovered, err := env.PublicKey()
	require.NoError(t, err)
	require.True(t, recovered.Equal(priv.PublicKey()))
	require.True(t, env.ValidFor(priv.PublicKey()))

	other, err := GeneratePrivateKey()
	require.NoError(t, err)
	require.False(t, env.ValidFor(other.PublicKey()))
}

func TestSignedEnvelopeDigestMatchesCanonicalBytes(t *testing.T) {
	priv, err := GeneratePrivateKey()
	require.NoError(t, err)
	data := PrecommitData{RoundNum: 2, BlockId: id(3)}

	env, err := NewSignedEnvelope(data, priv)
	require.NoError(t, err)
	require.Equal(t, DigestBytes(data.CanonicalBytes()), env.Digest())
}

func TestSignedEnvelopePublicKeyIsCached(t *testing.T) {
	priv, err := GeneratePrivateKey()
	require.NoError(t, err)
	env, err := NewSignedEnvelope(PrecommitData{RoundNum: 1, BlockId: id(1)}, priv)
	require.NoError(t, err)

	first, err := env.PublicKey()
	require.NoError(t, err)
	env.Signature[0] ^= 0xFF // corrupt the signature after the first recovery
	second, err := env.PublicKey()
	require.NoError(t, err)
	require.True(t, first.Equal(second))
}

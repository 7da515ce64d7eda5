package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWIFRoundTrip(t *testing.T) {
	priv, err := GeneratePrivateKey()
	require.NoError(t, err)

	wif, err := EncodeWIF(priv)
	require.NoError(t, err)

	decoded, err := DecodeWIF(wif)
	require.NoError(t, err)
	require.True(t, decoded.PublicKey().Equal(priv.PublicKey()))
}

func TestEncodeWIFRejectsZeroKey(t *testing.T) {
	_, err := EncodeWIF(PrivateKey{})
	require.Error(t, err)
}

func TestDecodeWIFRejectsBadChecksum(t *testing.T) {
	priv, err := GeneratePrivateKey()
	require.NoError(t, err)
	wif, err := EncodeWIF(priv)
	require.NoError(t, err)

	// Changing the last base58 digit keeps the decoded length and version
	// byte but alters the trailing checksum bytes.
	last := byte('2')
	if wif[len(wif)-1] == last {
		last = '3'
	}
	tampered := wif[:len(wif)-1] + string(last)
	_, err = DecodeWIF(tampered)
	require.Error(t, err)
}

func TestDecodeWIFRejectsMalformedInput(t *testing.T) {
	_, err := DecodeWIF("not-base58-check")
	require.Error(t, err)
}

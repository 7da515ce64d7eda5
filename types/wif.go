package types

import (
	"crypto/sha256"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/mr-tron/base58"
)

// wifVersion is the version byte prefixed to the private key before
// base58check encoding. The gadget's only recognized configuration option,
// randpa-private-key, is documented as "WIF-encoded" (spec.md §6); WIF is
// the standard secp256k1 wallet encoding the EOSIO original was built
// against.
const wifVersion = 0x80

// EncodeWIF renders priv as a base58check string: version || key || checksum.
func EncodeWIF(priv PrivateKey) (string, error) {
	if priv.IsZero() {
		return "", fmt.Errorf("encode WIF: nil private key")
	}
	payload := make([]byte, 0, 1+32)
	payload = append(payload, wifVersion)
	payload = append(payload, priv.key.Serialize()...)
	return base58.Encode(appendChecksum(payload)), nil
}

// DecodeWIF parses a base58check-encoded WIF private key. Returns an error
// on malformed input, the boundary at which spec.md §7 requires the host to
// be told a fatal configuration error ("Malformed private key at startup").
func DecodeWIF(s string) (PrivateKey, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return PrivateKey{}, fmt.Errorf("decode WIF: %w", err)
	}
	if len(raw) != 1+32+4 {
		return PrivateKey{}, fmt.Errorf("decode WIF: unexpected length %d", len(raw))
	}
	payload, checksum := raw[:len(raw)-4], raw[len(raw)-4:]
	if !validChecksum(payload, checksum) {
		return PrivateKey{}, fmt.Errorf("decode WIF: bad checksum")
	}
	if payload[0] != wifVersion {
		return PrivateKey{}, fmt.Errorf("decode WIF: unexpected version byte 0x%02x", payload[0])
	}
	key := payload[1:]
	priv, _ := btcec.PrivKeyFromBytes(key)
	return PrivateKey{key: priv}, nil
}

func appendChecksum(payload []byte) []byte {
	sum := doubleSHA256(payload)
	out := make([]byte, len(payload)+4)
	copy(out, payload)
	copy(out[len(payload):], sum[:4])
	return out
}

func validChecksum(payload, checksum []byte) bool {
	sum := doubleSHA256(payload)
	for i := 0; i < 4; i++ {
		if sum[i] != checksum[i] {
			return false
		}
	}
	return true
}

func doubleSHA256(b []byte) [32]byte {
	first := sha256.Sum256(b)
	return sha256.Sum256(first[:])
}

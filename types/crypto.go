// Package types' crypto primitives mirror spec.md §3: opaque PublicKey,
// PrivateKey, Signature and Digest types with digest/sign/recover. The
// gadget's wire format never transmits the signer's public key -- it is
// always recovered from the signature, EOSIO-style, using secp256k1
// recoverable (compact) ECDSA signatures.
package types

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
)

// Digest is a SHA-256 digest of a canonically-serialized payload.
type Digest [32]byte

func (d Digest) Bytes() []byte { return d[:] }

func (d Digest) String() string { return hex.EncodeToString(d[:]) }

// DigestBytes hashes an arbitrary byte payload. Canonical serialization of
// structured payloads happens in the caller (messages.go); this keeps the
// hash itself dumb and reusable.
func DigestBytes(b []byte) Digest {
	return Digest(sha256.Sum256(b))
}

// PublicKey wraps a compressed secp256k1 public key.
type PublicKey struct {
	key *btcec.PublicKey
}

func (k PublicKey) IsZero() bool { return k.key == nil }

// Bytes returns the compressed SEC1 encoding, the canonical wire form.
func (k PublicKey) Bytes() []byte {
	if k.key == nil {
		return nil
	}
	return k.key.SerializeCompressed()
}

func (k PublicKey) String() string { return hex.EncodeToString(k.Bytes()) }

// Equal compares two public keys by their compressed encoding. PublicKey
// itself holds a pointer, so callers that need a map key should use
// k.String() or k.Comparable().
func (k PublicKey) Equal(other PublicKey) bool {
	if k.key == nil || other.key == nil {
		return k.key == other.key
	}
	return k.key.IsEqual(other.key)
}

// Comparable returns a fixed-size value usable as a map key, unlike
// PublicKey itself (which wraps a pointer).
func (k PublicKey) Comparable() (out [33]byte) {
	copy(out[:], k.Bytes())
	return out
}

func PublicKeyFromBytes(b []byte) (PublicKey, error) {
	pk, err := btcec.ParsePubKey(b)
	if err != nil {
		return PublicKey{}, fmt.Errorf("parse public key: %w", err)
	}
	return PublicKey{key: pk}, nil
}

// PrivateKey wraps a secp256k1 private key.
type PrivateKey struct {
	key *btcec.PrivateKey
}

func (k PrivateKey) IsZero() bool { return k.key == nil }

func (k PrivateKey) PublicKey() PublicKey {
	if k.key == nil {
		return PublicKey{}
	}
	return PublicKey{key: k.key.PubKey()}
}

// Sign produces a recoverable (compact) ECDSA signature over digest, per
// spec.md §3: sign(PrivateKey, Digest) -> Signature.
func (k PrivateKey) Sign(digest Digest) (Signature, error) {
	if k.key == nil {
		return Signature{}, fmt.Errorf("sign: nil private key")
	}
	sig, err := ecdsa.SignCompact(k.key, digest[:], true)
	if err != nil {
		return Signature{}, err
	}
	var out Signature
	copy(out[:], sig)
	return out, nil
}

func GeneratePrivateKey() (PrivateKey, error) {
	key, err := btcec.NewPrivateKey()
	if err != nil {
		return PrivateKey{}, err
	}
	return PrivateKey{key: key}, nil
}

// Signature is a 65-byte recoverable compact secp256k1 signature
// (1 recovery byte + 32-byte r + 32-byte s).
type Signature [65]byte

func (s Signature) Bytes() []byte { return s[:] }

func (s Signature) IsZero() bool { return s == Signature{} }

func (s Signature) String() string { return hex.EncodeToString(s[:]) }

func SignatureFromBytes(b []byte) (Signature, error) {
	var s Signature
	if len(b) != len(s) {
		return s, fmt.Errorf("signature: expected %d bytes, got %d", len(s), len(b))
	}
	copy(s[:], b)
	return s, nil
}

// MarshalJSON renders a Signature as a hex string, mirroring BlockId so the
// adapter's tmjson-encoded wire messages stay human-legible.
func (s Signature) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Signature) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return err
	}
	decoded, err := hex.DecodeString(str)
	if err != nil {
		return fmt.Errorf("signature: %w", err)
	}
	parsed, err := SignatureFromBytes(decoded)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Recover implements spec.md §3's `recover(Signature, Digest) -> PublicKey`:
// ECDSA public key recovery, the sender's key is derived from the signature
// alone.
func Recover(sig Signature, digest Digest) (PublicKey, error) {
	pub, _, err := ecdsa.RecoverCompact(sig[:], digest[:])
	if err != nil {
		return PublicKey{}, fmt.Errorf("recover: %w", err)
	}
	return PublicKey{key: pub}, nil
}

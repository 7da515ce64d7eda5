package types

import "fmt"

// Encodable is implemented by every wire payload type; CanonicalBytes must
// be deterministic so that digest(data) is reproducible across processes.
type Encodable interface {
	CanonicalBytes() []byte
}

// SignedEnvelope pairs a payload with a signature, per spec.md §3. The
// signer's public key is never carried on the wire -- it is recovered
// lazily from (signature, digest(data)) and cached, since the same prevote
// is often checked twice (once during round ingestion, once during proof
// verification) and elliptic-curve recovery is not free (spec.md §9,
// "Signature-derived identity").
type SignedEnvelope[T Encodable] struct {
	Data      T
	Signature Signature

	cachedKey   PublicKey
	cachedKeyOK bool
}

// NewSignedEnvelope signs data with priv and returns the envelope.
func NewSignedEnvelope[T Encodable](data T, priv PrivateKey) (SignedEnvelope[T], error) {
	sig, err := priv.Sign(DigestBytes(data.CanonicalBytes()))
	if err != nil {
		return SignedEnvelope[T]{}, fmt.Errorf("sign envelope: %w", err)
	}
	return SignedEnvelope[T]{Data: data, Signature: sig}, nil
}

// Digest returns digest(data), recomputed on every call since T is usually
// small and the result does not merit caching relative to the recovery it
// guards.
func (e SignedEnvelope[T]) Digest() Digest {
	return DigestBytes(e.Data.CanonicalBytes())
}

// PublicKey recovers (and caches) the signer's public key. Per spec.md §3,
// a payload is "valid for" a key k iff this recovery yields k -- callers
// compare the result against the candidate key themselves.
func (e *SignedEnvelope[T]) PublicKey() (PublicKey, error) {
	if e.cachedKeyOK {
		return e.cachedKey, nil
	}
	key, err := Recover(e.Signature, e.Digest())
	if err != nil {
		return PublicKey{}, err
	}
	e.cachedKey = key
	e.cachedKeyOK = true
	return key, nil
}

// ValidFor reports whether the envelope's signature recovers to key.
func (e *SignedEnvelope[T]) ValidFor(key PublicKey) bool {
	recovered, err := e.PublicKey()
	if err != nil {
		return false
	}
	return recovered.Equal(key)
}

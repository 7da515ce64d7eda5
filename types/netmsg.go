package types

import "time"

// NetMessage is the gadget's single outer wrapping type for everything
// that crosses the network boundary: a tagged union over the closed set of
// wire payloads, reproducing the original's static_variant dispatch as one
// Go struct switched on Tag (spec.md §9 "Sum types for message and event
// variants"). Exactly one of the pointer fields matching Tag is non-nil.
type NetMessage struct {
	SessionId   SessionId
	Tag         MessageTag
	ReceiveTime time.Time

	Handshake    *HandshakeEnvelope
	HandshakeAns *HandshakeAnsEnvelope
	Prevote      *PrevoteEnvelope
	Precommit    *PrecommitEnvelope
	Proof        *ProofEnvelope
}

// Digest returns the digest of the wrapped signed envelope (payload bytes
// followed by the signature), used for broadcast de-duplication (spec.md
// §4.3 "Broadcast de-duplication"). The signature is included so that
// identical votes from different signers stay distinct.
func (m NetMessage) Digest() Digest {
	switch m.Tag {
	case TagHandshake:
		return signedDigest(m.Handshake.Data, m.Handshake.Signature)
	case TagHandshakeAns:
		return signedDigest(m.HandshakeAns.Data, m.HandshakeAns.Signature)
	case TagPrevote:
		return signedDigest(m.Prevote.Data, m.Prevote.Signature)
	case TagPrecommit:
		return signedDigest(m.Precommit.Data, m.Precommit.Signature)
	case TagProof:
		return signedDigest(m.Proof.Data, m.Proof.Signature)
	default:
		return Digest{}
	}
}

func signedDigest(data Encodable, sig Signature) Digest {
	return DigestBytes(append(data.CanonicalBytes(), sig[:]...))
}

func NewHandshakeMessage(ses SessionId, env HandshakeEnvelope) NetMessage {
	return NetMessage{SessionId: ses, Tag: TagHandshake, Handshake: &env}
}

func NewHandshakeAnsMessage(ses SessionId, env HandshakeAnsEnvelope) NetMessage {
	return NetMessage{SessionId: ses, Tag: TagHandshakeAns, HandshakeAns: &env}
}

func NewPrevoteMessage(ses SessionId, env PrevoteEnvelope) NetMessage {
	return NetMessage{SessionId: ses, Tag: TagPrevote, Prevote: &env}
}

func NewPrecommitMessage(ses SessionId, env PrecommitEnvelope) NetMessage {
	return NetMessage{SessionId: ses, Tag: TagPrecommit, Precommit: &env}
}

func NewProofMessage(ses SessionId, env ProofEnvelope) NetMessage {
	return NetMessage{SessionId: ses, Tag: TagProof, Proof: &env}
}

// Event is the gadget's tagged union over internal host-originated events
// (spec.md §9). Exactly one field is non-nil.
type Event struct {
	AcceptedBlock *AcceptedBlockEvent
	Irreversible  *IrreversibleEvent
	NewPeer       *NewPeerEvent
}

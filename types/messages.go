package types

import "encoding/binary"

// MessageTag identifies a wire payload's variant, per spec.md §6. The
// transport-level message type id is 100+tag.
type MessageTag uint8

const (
	TagHandshake    MessageTag = 0
	TagHandshakeAns MessageTag = 1
	TagPrevote      MessageTag = 2
	TagPrecommit    MessageTag = 3
	TagProof        MessageTag = 4
)

// NetMessageTypeBase is added to a MessageTag to get the transport-level
// message type id, chosen to avoid collision with other overlays sharing
// the same transport (spec.md §6).
const NetMessageTypeBase = 100

func (t MessageTag) NetType() uint32 { return NetMessageTypeBase + uint32(t) }

func (t MessageTag) String() string {
	switch t {
	case TagHandshake:
		return "Handshake"
	case TagHandshakeAns:
		return "HandshakeAns"
	case TagPrevote:
		return "Prevote"
	case TagPrecommit:
		return "Precommit"
	case TagProof:
		return "Proof"
	default:
		return "Unknown"
	}
}

// HandshakeData is the payload of a Handshake message (spec.md §6).
type HandshakeData struct {
	Lib BlockId
}

func (d HandshakeData) CanonicalBytes() []byte { return append([]byte{byte(TagHandshake)}, d.Lib[:]...) }

// HandshakeAnsData is the payload of a HandshakeAns message (spec.md §6).
type HandshakeAnsData struct {
	Lib BlockId
}

func (d HandshakeAnsData) CanonicalBytes() []byte {
	return append([]byte{byte(TagHandshakeAns)}, d.Lib[:]...)
}

// PrevoteData is the payload of a Prevote message (spec.md §6).
type PrevoteData struct {
	RoundNum  uint32
	BaseBlock BlockId
	Blocks    []BlockId
}

func (d PrevoteData) CanonicalBytes() []byte {
	buf := make([]byte, 0, 5+32+len(d.Blocks)*32)
	buf = append(buf, byte(TagPrevote))
	buf = binary.BigEndian.AppendUint32(buf, d.RoundNum)
	buf = append(buf, d.BaseBlock[:]...)
	for _, b := range d.Blocks {
		buf = append(buf, b[:]...)
	}
	return buf
}

// Chain returns this prevote's claimed chain, for tree lookups.
func (d PrevoteData) Chain() Chain {
	return Chain{BaseBlock: d.BaseBlock, Blocks: d.Blocks}
}

// PrecommitData is the payload of a Precommit message (spec.md §6).
type PrecommitData struct {
	RoundNum uint32
	BlockId  BlockId
}

func (d PrecommitData) CanonicalBytes() []byte {
	buf := make([]byte, 0, 5+32)
	buf = append(buf, byte(TagPrecommit))
	buf = binary.BigEndian.AppendUint32(buf, d.RoundNum)
	buf = append(buf, d.BlockId[:]...)
	return buf
}

type PrevoteEnvelope = SignedEnvelope[PrevoteData]
type PrecommitEnvelope = SignedEnvelope[PrecommitData]

// ProofData is the payload of a Proof message: a bundle of prevotes and
// precommits sufficient to convince any verifier a block has been
// finalized (spec.md §3 "Round", §6, GLOSSARY "Proof").
type ProofData struct {
	RoundNum   uint32
	BestBlock  BlockId
	Prevotes   []PrevoteEnvelope
	Precommits []PrecommitEnvelope
}

func (d ProofData) CanonicalBytes() []byte {
	buf := make([]byte, 0, 64)
	buf = append(buf, byte(TagProof))
	buf = binary.BigEndian.AppendUint32(buf, d.RoundNum)
	buf = append(buf, d.BestBlock[:]...)
	for _, pv := range d.Prevotes {
		buf = append(buf, pv.Data.CanonicalBytes()...)
		buf = append(buf, pv.Signature[:]...)
	}
	for _, pc := range d.Precommits {
		buf = append(buf, pc.Data.CanonicalBytes()...)
		buf = append(buf, pc.Signature[:]...)
	}
	return buf
}

type HandshakeEnvelope = SignedEnvelope[HandshakeData]
type HandshakeAnsEnvelope = SignedEnvelope[HandshakeAnsData]
type ProofEnvelope = SignedEnvelope[ProofData]

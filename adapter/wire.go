package adapter

import (
	"fmt"

	tmjson "github.com/tendermint/tendermint/libs/json"

	"github.com/mixbytes/randpa/types"
)

// EncodeEnvelope renders the envelope matching msg.Tag as JSON, the same
// tmjson codec the teacher's consensus reactor uses for its own
// broadcast-over-p2p payloads (spec.md §4.5 "Outbound").
func EncodeEnvelope(msg types.NetMessage) ([]byte, error) {
	switch msg.Tag {
	case types.TagHandshake:
		return tmjson.Marshal(msg.Handshake)
	case types.TagHandshakeAns:
		return tmjson.Marshal(msg.HandshakeAns)
	case types.TagPrevote:
		return tmjson.Marshal(msg.Prevote)
	case types.TagPrecommit:
		return tmjson.Marshal(msg.Precommit)
	case types.TagProof:
		return tmjson.Marshal(msg.Proof)
	default:
		return nil, fmt.Errorf("adapter: unknown outbound tag %v", msg.Tag)
	}
}

// DecodeEnvelope parses payload as the envelope matching tag and wraps it
// in a NetMessage (SessionId and ReceiveTime left to the caller).
func DecodeEnvelope(tag types.MessageTag, payload []byte) (types.NetMessage, error) {
	switch tag {
	case types.TagHandshake:
		var env types.HandshakeEnvelope
		if err := tmjson.Unmarshal(payload, &env); err != nil {
			return types.NetMessage{}, err
		}
		return types.NewHandshakeMessage(0, env), nil

	case types.TagHandshakeAns:
		var env types.HandshakeAnsEnvelope
		if err := tmjson.Unmarshal(payload, &env); err != nil {
			return types.NetMessage{}, err
		}
		return types.NewHandshakeAnsMessage(0, env), nil

	case types.TagPrevote:
		var env types.PrevoteEnvelope
		if err := tmjson.Unmarshal(payload, &env); err != nil {
			return types.NetMessage{}, err
		}
		return types.NewPrevoteMessage(0, env), nil

	case types.TagPrecommit:
		var env types.PrecommitEnvelope
		if err := tmjson.Unmarshal(payload, &env); err != nil {
			return types.NetMessage{}, err
		}
		return types.NewPrecommitMessage(0, env), nil

	case types.TagProof:
		var env types.ProofEnvelope
		if err := tmjson.Unmarshal(payload, &env); err != nil {
			return types.NetMessage{}, err
		}
		return types.NewProofMessage(0, env), nil

	default:
		return types.NetMessage{}, fmt.Errorf("adapter: unknown inbound tag %v", tag)
	}
}

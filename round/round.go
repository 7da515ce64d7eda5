// Package round implements the single-round state machine described in
// spec.md §4.2: ingest prevotes/precommits, detect 2/3+ thresholds, produce
// a finality proof, report done/fail.
//
// Grounded in eosio/randpa_plugin/round.hpp (randpa_round), translated to
// idiomatic Go: explicit error returns, a State type instead of a raw enum
// class, and constructor-injected broadcast callbacks exactly as the
// original wires prevote_bcaster/precommit_bcaster/done_cb.
package round

import (
	"encoding/json"
	"fmt"

	"github.com/mixbytes/randpa/tree"
	"github.com/mixbytes/randpa/types"
)

// State is one of the permitted round states (spec.md §3 "Round").
type State int

const (
	Init State = iota
	Prevote
	ReadyToPrecommit
	Precommit
	Done
	Fail
)

func (s State) String() string {
	switch s {
	case Init:
		return "init"
	case Prevote:
		return "prevote"
	case ReadyToPrecommit:
		return "ready_to_precommit"
	case Precommit:
		return "precommit"
	case Done:
		return "done"
	case Fail:
		return "fail"
	default:
		return "unknown"
	}
}

// MarshalJSON renders a State by name, for the CLI debug endpoint's
// engine.Snapshot dumps.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// PrevoteBroadcaster is invoked whenever the round emits its own prevote.
type PrevoteBroadcaster func(types.PrevoteEnvelope)

// PrecommitBroadcaster is invoked whenever the round emits its own precommit.
type PrecommitBroadcaster func(types.PrecommitEnvelope)

// DoneCallback is invoked once the round reaches Done.
type DoneCallback func()

// Round is one finality attempt spanning round_width blocks (spec.md §3).
type Round struct {
	num        uint32
	primary    types.PublicKey
	tree       *tree.Tree
	privateKey types.PrivateKey
	isActiveBP bool

	state    State
	bestNode *tree.Node
	proof    types.ProofData

	prevotedKeys    map[[33]byte]struct{}
	precommitedKeys map[[33]byte]struct{}

	prevoteBcaster   PrevoteBroadcaster
	precommitBcaster PrecommitBroadcaster
	doneCb           DoneCallback
}

// New constructs a Round and, if isActiveBP, immediately transitions
// Init -> Prevote, emitting a prevote for the longest branch built by
// primary (spec.md §4.2 "Construction"). Non-BP nodes enter Prevote
// passively and never emit votes.
func New(
	num uint32,
	primary types.PublicKey,
	t *tree.Tree,
	privateKey types.PrivateKey,
	isActiveBP bool,
	prevoteBcaster PrevoteBroadcaster,
	precommitBcaster PrecommitBroadcaster,
	doneCb DoneCallback,
) *Round {
	r := &Round{
		num:              num,
		primary:          primary,
		tree:             t,
		privateKey:       privateKey,
		isActiveBP:       isActiveBP,
		state:            Init,
		prevotedKeys:     make(map[[33]byte]struct{}),
		precommitedKeys:  make(map[[33]byte]struct{}),
		prevoteBcaster:   prevoteBcaster,
		precommitBcaster: precommitBcaster,
		doneCb:           doneCb,
	}

	r.state = Prevote
	if isActiveBP {
		r.sendPrevote()
	}

	return r
}

func (r *Round) Num() uint32   { return r.num }
func (r *Round) State() State  { return r.state }
func (r *Round) BestNode() *tree.Node { return r.bestNode }

// GetProof returns the accumulated proof; only meaningful once State()==Done.
func (r *Round) GetProof() (types.ProofData, error) {
	if r.state != Done {
		return types.ProofData{}, fmt.Errorf("round: proof requested in state %s, want done", r.state)
	}
	return r.proof, nil
}

func (r *Round) sendPrevote() {
	last := r.tree.LastInsertedBlock(r.primary)
	if last == nil {
		return
	}
	chain, err := r.tree.GetBranch(last.BlockId)
	if err != nil {
		return
	}

	data := types.PrevoteData{RoundNum: r.num, BaseBlock: chain.BaseBlock, Blocks: chain.Blocks}
	env, err := types.NewSignedEnvelope[types.PrevoteData](data, r.privateKey)
	if err != nil {
		return
	}

	r.addPrevote(env)
	if r.prevoteBcaster != nil {
		r.prevoteBcaster(env)
	}
}

// OnPrevote ingests a received prevote, per spec.md §4.2 "on(prevote)".
func (r *Round) OnPrevote(env types.PrevoteEnvelope) {
	if r.state != Prevote && r.state != ReadyToPrecommit {
		return
	}
	if !r.validatePrevote(&env) {
		return
	}
	r.addPrevote(env)
}

func (r *Round) validatePrevote(env *types.PrevoteEnvelope) bool {
	if env.Data.RoundNum != r.num {
		return false
	}

	signer, err := env.PublicKey()
	if err != nil {
		return false
	}
	if _, ok := r.prevotedKeys[signer.Comparable()]; ok {
		return false
	}

	target, ok := env.Data.Chain().Deepest(func(id types.BlockId) bool { return r.tree.Find(id) != nil })
	if !ok {
		return false
	}
	node := r.tree.Find(target)
	if node == nil {
		return false
	}
	if !node.ActiveBPKeys.Has(signer) {
		return false
	}
	return true
}

// addPrevote records env in the tree, tracks the signer, and -- if the
// returned max-confirmation node newly crosses the 2/3+ threshold while
// still in Prevote -- sets BestNode and transitions to ReadyToPrecommit.
// Once ReadyToPrecommit, BestNode is never replaced, but later prevotes
// still accumulate on the tree and feed the next round's starting quorum
// (spec.md §4.2 "Tie-breaking and edge cases").
func (r *Round) addPrevote(env types.PrevoteEnvelope) {
	signer, err := env.PublicKey()
	if err != nil {
		return
	}

	maxNode, err := r.tree.AddConfirmations(env.Data.Chain(), signer, env)
	if err != nil {
		return
	}

	r.prevotedKeys[signer.Comparable()] = struct{}{}

	if r.state == Prevote && maxNode.ActiveBPKeys.Threshold(maxNode.ConfirmationCount()) {
		r.bestNode = maxNode
		r.state = ReadyToPrecommit
	}
}

// OnPrecommit ingests a received precommit, per spec.md §4.2 "on(precommit)".
func (r *Round) OnPrecommit(env types.PrecommitEnvelope) {
	if r.state != ReadyToPrecommit && r.state != Precommit {
		return
	}
	if !r.validatePrecommit(&env) {
		return
	}
	r.addPrecommit(env)
}

func (r *Round) validatePrecommit(env *types.PrecommitEnvelope) bool {
	if env.Data.RoundNum != r.num {
		return false
	}
	signer, err := env.PublicKey()
	if err != nil {
		return false
	}
	if _, ok := r.precommitedKeys[signer.Comparable()]; ok {
		return false
	}
	if r.bestNode == nil || env.Data.BlockId != r.bestNode.BlockId {
		return false
	}
	if !r.bestNode.HasConfirmation(signer) {
		return false
	}
	return true
}

func (r *Round) addPrecommit(env types.PrecommitEnvelope) {
	signer, err := env.PublicKey()
	if err != nil {
		return
	}
	r.precommitedKeys[signer.Comparable()] = struct{}{}
	r.proof.Precommits = append(r.proof.Precommits, env)

	if r.bestNode.ActiveBPKeys.Threshold(len(r.proof.Precommits)) {
		r.state = Done
		if r.doneCb != nil {
			r.doneCb()
		}
	}
}

// EndPrevote signals that the prevote sub-slot has ended (spec.md §4.2
// "end_prevote"). If the round has not reached ReadyToPrecommit, it fails.
// Otherwise it finalizes the prevote set into proof.Prevotes and emits a
// precommit for BestNode, also feeding it back into the round locally.
func (r *Round) EndPrevote() {
	if r.state != ReadyToPrecommit {
		r.state = Fail
		return
	}

	r.proof.RoundNum = r.num
	r.proof.BestBlock = r.bestNode.BlockId
	r.proof.Prevotes = make([]types.PrevoteEnvelope, 0, r.bestNode.ConfirmationCount())
	for _, env := range r.bestNode.Confirmations {
		r.proof.Prevotes = append(r.proof.Prevotes, env)
	}

	r.state = Precommit

	data := types.PrecommitData{RoundNum: r.num, BlockId: r.bestNode.BlockId}
	env, err := types.NewSignedEnvelope[types.PrecommitData](data, r.privateKey)
	if err != nil {
		return
	}

	r.OnPrecommit(env)
	if r.precommitBcaster != nil {
		r.precommitBcaster(env)
	}
}

// AdoptProof force-completes the round from an externally verified proof
// covering the same round_num (spec.md §4.3 "proof": "on success, if a
// matching round exists, mark it Done"). It does not invoke DoneCallback --
// the caller that verified the proof has already finalized and broadcast
// it, so there is nothing left for the callback to do.
func (r *Round) AdoptProof(proof types.ProofData) {
	if r.num != proof.RoundNum || r.state == Done {
		return
	}
	r.proof = proof
	r.state = Done
}

// Finish signals the round's terminal boundary (spec.md §4.2 "finish").
// Returns true iff the round reached Done; otherwise it transitions to
// Fail and returns false.
func (r *Round) Finish() bool {
	if r.state != Done {
		r.state = Fail
		return false
	}
	return true
}

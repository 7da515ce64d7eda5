// Package engine implements the Core engine of spec.md §4.3: it owns the
// PrefixTree and the current Round, dispatches inbound events and network
// messages, broadcasts votes and proofs, and advances the last-irreversible
// block (LIB).
//
// Grounded in eosio/randpa_plugin/randpa.hpp's randpa class: the same
// single-threaded ownership model, the same broadcast-dedup table, the same
// round lifecycle. Dispatch is a type switch over queue.Message instead of
// a static_variant visit (spec.md §9 "Sum types for message and event
// variants": one enum, one match, no virtual calls -- Go's type switch is
// that match).
package engine

import (
	"sync/atomic"

	jsoniter "github.com/json-iterator/go"
	"github.com/tendermint/tendermint/libs/log"

	"github.com/mixbytes/randpa/metrics"
	"github.com/mixbytes/randpa/queue"
	"github.com/mixbytes/randpa/round"
	"github.com/mixbytes/randpa/tree"
	"github.com/mixbytes/randpa/types"
)

// RoundWidth and PrevoteWidth are the gadget's block-counted timing
// constants (spec.md §4.3, §6): round_width=2, prevote_width=1. Whether a
// block arrived during catch-up (spec.md §6 sync_age_s=2) is decided by the
// adapter, which is closer to wall-clock time, and carried in
// AcceptedBlockEvent.Sync.
const (
	RoundWidth   = 2
	PrevoteWidth = 1
)

// Sender delivers an outbound NetMessage to the host transport, via the
// adapter (spec.md §4.5).
type Sender interface {
	Send(types.NetMessage)
}

// Finalizer forwards a finalization decision to the host (spec.md §4.5
// "Finalization output").
type Finalizer interface {
	Finalize(types.BlockId)
}

// Engine is the Core engine of spec.md §4.3. It is not safe for concurrent
// use: spec.md §5 assigns it to a single worker, fed exclusively through a
// queue.Queue.
type Engine struct {
	logger  log.Logger
	metrics *metrics.Metrics

	tree       *tree.Tree
	curRound   *round.Round
	lib        types.BlockId
	privateKey types.PrivateKey

	peers         map[[33]byte]types.SessionId
	knownMessages map[[33]byte]map[types.Digest]struct{}

	sender    Sender
	finalizer Finalizer

	snapshot atomic.Value // holds Snapshot, for the debug endpoint only
}

// Snapshot is a point-in-time, read-only view of the engine's state, safe
// to read from any goroutine (unlike the engine itself, which is owned by
// its single worker). It exists only for the CLI's debug endpoint (spec.md
// §4.3 is otherwise silent on introspection; this is ambient tooling, not
// a gadget behavior).
type Snapshot struct {
	Lib        types.BlockId `json:"lib"`
	RoundNum   uint32        `json:"round_num"`
	RoundState round.State   `json:"round_state"`
	PeerCount  int           `json:"peer_count"`
}

// JSONString renders the snapshot for the CLI's debug endpoint, matching
// the teacher's own consensusMetric/memMetric JSONString convention.
func (s Snapshot) JSONString() string {
	str, _ := jsoniter.MarshalToString(s)
	return str
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithPrivateKey installs the node's voting identity. randpa-private-key
// is optional in config (spec.md §6): a node configured without one still
// needs a wire identity for handshakes and message envelopes, so New
// generates an ephemeral key when this option is absent. Since that
// ephemeral key was never registered as a producer key, it never satisfies
// an ActiveBPKeys membership test, so the node naturally never votes --
// no separate observer flag is needed.
func WithPrivateKey(key types.PrivateKey) Option {
	return func(e *Engine) { e.privateKey = key }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// New constructs an Engine rooted at tree, whose current root is taken as
// the initial LIB (spec.md §4.5 "Bootstrap").
func New(t *tree.Tree, sender Sender, finalizer Finalizer, logger log.Logger, opts ...Option) *Engine {
	e := &Engine{
		logger:        logger,
		metrics:       metrics.Nop(),
		tree:          t,
		lib:           t.Root().BlockId,
		peers:         make(map[[33]byte]types.SessionId),
		knownMessages: make(map[[33]byte]map[types.Digest]struct{}),
		sender:        sender,
		finalizer:     finalizer,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.privateKey.IsZero() {
		priv, err := types.GeneratePrivateKey()
		if err != nil {
			panic(err)
		}
		e.privateKey = priv
	}
	e.metrics.LibHeight.Set(float64(e.lib.Height()))
	e.publishSnapshot()
	return e
}

func (e *Engine) LIB() types.BlockId { return e.lib }

// Snapshot returns the engine's last published Snapshot. Safe to call
// from any goroutine.
func (e *Engine) Snapshot() Snapshot {
	v, _ := e.snapshot.Load().(Snapshot)
	return v
}

func (e *Engine) publishSnapshot() {
	s := Snapshot{Lib: e.lib, PeerCount: len(e.peers)}
	if e.curRound != nil {
		s.RoundNum = e.curRound.Num()
		s.RoundState = e.curRound.State()
	}
	e.snapshot.Store(s)
}

func (e *Engine) selfKey() [33]byte {
	return e.privateKey.PublicKey().Comparable()
}

// Process implements queue.Dispatcher: it is the single entry point the
// MessageQueue's worker calls for every dequeued message (spec.md §4.3
// "Message-driven behaviors").
func (e *Engine) Process(msg queue.Message) {
	switch {
	case msg.Net != nil:
		e.processNet(*msg.Net)
	case msg.Event != nil:
		e.processEvent(*msg.Event)
	}
	e.publishSnapshot()
}

func (e *Engine) processNet(msg types.NetMessage) {
	switch msg.Tag {
	case types.TagHandshake:
		e.onHandshake(msg.SessionId, *msg.Handshake)
	case types.TagHandshakeAns:
		e.onHandshakeAns(msg.SessionId, *msg.HandshakeAns)
	case types.TagPrevote:
		e.onPrevote(*msg.Prevote)
	case types.TagPrecommit:
		e.onPrecommit(*msg.Precommit)
	case types.TagProof:
		e.onProof(msg.SessionId, *msg.Proof)
	default:
		e.logger.Error("randpa received unknown message", "tag", msg.Tag)
	}
}

func (e *Engine) processEvent(ev types.Event) {
	switch {
	case ev.AcceptedBlock != nil:
		e.onAcceptedBlock(*ev.AcceptedBlock)
	case ev.Irreversible != nil:
		e.onIrreversible(*ev.Irreversible)
	case ev.NewPeer != nil:
		e.onNewPeer(*ev.NewPeer)
	}
}

// onAcceptedBlock implements spec.md §4.3's accepted_block handler.
func (e *Engine) onAcceptedBlock(ev types.AcceptedBlockEvent) {
	_, err := e.tree.Insert(
		types.Chain{BaseBlock: ev.PrevBlockId, Blocks: []types.BlockId{ev.BlockId}},
		ev.CreatorKey,
		ev.ActiveBPKeys,
	)
	if err != nil {
		e.logger.Error("randpa cannot insert block into tree", "base", ev.PrevBlockId, "block", ev.BlockId, "err", err)
		return
	}

	if ev.Sync {
		e.logger.Info("randpa omit block while syncing", "id", ev.BlockId)
		return
	}

	rn := roundNum(ev.BlockId)
	if e.shouldStartRound(ev.BlockId) {
		e.finishRound(e.curRound)
		e.clearRoundData()
		e.newRound(rn, ev.CreatorKey)
	}

	if e.shouldEndPrevote(ev.BlockId) {
		e.curRound.EndPrevote()
	}
}

func roundNum(id types.BlockId) uint32 {
	h := id.Height()
	if h < 1 {
		return 0
	}
	return (h - 1) / RoundWidth
}

func numInRound(id types.BlockId) uint32 {
	h := id.Height()
	if h < 1 {
		return 0
	}
	return (h - 1) % RoundWidth
}

func (e *Engine) shouldStartRound(id types.BlockId) bool {
	if id.Height() < 1 {
		return false
	}
	if e.curRound == nil {
		return true
	}
	return roundNum(id) > e.curRound.Num()
}

func (e *Engine) shouldEndPrevote(id types.BlockId) bool {
	if e.curRound == nil {
		return false
	}
	return roundNum(id) == e.curRound.Num() && numInRound(id) == PrevoteWidth
}

func (e *Engine) newRound(num uint32, primary types.PublicKey) {
	isActiveBP := false
	// The active BP set is authoritative at the block that opened the
	// round; look it up via the primary's most recent insertion rather than
	// trusting any globally cached schedule (spec.md §9 open question).
	if node := e.tree.LastInsertedBlock(primary); node != nil {
		isActiveBP = node.ActiveBPKeys.Has(e.privateKey.PublicKey())
	}

	e.metrics.RoundsStarted.Add(1)
	e.curRound = round.New(
		num,
		primary,
		e.tree,
		e.privateKey,
		isActiveBP,
		func(env types.PrevoteEnvelope) { e.bcast(types.NewPrevoteMessage(0, env)) },
		func(env types.PrecommitEnvelope) { e.bcast(types.NewPrecommitMessage(0, env)) },
		func() { e.finishRound(e.curRound) },
	)
}

func (e *Engine) clearRoundData() {
	e.knownMessages = make(map[[33]byte]map[types.Digest]struct{})
	e.tree.RemoveConfirmations()
}

// finishRound runs the round's terminal transition (spec.md §4.2 "finish",
// §4.3 "Round completion") and, on success, exports+broadcasts the proof.
// It is invoked both when Round.OnDone fires and when the engine is about
// to replace the round on a block boundary (spec.md §3 "Lifecycles").
func (e *Engine) finishRound(r *round.Round) {
	if r == nil {
		return
	}
	if !r.Finish() {
		e.logger.Info("randpa round failed", "num", r.Num())
		e.metrics.RoundsFailed.Add(1)
		return
	}

	proof, err := r.GetProof()
	if err != nil {
		e.logger.Error("randpa round done but proof unavailable", "err", err)
		return
	}
	e.metrics.RoundsFinalized.Add(1)
	e.logger.Info("randpa round reached supermajority", "num", proof.RoundNum, "best_block", proof.BestBlock)

	if e.lib.Height() < proof.BestBlock.Height() {
		e.finalizer.Finalize(proof.BestBlock)
		env, err := types.NewSignedEnvelope[types.ProofData](proof, e.privateKey)
		if err != nil {
			e.logger.Error("randpa cannot sign proof", "err", err)
			return
		}
		e.bcast(types.NewProofMessage(0, env))
	}
}

// onIrreversible implements spec.md §4.3's irreversible_block handler.
func (e *Engine) onIrreversible(ev types.IrreversibleEvent) {
	if ev.BlockId.Height() <= e.tree.Root().BlockId.Height() {
		e.logger.Info("randpa handled irreversible_block for old block", "id", ev.BlockId)
		return
	}
	e.updateLIB(ev.BlockId)
}

func (e *Engine) updateLIB(id types.BlockId) {
	node := e.tree.Find(id)
	if node != nil {
		e.tree.SetRoot(node)
	} else {
		// Out-of-order irreversible_block for a block the tree never saw;
		// synthesize a root-only node. In-flight confirmations and any
		// round in progress are lost, an accepted rare catch-up cost
		// (spec.md §9).
		e.tree = tree.New(id)
		e.curRound = nil
	}
	e.lib = id
	e.metrics.LibHeight.Set(float64(id.Height()))
}

// onNewPeer implements spec.md §4.3's new_peer handler.
func (e *Engine) onNewPeer(ev types.NewPeerEvent) {
	env, err := types.NewSignedEnvelope[types.HandshakeData](types.HandshakeData{Lib: e.lib}, e.privateKey)
	if err != nil {
		e.logger.Error("randpa cannot sign handshake", "err", err)
		return
	}
	e.send(types.NewHandshakeMessage(ev.SessionId, env))
}

func (e *Engine) onHandshake(ses types.SessionId, msg types.HandshakeEnvelope) {
	signer, err := msg.PublicKey()
	if err != nil {
		e.logger.Error("randpa handshake with unrecoverable signature", "err", err)
		return
	}
	e.peers[signer.Comparable()] = ses

	ans, err := types.NewSignedEnvelope[types.HandshakeAnsData](types.HandshakeAnsData{Lib: e.lib}, e.privateKey)
	if err != nil {
		e.logger.Error("randpa cannot sign handshake_ans", "err", err)
		return
	}
	e.send(types.NewHandshakeAnsMessage(ses, ans))
}

func (e *Engine) onHandshakeAns(ses types.SessionId, msg types.HandshakeAnsEnvelope) {
	signer, err := msg.PublicKey()
	if err != nil {
		e.logger.Error("randpa handshake_ans with unrecoverable signature", "err", err)
		return
	}
	e.peers[signer.Comparable()] = ses
}

// onPrevote and onPrecommit implement spec.md §4.3's shared round-message
// path: broadcast onward unconditionally, then gate ingestion into the
// current round on the digest already seen against the engine's own
// identity in KnownMessages -- the original's process_round_msg is
// explicitly broadcast-first, so a peer that connects after a vote was
// first seen still gets it rebroadcast on the next re-receipt. With no
// active round the vote is only rebroadcast and marked seen; it is not
// recorded on the tree, so it does not count toward a round opened later.
func (e *Engine) onPrevote(env types.PrevoteEnvelope) {
	msg := types.NewPrevoteMessage(0, env)
	digest := msg.Digest()
	e.bcast(msg)

	if e.hasSeen(e.selfKey(), digest) {
		return
	}
	e.markSeen(e.selfKey(), digest)

	if e.curRound != nil {
		e.curRound.OnPrevote(env)
	}
	e.metrics.PrevotesReceived.Add(1)
}

func (e *Engine) onPrecommit(env types.PrecommitEnvelope) {
	msg := types.NewPrecommitMessage(0, env)
	digest := msg.Digest()
	e.bcast(msg)

	if e.hasSeen(e.selfKey(), digest) {
		return
	}
	e.markSeen(e.selfKey(), digest)

	if e.curRound != nil {
		e.curRound.OnPrecommit(env)
	}
	e.metrics.PrecommitsReceived.Add(1)
}

func (e *Engine) onProof(ses types.SessionId, msg types.ProofEnvelope) {
	proof := msg.Data
	if e.lib.Height() >= proof.BestBlock.Height() {
		e.logger.Info("randpa skipping proof, lib is higher", "proof_block", proof.BestBlock, "lib", e.lib)
		return
	}

	if e.curRound != nil && e.curRound.Num() == proof.RoundNum && e.curRound.State() == round.Done {
		e.logger.Info("randpa skipping proof, round already done", "round", proof.RoundNum)
		return
	}

	if !e.validateProof(proof) {
		signer, _ := msg.PublicKey()
		e.logger.Info("randpa invalid proof received", "from", signer)
		e.metrics.ProofsRejected.Add(1)
		return
	}
	e.metrics.ProofsVerified.Add(1)
	e.logger.Info("randpa successfully validated proof", "id", proof.BestBlock, "from_session", ses)

	if e.curRound != nil {
		e.curRound.AdoptProof(proof)
	}
	e.finalizer.Finalize(proof.BestBlock)
	e.bcast(types.NewProofMessage(0, msg))
}

// validateProof implements spec.md §4.3's validate_proof / Proof
// verification rules.
func (e *Engine) validateProof(proof types.ProofData) bool {
	node := e.tree.Find(proof.BestBlock)
	if node == nil {
		e.logger.Info("randpa received proof for unknown block", "id", proof.BestBlock)
		return false
	}
	bp := node.ActiveBPKeys

	prevotedKeys := make(map[[33]byte]struct{}, len(proof.Prevotes))
	for i := range proof.Prevotes {
		pv := &proof.Prevotes[i]
		signer, err := pv.PublicKey()
		if err != nil {
			return false
		}
		if _, dup := prevotedKeys[signer.Comparable()]; dup {
			return false
		}
		if !validatePrevoteAgainst(pv.Data, proof.BestBlock, bp, signer) {
			return false
		}
		prevotedKeys[signer.Comparable()] = struct{}{}
	}

	precommittedKeys := make(map[[33]byte]struct{}, len(proof.Precommits))
	for i := range proof.Precommits {
		pc := &proof.Precommits[i]
		signer, err := pc.PublicKey()
		if err != nil {
			return false
		}
		if _, ok := prevotedKeys[signer.Comparable()]; !ok {
			return false
		}
		if pc.Data.BlockId != proof.BestBlock {
			return false
		}
		if !bp.Has(signer) {
			return false
		}
		precommittedKeys[signer.Comparable()] = struct{}{}
	}

	return bp.Threshold(len(precommittedKeys))
}

func validatePrevoteAgainst(data types.PrevoteData, bestBlock types.BlockId, bp types.BPKeySet, signer types.PublicKey) bool {
	if !data.Chain().Contains(bestBlock) {
		return false
	}
	return bp.Has(signer)
}

// bcast sends msg to every known peer not already known to have it,
// de-duplicating against KnownMessages[peer] (spec.md §4.3 "Broadcast
// de-duplication").
func (e *Engine) bcast(msg types.NetMessage) {
	digest := msg.Digest()
	for peerKey, ses := range e.peers {
		if e.hasSeen(peerKey, digest) {
			continue
		}
		// Record before sending: a synchronous transport can echo the
		// message back into this engine before send returns.
		e.markSeen(peerKey, digest)
		out := msg
		out.SessionId = ses
		e.send(out)
	}
}

func (e *Engine) hasSeen(peerKey [33]byte, digest types.Digest) bool {
	set, ok := e.knownMessages[peerKey]
	if !ok {
		return false
	}
	_, seen := set[digest]
	return seen
}

func (e *Engine) markSeen(peerKey [33]byte, digest types.Digest) {
	set, ok := e.knownMessages[peerKey]
	if !ok {
		set = make(map[types.Digest]struct{})
		e.knownMessages[peerKey] = set
	}
	set[digest] = struct{}{}
}

func (e *Engine) send(msg types.NetMessage) {
	if e.sender != nil {
		e.sender.Send(msg)
	}
}

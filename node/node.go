// Package node wires the gadget's p2p transport, adapter, engine, queue
// and signing identity into one runnable process (spec.md §1, §4, §5),
// adapted from the teacher's node/node.go -- same p2p.MultiplexTransport
// and p2p.Switch setup, same BaseService lifecycle, but the teacher's
// single hardwired *consensus.Reactor is replaced by the gadget's own
// Reactor, and the teacher's chain state is replaced by whatever
// adapter.Host the caller supplies.
package node

import (
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	cfg "github.com/tendermint/tendermint/config"
	"github.com/tendermint/tendermint/libs/log"
	"github.com/tendermint/tendermint/libs/service"
	"github.com/tendermint/tendermint/p2p"
	"github.com/tendermint/tendermint/p2p/conn"
	"github.com/tendermint/tendermint/version"

	rcfg "github.com/mixbytes/randpa/config"

	"github.com/mixbytes/randpa/adapter"
	"github.com/mixbytes/randpa/engine"
	"github.com/mixbytes/randpa/internal/hostsim"
	"github.com/mixbytes/randpa/privval"
	"github.com/mixbytes/randpa/queue"
	"github.com/mixbytes/randpa/tree"
	"github.com/mixbytes/randpa/types"
)

// Provider builds a Node against a particular host. Callers embedding the
// gadget into a real chain process supply their own adapter.Host and pass
// it to NewNode directly instead of using DefaultNewNode -- the same
// escape hatch the teacher's own Provider type documents.
type Provider func(*cfg.Config, *rcfg.RandpaConfig, log.Logger) (*Node, error)

type Node struct {
	service.BaseService

	config       *cfg.Config
	randpaConfig *rcfg.RandpaConfig

	transport *p2p.MultiplexTransport
	sw        *p2p.Switch
	nodeInfo  p2p.NodeInfo
	nodeKey   *p2p.NodeKey

	reactor *Reactor
	adapter *adapter.Adapter
	engine  *engine.Engine
	queue   queue.Queue
	pv      *privval.FilePV

	engineOpts []engine.Option
}

type Option func(*Node)

// WithEngineOptions threads engine.Option values (WithPrivateKey,
// WithMetrics) through to the engine construction inside NewNode.
func WithEngineOptions(opts ...engine.Option) Option {
	return func(n *Node) { n.engineOpts = opts }
}

// DefaultNewNode builds a Node backed by hostsim's single in-memory chain
// rather than any real block producer, since this module ships none --
// it exists so `randpa start` runs out of the box, not as a production
// default (see cmd/commands/start.go).
func DefaultNewNode(config *cfg.Config, randpaCfg *rcfg.RandpaConfig, logger log.Logger) (*Node, error) {
	nodeKey, err := p2p.LoadOrGenNodeKey(config.NodeKeyFile())
	if err != nil {
		return nil, err
	}
	chain := hostsim.NewChain(types.BPKeySet{})
	return NewNode(config, randpaCfg, nodeKey, chain, logger)
}

func createTransport(nodeInfo p2p.NodeInfo, nodeKey *p2p.NodeKey) *p2p.MultiplexTransport {
	mConnConfig := conn.DefaultMConnConfig()
	return p2p.NewMultiplexTransport(nodeInfo, *nodeKey, mConnConfig)
}

func createSwitch(
	config *cfg.Config,
	transport p2p.Transport,
	reactor *Reactor,
	nodeInfo p2p.NodeInfo,
	nodeKey *p2p.NodeKey,
	p2pLogger log.Logger,
) *p2p.Switch {
	sw := p2p.NewSwitch(config.P2P, transport)
	sw.SetLogger(p2pLogger)
	sw.AddReactor("RANDPA", reactor)
	sw.SetNodeInfo(nodeInfo)
	sw.SetNodeKey(nodeKey)

	p2pLogger.Info("P2P Node ID", "ID", nodeKey.ID(), "file", config.NodeKeyFile())
	return sw
}

func makeNodeInfo(config *cfg.Config, nodeKey *p2p.NodeKey) (p2p.NodeInfo, error) {
	nodeInfo := p2p.DefaultNodeInfo{
		ProtocolVersion: p2p.NewProtocolVersion(8, 11, 0),
		DefaultNodeID:   nodeKey.ID(),
		Network:         "randpa",
		Version:         version.TMCoreSemVer,
		Channels:        []byte{RandpaChannel},
		Moniker:         config.Moniker,
		Other: p2p.DefaultNodeInfoOther{
			TxIndex:    "off",
			RPCAddress: config.RPC.ListenAddress,
		},
	}

	lAddr := config.P2P.ExternalAddress
	if lAddr == "" {
		lAddr = config.P2P.ListenAddress
	}
	nodeInfo.ListenAddr = lAddr

	return nodeInfo, nodeInfo.Validate()
}

func NewNode(
	config *cfg.Config,
	randpaCfg *rcfg.RandpaConfig,
	nodeKey *p2p.NodeKey,
	host adapter.Host,
	logger log.Logger,
	options ...Option,
) (*Node, error) {
	n := &Node{config: config, randpaConfig: randpaCfg}
	for _, opt := range options {
		opt(n)
	}
	engineOpts := n.engineOpts

	pvKeyFile := randpaCfg.PrivateKeyFile
	if !filepath.IsAbs(pvKeyFile) {
		pvKeyFile = filepath.Join(config.RootDir, pvKeyFile)
	}
	pv := privval.LoadOrGenFilePV(pvKeyFile)
	engineOpts = append(engineOpts, engine.WithPrivateKey(pv.PrivateKey()))

	p2pLogger := logger.With("module", "p2p")

	nodeInfo, err := makeNodeInfo(config, nodeKey)
	if err != nil {
		return nil, err
	}
	transport := createTransport(nodeInfo, nodeKey)

	reactor := NewReactor(nil, nil)
	sw := createSwitch(config, transport, reactor, nodeInfo, nodeKey, p2pLogger)

	disp := &lazyDispatcher{}
	q := queue.NewThreaded(disp, logger)

	ad := adapter.New(host, reactor, q, logger)
	reactor.onReceive = ad.Receive
	reactor.onNewPeer = ad.NewPeer

	tr := tree.New(host.LastIrreversibleBlockId())
	if err := ad.Bootstrap(tr); err != nil {
		return nil, errors.Wrap(err, "node: bootstrap")
	}

	eng := engine.New(tr, ad, ad, logger, engineOpts...)
	disp.target = eng

	n.transport = transport
	n.sw = sw
	n.nodeInfo = nodeInfo
	n.nodeKey = nodeKey
	n.reactor = reactor
	n.adapter = ad
	n.engine = eng
	n.queue = q
	n.pv = pv

	n.BaseService = *service.NewBaseService(logger, "Node", n)
	return n, nil
}

func (n *Node) Switch() *p2p.Switch   { return n.sw }
func (n *Node) NodeInfo() p2p.NodeInfo { return n.nodeInfo }
func (n *Node) Engine() *engine.Engine { return n.engine }
func (n *Node) PrivValidator() *privval.FilePV { return n.pv }

func (n *Node) OnStart() error {
	addr, err := p2p.NewNetAddressString(p2p.IDAddressString(n.nodeKey.ID(), n.config.P2P.ListenAddress))
	if err != nil {
		return err
	}
	if err := n.transport.Listen(*addr); err != nil {
		return err
	}

	if err := n.sw.Start(); err != nil {
		return err
	}

	n.queue.Start()

	n.Logger.Info("starting randpa node", "peers", n.config.P2P.PersistentPeers)
	if err := n.sw.DialPeersAsync(splitAndTrimEmpty(n.config.P2P.PersistentPeers, ",", " ")); err != nil {
		return errors.Wrap(err, "could not dial peers from persistent_peers field")
	}

	return nil
}

func (n *Node) OnStop() {
	n.queue.Stop()
	n.sw.Stop()
	n.transport.Close()
}

// lazyDispatcher breaks the construction cycle between queue.Threaded
// (which needs a Dispatcher at NewThreaded time) and engine.Engine (which
// needs the queue's collaborators built first): the queue is handed a
// forwarding shim whose target is filled in once the engine exists, before
// the queue's worker is ever started.
type lazyDispatcher struct {
	target queue.Dispatcher
}

func (d *lazyDispatcher) Process(m queue.Message) { d.target.Process(m) }

func splitAndTrimEmpty(s, sep, cutset string) []string {
	if s == "" {
		return []string{}
	}
	spl := strings.Split(s, sep)
	out := make([]string, 0, len(spl))
	for _, e := range spl {
		if trimmed := strings.Trim(e, cutset); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

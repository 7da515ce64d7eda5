package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	tmrand "github.com/tendermint/tendermint/libs/rand"

	"github.com/mixbytes/randpa/adapter"
	"github.com/mixbytes/randpa/engine"
	"github.com/mixbytes/randpa/internal/hostsim"
	"github.com/mixbytes/randpa/queue"
	"github.com/mixbytes/randpa/tree"
	"github.com/mixbytes/randpa/types"
)

// DebugSimCmd drives the gadget end to end over internal/hostsim, with no
// p2p, no disk, and no real block producer -- a way to watch the scenarios
// spec.md §8 describes (symmetric N-node quorum, a severed link, a
// below-threshold set) run to completion from a single process, for local
// operators and this repo's own demos rather than production use.
var DebugSimCmd = &cobra.Command{
	Use:   "debug-sim",
	Short: "Run an in-memory simulation of N randpa nodes",
	RunE:  runDebugSim,
}

var (
	simNodes       int
	simBlocks      int
	simSevers      string
	simRandomOrder bool
)

func init() {
	DebugSimCmd.Flags().IntVar(&simNodes, "nodes", 3, "number of simulated nodes, all active block producers")
	DebugSimCmd.Flags().IntVar(&simBlocks, "blocks", 10, "number of blocks to produce before reporting")
	DebugSimCmd.Flags().StringVar(&simSevers, "sever", "", "comma-separated a-b session id pairs to sever one-way, e.g. \"1-2,2-1\"")
	DebugSimCmd.Flags().BoolVar(&simRandomOrder, "random-order", false, "pick each block's producer at random instead of round-robin")
}

// producerAt picks the block producer for height h, round-robin by default
// or, with --random-order, drawn via tmrand the same way the teacher's
// cmd/commands/init.go leans on libs/rand for throwaway, non-cryptographic
// choices rather than pulling in a general-purpose math/rand dependency.
func producerAt(pubs []types.PublicKey, h int) types.PublicKey {
	if simRandomOrder {
		return pubs[tmrand.Intn(len(pubs))]
	}
	return pubs[h%len(pubs)]
}

// lazyDispatcher breaks the same construction cycle node.NewNode resolves:
// queue.NewInline needs a Dispatcher at construction time, but the engine
// that will act as that Dispatcher needs the adapter built from the queue.
type lazyDispatcher struct {
	target queue.Dispatcher
}

func (d *lazyDispatcher) Process(m queue.Message) { d.target.Process(m) }

type simNode struct {
	adapter *adapter.Adapter
	engine  *engine.Engine
	key     types.PublicKey
}

func runDebugSim(cmd *cobra.Command, args []string) error {
	if simNodes < 1 {
		return fmt.Errorf("debug-sim: --nodes must be >= 1")
	}

	keys := make([]types.PrivateKey, simNodes)
	pubs := make([]types.PublicKey, simNodes)
	for i := range keys {
		priv, err := types.GeneratePrivateKey()
		if err != nil {
			return err
		}
		keys[i] = priv
		pubs[i] = priv.PublicKey()
	}
	bpKeys := types.NewBPKeySet(pubs...)

	chain := hostsim.NewChain(bpKeys)
	net := hostsim.NewNetwork(simNodes)
	if err := applySevers(net, simSevers); err != nil {
		return err
	}

	nodes := make([]simNode, simNodes)
	for i, ep := range net.Endpoints() {
		t := tree.New(chain.LastIrreversibleBlockId())

		disp := &lazyDispatcher{}
		q := queue.NewInline(disp)
		ad := adapter.New(chain, ep, q, logger)
		ep.OnReceive(ad.Receive)

		if err := ad.Bootstrap(t); err != nil {
			return fmt.Errorf("debug-sim: bootstrap node %d: %w", i, err)
		}

		eng := engine.New(t, ad, ad, logger, engine.WithPrivateKey(keys[i]))
		disp.target = eng

		nodes[i] = simNode{adapter: ad, engine: eng, key: pubs[i]}
	}

	for i, ep := range net.Endpoints() {
		for j, peer := range net.Endpoints() {
			if i != j {
				nodes[i].adapter.NewPeer(peer.Self())
			}
		}
		_ = ep
	}

	for h := 0; h < simBlocks; h++ {
		creator := producerAt(pubs, h)
		block := chain.Produce(creator)
		for _, n := range nodes {
			n.adapter.AcceptedBlock(block)
		}
	}

	fmt.Printf("finalized by host chain: %v\n", chain.Finalized())
	for i, n := range nodes {
		snap := n.engine.Snapshot()
		fmt.Printf("node %d: lib=%s round=%d state=%s\n", i, snap.Lib, snap.RoundNum, snap.RoundState)
	}
	return nil
}

func applySevers(net *hostsim.Network, spec string) error {
	if spec == "" {
		return nil
	}
	for _, pair := range strings.Split(spec, ",") {
		parts := strings.SplitN(pair, "-", 2)
		if len(parts) != 2 {
			return fmt.Errorf("debug-sim: malformed --sever pair %q, want a-b", pair)
		}
		a, err := strconv.Atoi(parts[0])
		if err != nil {
			return fmt.Errorf("debug-sim: malformed --sever pair %q: %w", pair, err)
		}
		b, err := strconv.Atoi(parts[1])
		if err != nil {
			return fmt.Errorf("debug-sim: malformed --sever pair %q: %w", pair, err)
		}
		net.Sever(types.SessionId(a), types.SessionId(b))
	}
	return nil
}

package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	tmos "github.com/tendermint/tendermint/libs/os"

	nm "github.com/mixbytes/randpa/node"
)

// NewStartCmd wires nodeProvider into a cobra command that starts the node
// and blocks until terminated. Passing a different nodeProvider here is
// the supported way to run the gadget against a real chain process's own
// adapter.Host -- cmd/main.go passes nm.DefaultNewNode here; a copy of
// cmd/main.go can pass a Provider backed by that host instead, the same
// escape hatch the teacher's own cmd/main.go documents around its nodeFunc
// variable.
func NewStartCmd(nodeProvider nm.Provider) *cobra.Command {
	return &cobra.Command{
		Use:     "start",
		Aliases: []string{"node", "run"},
		Short:   "Run the randpa node",
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := nodeProvider(config, randpaConfig, logger)
			if err != nil {
				return fmt.Errorf("failed to create node: %w", err)
			}

			if err := n.Start(); err != nil {
				return fmt.Errorf("failed to start node: %w", err)
			}
			logger.Info("Started node", "nodeInfo", n.NodeInfo())

			tmos.TrapSignal(logger, func() {
				if n.IsRunning() {
					n.Stop()
				}
			})

			select {}
		},
	}
}

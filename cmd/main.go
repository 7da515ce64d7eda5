package main

import (
	"fmt"
	"os"
	"path/filepath"

	cfg "github.com/tendermint/tendermint/config"
	"github.com/tendermint/tendermint/libs/cli"

	cmd "github.com/mixbytes/randpa/cmd/commands"
	nm "github.com/mixbytes/randpa/node"
)

func main() {
	cfg.DefaultTendermintDir = ".randpa"
	rootCmd := cmd.RootCmd

	// Users wishing to embed the gadget against a real chain process --
	// supplying their own adapter.Host instead of internal/hostsim's
	// in-memory stand-in -- can copy this file and pass a different
	// nm.Provider to NewStartCmd/NewDebugCmd.
	nodeProvider := nm.DefaultNewNode

	rootCmd.AddCommand(
		cmd.InitFilesCmd,
		cmd.GenNodeKeyCmd,
		cmd.GenValidatorCmd,
		cmd.ShowNodeIDCmd,
		cmd.ShowValidatorCmd,
		cmd.DebugSimCmd,
		cmd.NewStartCmd(nodeProvider),
		cmd.NewDebugCmd(nodeProvider),
		cli.NewCompletionCmd(rootCmd, true),
	)

	baseCmd := cli.PrepareBaseCmd(rootCmd, "RANDPA", os.ExpandEnv(filepath.Join("$HOME", cfg.DefaultTendermintDir)))
	if err := baseCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

package commands

import (
	"github.com/spf13/cobra"
	tmos "github.com/tendermint/tendermint/libs/os"
	"github.com/tendermint/tendermint/p2p"

	cfg "github.com/tendermint/tendermint/config"

	"github.com/mixbytes/randpa/privval"
)

// InitFilesCmd provisions the files a fresh randpa node needs before its
// first start: a p2p node key and a signing key (spec.md §6). Unlike the
// teacher's InitFilesCmd, there is no genesis file to write -- the gadget
// owns no chain state of its own (spec.md §1 Non-goals).
var InitFilesCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a randpa node's key files",
	RunE:  initFiles,
}

func initFiles(cmd *cobra.Command, args []string) error {
	return initFilesWithConfig(config)
}

func initFilesWithConfig(config *cfg.Config) error {
	keyFile := keyFilePath()
	if tmos.FileExists(keyFile) {
		logger.Info("Found randpa key", "path", keyFile)
	} else {
		pv := privval.GenFilePV(keyFile)
		pv.Save()
		logger.Info("Generated randpa key", "path", keyFile)
	}

	nodeKeyFile := config.NodeKeyFile()
	if tmos.FileExists(nodeKeyFile) {
		logger.Info("Found node key", "path", nodeKeyFile)
	} else {
		if _, err := p2p.LoadOrGenNodeKey(nodeKeyFile); err != nil {
			return err
		}
		logger.Info("Generated node key", "path", nodeKeyFile)
	}

	return nil
}

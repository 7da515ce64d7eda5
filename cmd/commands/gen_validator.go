package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	tmos "github.com/tendermint/tendermint/libs/os"

	"github.com/mixbytes/randpa/privval"
)

// GenValidatorCmd generates a fresh secp256k1 signing keypair and writes
// it to the gadget's configured key file (spec.md §6 "randpa-private-key").
var GenValidatorCmd = &cobra.Command{
	Use:     "gen-key",
	Aliases: []string{"gen_validator", "gen-validator"},
	Short:   "Generate a new randpa signing keypair",
	PreRun:  deprecateSnakeCase,
	RunE:    genValidator,
}

func keyFilePath() string {
	path := randpaConfig.PrivateKeyFile
	if !filepath.IsAbs(path) {
		path = filepath.Join(config.RootDir, path)
	}
	return path
}

func genValidator(cmd *cobra.Command, args []string) error {
	keyFile := keyFilePath()
	if tmos.FileExists(keyFile) {
		return fmt.Errorf("randpa key already exists at %s", keyFile)
	}

	pv := privval.GenFilePV(keyFile)
	pv.Save()
	fmt.Println(pv.PublicKey())
	return nil
}

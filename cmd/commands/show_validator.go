package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mixbytes/randpa/privval"
)

// ShowValidatorCmd prints the public key of the gadget's configured
// signing key, generating one first if none exists yet.
var ShowValidatorCmd = &cobra.Command{
	Use:     "show-key",
	Aliases: []string{"show_validator", "show-validator"},
	Short:   "Show this node's randpa public key",
	PreRun:  deprecateSnakeCase,
	RunE:    showValidator,
}

func showValidator(cmd *cobra.Command, args []string) error {
	pv := privval.LoadOrGenFilePV(keyFilePath())
	fmt.Println(pv.PublicKey())
	return nil
}

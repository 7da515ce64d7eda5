package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	cfg "github.com/tendermint/tendermint/config"
	"github.com/tendermint/tendermint/libs/cli"
	logflags "github.com/tendermint/tendermint/libs/cli/flags"
	"github.com/tendermint/tendermint/libs/log"

	rcfg "github.com/mixbytes/randpa/config"
)

var (
	config       = cfg.DefaultConfig()
	randpaConfig = rcfg.DefaultRandpaConfig()
	logger       log.Logger = log.NewNopLogger()
)

// RootCmd is the gadget's command-line entrypoint: a standalone sidecar
// process, run alongside a host chain node (spec.md §1), adapted from the
// teacher's cmd/main.go wiring of cli.PrepareBaseCmd/cli.NewCompletionCmd.
var RootCmd = &cobra.Command{
	Use:   "randpa",
	Short: "RANDPA pipelined BFT finality gadget",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return bindConfig(cmd)
	},
}

func init() {
	RootCmd.PersistentFlags().String("log_level", cfg.DefaultLogLevel, "log level")
	RootCmd.PersistentFlags().String("randpa_private_key_file", randpaConfig.PrivateKeyFile, "path to the WIF-encoded randpa signing key, relative to the home directory")
}

func bindConfig(cmd *cobra.Command) error {
	home := viper.GetString(cli.HomeFlag)
	config.SetRoot(home)
	cfg.EnsureRoot(home)

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	if err := viper.Unmarshal(config); err != nil {
		return err
	}
	if err := config.ValidateBasic(); err != nil {
		return fmt.Errorf("error in config file: %w", err)
	}
	if err := viper.Unmarshal(randpaConfig); err != nil {
		return err
	}

	logLevel := viper.GetString("log_level")
	if logLevel == "" {
		logLevel = cfg.DefaultLogLevel
	}
	parsed, err := logflags.ParseLogLevel(logLevel, log.NewTMLogger(log.NewSyncWriter(os.Stdout)), cfg.DefaultLogLevel)
	if err != nil {
		return err
	}
	logger = parsed
	return nil
}

// deprecateSnakeCase warns when a command is invoked by a snake_case alias
// kept only for backward compatibility (matches the teacher's
// cmd/commands convention of registering both forms via cobra.Aliases).
func deprecateSnakeCase(cmd *cobra.Command, args []string) {
	if strings.Contains(cmd.CalledAs(), "_") {
		logger.Error("command's snake_case form is deprecated, use dashes instead", "command", cmd.CalledAs())
	}
}

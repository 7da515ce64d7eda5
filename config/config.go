// Package config defines the gadget's own configuration section,
// RandpaConfig, the same way tendermint/config's ConsensusConfig sits
// alongside P2PConfig/RPCConfig inside the bundled cfg.Config -- except the
// gadget's section has exactly one recognized option (spec.md §6
// "Configuration"), so it lives in its own small struct, unmarshalled by
// Viper from the top-level randpa_private_key_file key (flag, environment
// or config file) rather than being folded into the teacher's own
// config.Config.
package config

// RandpaConfig holds the gadget's one recognized runtime option plus the
// file path conventions cmd/commands uses for key management.
type RandpaConfig struct {
	// PrivateKeyFile is where the WIF-encoded secp256k1 signing key lives
	// (spec.md §6 "randpa-private-key"). A node without one still runs as
	// an observer: privval.LoadOrGenFilePV always produces *some* key, but
	// an auto-generated one never belongs to any active-BP set, so it never
	// actually votes (the same reasoning as engine.New's ephemeral-key
	// fallback).
	PrivateKeyFile string `mapstructure:"randpa_private_key_file"`
}

// DefaultRandpaConfig returns the config used when no
// randpa_private_key_file value is set.
func DefaultRandpaConfig() *RandpaConfig {
	return &RandpaConfig{
		PrivateKeyFile: "config/randpa_key.json",
	}
}

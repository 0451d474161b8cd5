package receiver

import (
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// flagDef defines a command-line flag with its configuration.
type (
	flagType interface {
		string | int | bool | time.Duration
	}

	flagDef[T flagType] struct {
		name         string
		viperKey     string
		defaultValue T
		description  string
	}
)

// Defaults are zero values on purpose: viper prefers config values (including the embedded
// defaults) over the default of a flag that was not set on the command line.
var (
	// shared by every command
	persistentStringFlags = []flagDef[string]{
		{"log-level", "log.level", "", "Log level (debug, info, warn, error)"},
		{"log-format", "log.format", "", "Log format (text or json)"},
		{"chains-file", "deployer.chains-file", "", "Chain configuration file"},
		{"artifact-file", "deployer.artifact-file", "", "Compiled contract artifact (abi + bytecode)"},
		{"records-file", "deployer.records-file", "", "Deployment record file"},
		{"contract-name", "deployer.contract-name", "", "Contract to deploy, also the record field name"},
	}

	deployStringFlags = []flagDef[string]{
		{"output-file", "deployer.output-file", "", "Optional YAML summary of the deployment"},
		{"target-network", "deployer.target.network", "", "Record key of the network deployed to"},
		{"description-match", "deployer.target.description-match", "", "Substring selecting the target chain by description"},
		{"source-network", "deployer.source.network", "", "Record key of the network whose sender is registered"},
		{"source-contract", "deployer.source.contract-name", "", "Record field holding the sender address"},
	}

	deployIntFlags = []flagDef[int]{
		{"source-chain-id", "deployer.source.chain-id", 0, "Wormhole chain id of the source network"},
		{"gas-limit", "deployer.gas-limit", 0, "Fixed gas limit per transaction (0 = estimate)"},
	}

	deployBoolFlags = []flagDef[bool]{
		{"watch", "deployer.watch", false, "Keep running and log contract events until interrupted"},
	}

	deployDurationFlags = []flagDef[time.Duration]{
		{"tx-timeout", "deployer.tx-timeout", 0, "Timeout for sending and mining a single transaction"},
		{"poll-interval", "deployer.poll-interval", 0, "Log polling interval for endpoints without subscriptions"},
	}
)

// BindPersistentFlags declares the flags shared by all commands on flags.
func BindPersistentFlags(flags *pflag.FlagSet) error {
	return declareFlags(flags, persistentStringFlags)
}

func bindDeployFlags(flags *pflag.FlagSet) error {
	if err := declareFlags(flags, deployStringFlags); err != nil {
		return err
	}
	if err := declareFlags(flags, deployIntFlags); err != nil {
		return err
	}
	if err := declareFlags(flags, deployBoolFlags); err != nil {
		return err
	}
	return declareFlags(flags, deployDurationFlags)
}

// declareFlags declares multiple flags and binds them to viper configuration keys.
func declareFlags[T flagType](flags *pflag.FlagSet, defs []flagDef[T]) error {
	for _, def := range defs {
		if err := declareFlag(flags, def.name, def.viperKey, def.defaultValue, def.description); err != nil {
			return err
		}
	}
	return nil
}

// declareFlag declares a single flag and binds it to a viper configuration key.
// The type parameter T determines the flag type.
func declareFlag[T flagType](flags *pflag.FlagSet, flagName, viperKey string, defaultValue T, description string) error {
	switch value := any(defaultValue).(type) {
	case string:
		flags.String(flagName, value, description)
	case int:
		flags.Int(flagName, value, description)
	case bool:
		flags.Bool(flagName, value, description)
	case time.Duration:
		flags.Duration(flagName, value, description)
	}
	return viper.BindPFlag(viperKey, flags.Lookup(flagName))
}

package configs

import (
	"errors"
	"fmt"
	"time"
)

var Values Config

type (
	NetworkName string

	Config struct {
		Log      Log      `mapstructure:"log"`
		Deployer Deployer `mapstructure:"deployer"`
	}

	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	}

	Deployer struct {
		PrivateKey   string        `mapstructure:"private-key"`
		ChainsFile   string        `mapstructure:"chains-file"`
		ArtifactFile string        `mapstructure:"artifact-file"`
		RecordsFile  string        `mapstructure:"records-file"`
		OutputFile   string        `mapstructure:"output-file"`
		ContractName string        `mapstructure:"contract-name"`
		Target       Target        `mapstructure:"target"`
		Source       Source        `mapstructure:"source"`
		Registration Registration  `mapstructure:"registration"`
		Events       []string      `mapstructure:"events"`
		GasLimit     uint64        `mapstructure:"gas-limit"`
		TxTimeout    time.Duration `mapstructure:"tx-timeout"`
		PollInterval time.Duration `mapstructure:"poll-interval"`
		Watch        bool          `mapstructure:"watch"`
	}

	// Target is the network the receiver gets deployed to.
	Target struct {
		Network          NetworkName `mapstructure:"network"`
		DescriptionMatch string      `mapstructure:"description-match"`
	}

	// Source is the network whose previously deployed sender is registered on the receiver.
	Source struct {
		Network      NetworkName `mapstructure:"network"`
		ContractName string      `mapstructure:"contract-name"`
		ChainID      uint16      `mapstructure:"chain-id"`
	}

	Registration struct {
		Method string `mapstructure:"method"`
	}
)

const (
	NetworkNameCelo      NetworkName = "celo"
	NetworkNameAvalanche NetworkName = "avalanche"

	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Validate checks the static part of the configuration. The private key is deliberately
// not checked here: the deployment workflow reports it first, before touching any file.
func (c *Deployer) Validate() error {
	var errs []error

	if c.ChainsFile == "" {
		errs = append(errs, errors.New("deployer.chains-file is required"))
	}
	if c.ArtifactFile == "" {
		errs = append(errs, errors.New("deployer.artifact-file is required"))
	}
	if c.RecordsFile == "" {
		errs = append(errs, errors.New("deployer.records-file is required"))
	}
	if c.ContractName == "" {
		errs = append(errs, errors.New("deployer.contract-name is required"))
	}
	if c.Target.Network == "" {
		errs = append(errs, errors.New("deployer.target.network is required"))
	}
	if c.Target.DescriptionMatch == "" {
		errs = append(errs, errors.New("deployer.target.description-match is required"))
	}
	if c.Source.Network == "" {
		errs = append(errs, errors.New("deployer.source.network is required"))
	}
	if c.Source.ContractName == "" {
		errs = append(errs, errors.New("deployer.source.contract-name is required"))
	}
	if c.Source.ChainID == 0 {
		errs = append(errs, errors.New("deployer.source.chain-id is required"))
	}
	if c.Source.Network == c.Target.Network && c.Source.Network != "" {
		errs = append(errs, fmt.Errorf("deployer.source.network must differ from deployer.target.network (%s)", c.Target.Network))
	}
	if c.Registration.Method == "" {
		errs = append(errs, errors.New("deployer.registration.method is required"))
	}
	if c.TxTimeout < 0 {
		errs = append(errs, errors.New("deployer.tx-timeout must not be negative"))
	}
	if c.Watch && c.PollInterval <= 0 {
		errs = append(errs, errors.New("deployer.poll-interval must be positive when watching events"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("deployer configuration validation failed: %w", errors.Join(errs...))
	}

	return nil
}

func (c *Log) Validate() error {
	if c.Format != "" && c.Format != LogFormatText && c.Format != LogFormatJSON {
		return fmt.Errorf("log.format must be either '%s' or '%s'", LogFormatText, LogFormatJSON)
	}

	return nil
}

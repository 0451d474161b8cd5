package output

import (
	"github.com/compose-network/receiver-deployer/configs"
	"gopkg.in/yaml.v3"
)

type (
	Model struct {
		Network    configs.NetworkName `yaml:"network"`
		Chain      Chain               `yaml:"chain"`
		Contract   Contract            `yaml:"contract"`
		Registered RegisteredSender    `yaml:"registered-sender"`
	}

	Chain struct {
		Description     string `yaml:"description"`
		RPCURL          string `yaml:"rpc-url"`
		WormholeRelayer string `yaml:"wormhole-relayer"`
	}

	Contract struct {
		Name       string             `yaml:"name"`
		Address    string             `yaml:"address"`
		Deployer   string             `yaml:"deployer"`
		DeployTx   string             `yaml:"deploy-tx"`
		DeployedAt string             `yaml:"deployed-at"`
		ABI        SingleQuotedString `yaml:"abi"`
	}

	RegisteredSender struct {
		ChainID uint16 `yaml:"chain-id"`
		Address string `yaml:"address"`
		TxHash  string `yaml:"tx-hash"`
	}

	SingleQuotedString string
)

func (s SingleQuotedString) MarshalYAML() (any, error) {
	node := &yaml.Node{
		Kind:  yaml.ScalarNode,
		Style: yaml.SingleQuotedStyle,
		Value: string(s),
	}
	return node, nil
}

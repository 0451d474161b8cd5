package chains

import (
	"errors"
	"fmt"
	"strings"

	"github.com/compose-network/receiver-deployer/internal/infra/filesystem"
	"github.com/ethereum/go-ethereum/common"
)

// ErrChainNotFound is returned when no configured chain matches the requested description.
var ErrChainNotFound = errors.New("chain configuration not found")

type (
	// Chain is a single entry of the chains file. Only description, rpc and wormholeRelayer
	// are required; the remaining fields are informational.
	Chain struct {
		Description     string `json:"description"`
		RPC             string `json:"rpc"`
		WormholeRelayer string `json:"wormholeRelayer"`
		ChainID         uint64 `json:"chainId,omitempty"`
		WormholeChainID uint16 `json:"wormholeChainId,omitempty"`
	}

	// Registry is the parsed chains file, in file order.
	Registry struct {
		Chains []Chain `json:"chains"`
	}
)

// Load reads the chains file at path.
func Load(reader filesystem.Reader, path string) (*Registry, error) {
	var registry Registry
	if err := reader.ReadJSON(path, &registry); err != nil {
		return nil, fmt.Errorf("failed to load chains from '%s': %w", path, err)
	}

	return &registry, nil
}

// Find returns the first chain whose description contains match.
func (r *Registry) Find(match string) (Chain, error) {
	for _, chain := range r.Chains {
		if strings.Contains(chain.Description, match) {
			return chain, nil
		}
	}

	return Chain{}, fmt.Errorf("%w: no entry with description containing '%s'", ErrChainNotFound, match)
}

// RelayerAddress returns the relay address as a typed address. Only presence and hex shape
// are checked.
func (c Chain) RelayerAddress() (common.Address, error) {
	if c.WormholeRelayer == "" {
		return common.Address{}, fmt.Errorf("chain '%s' has no wormholeRelayer", c.Description)
	}
	if !common.IsHexAddress(c.WormholeRelayer) {
		return common.Address{}, fmt.Errorf("chain '%s' has invalid wormholeRelayer '%s'", c.Description, c.WormholeRelayer)
	}

	return common.HexToAddress(c.WormholeRelayer), nil
}

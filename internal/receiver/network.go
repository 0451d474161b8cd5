package receiver

import (
	"context"
	"time"

	"github.com/compose-network/receiver-deployer/internal/chains"
	"github.com/compose-network/receiver-deployer/internal/evm"
	"github.com/compose-network/receiver-deployer/internal/listener"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

type (
	// EVMConnector dials the chain RPC with go-ethereum
	EVMConnector struct {
		opts         evm.Options
		pollInterval time.Duration
	}

	evmNetwork struct {
		*evm.Client
		pollInterval time.Duration
	}
)

func NewEVMConnector(opts evm.Options, pollInterval time.Duration) *EVMConnector {
	return &EVMConnector{
		opts:         opts,
		pollInterval: pollInterval,
	}
}

func (c *EVMConnector) Connect(ctx context.Context, chain chains.Chain, privateKey string) (network, error) {
	client, err := evm.Dial(ctx, chain.RPC, privateKey, c.opts)
	if err != nil {
		return nil, err
	}

	return &evmNetwork{Client: client, pollInterval: c.pollInterval}, nil
}

func (n *evmNetwork) Watch(ctx context.Context, address common.Address, contractABI abi.ABI, events []string, handler listener.Handler) (Subscription, error) {
	sub, err := listener.Attach(ctx, n.Backend(), address, contractABI, events, handler, listener.Options{
		PollInterval: n.pollInterval,
	})
	if err != nil {
		return nil, err
	}

	return sub, nil
}

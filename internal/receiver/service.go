package receiver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/compose-network/receiver-deployer/configs"
	"github.com/compose-network/receiver-deployer/internal/chains"
	"github.com/compose-network/receiver-deployer/internal/contracts"
	"github.com/compose-network/receiver-deployer/internal/deployment"
	"github.com/compose-network/receiver-deployer/internal/evm"
	"github.com/compose-network/receiver-deployer/internal/infra/filesystem"
	"github.com/compose-network/receiver-deployer/internal/listener"
	"github.com/compose-network/receiver-deployer/internal/logger"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ErrMissingCredential is returned when no signing key was configured.
var ErrMissingCredential = errors.New("private key is not set (PRIVATE_KEY)")

type (
	// Subscription is the handle of the attached event listeners.
	Subscription interface {
		Err() <-chan error
		Close()
	}

	network interface {
		Address() common.Address
		Deploy(ctx context.Context, contractABI abi.ABI, bytecode []byte, constructorArgs ...any) (evm.Deployment, error)
		Transact(ctx context.Context, address common.Address, contractABI abi.ABI, method string, args ...any) (*types.Receipt, error)
		Watch(ctx context.Context, address common.Address, contractABI abi.ABI, events []string, handler listener.Handler) (Subscription, error)
		Close()
	}
	connector interface {
		Connect(ctx context.Context, chain chains.Chain, privateKey string) (network, error)
	}
	recordStore interface {
		Load() (deployment.Record, error)
		Save(record deployment.Record) error
	}
	outputGenerator interface {
		Generate(ctx context.Context, result *Result) error
	}

	// Service runs the receiver deployment workflow
	Service struct {
		cfg             configs.Deployer
		reader          filesystem.Reader
		store           recordStore
		connector       connector
		outputGenerator outputGenerator
		now             func() time.Time
		logger          *slog.Logger
	}

	// Result describes a completed run. The network connection stays open for the event
	// listeners until Close is called.
	Result struct {
		Network        configs.NetworkName
		Chain          chains.Chain
		Artifact       contracts.Artifact
		Deployer       common.Address
		Address        common.Address
		DeployTx       common.Hash
		RegistrationTx common.Hash
		SourceChainID  uint16
		Sender         common.Address
		DeployedAt     time.Time
		Subscription   Subscription

		network network
	}
)

// NewService creates a new receiver deployment service. outputGenerator may be nil.
func NewService(
	cfg configs.Deployer,
	reader filesystem.Reader,
	store recordStore,
	connector connector,
	outputGenerator outputGenerator) *Service {
	return &Service{
		cfg:             cfg,
		reader:          reader,
		store:           store,
		connector:       connector,
		outputGenerator: outputGenerator,
		now:             time.Now,
		logger:          logger.Named("receiver_service"),
	}
}

// Deploy deploys the receiver, registers the source chain sender on it, records the new
// address and attaches the event listeners. Nothing is rolled back on failure: a run that
// fails after the deployment was mined leaves that contract on chain.
func (s *Service) Deploy(ctx context.Context) (*Result, error) {
	if strings.TrimSpace(s.cfg.PrivateKey) == "" {
		return nil, ErrMissingCredential
	}

	chain, err := s.selectChain()
	if err != nil {
		return nil, err
	}

	relayer, err := chain.RelayerAddress()
	if err != nil {
		return nil, err
	}

	s.logger.With("chain", chain.Description).With("rpc", chain.RPC).Info("connecting to target chain")
	net, err := s.connector.Connect(ctx, chain, s.cfg.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", chain.Description, err)
	}

	result, err := s.run(ctx, net, chain, relayer)
	if err != nil {
		net.Close()
		return nil, err
	}

	return result, nil
}

func (s *Service) selectChain() (chains.Chain, error) {
	registry, err := chains.Load(s.reader, s.cfg.ChainsFile)
	if err != nil {
		return chains.Chain{}, err
	}

	chain, err := registry.Find(s.cfg.Target.DescriptionMatch)
	if err != nil {
		return chains.Chain{}, err
	}

	return chain, nil
}

func (s *Service) run(ctx context.Context, net network, chain chains.Chain, relayer common.Address) (*Result, error) {
	s.logger.With("path", s.cfg.ArtifactFile).Info("loading contract artifact")
	artifact, err := contracts.LoadArtifact(s.reader, s.cfg.ArtifactFile, s.cfg.ContractName)
	if err != nil {
		return nil, err
	}
	if err := artifact.RequireMethod(s.cfg.Registration.Method); err != nil {
		return nil, err
	}

	s.logger.
		With("contract", artifact.Name).
		With("relayer", relayer.Hex()).
		With("deployer", net.Address().Hex()).
		Info("deploying contract")
	deployed, err := net.Deploy(ctx, artifact.ABI, artifact.Bytecode, relayer)
	if err != nil {
		return nil, fmt.Errorf("failed to deploy %s: %w", artifact.Name, err)
	}
	s.logger.With("contract", artifact.Name).With("address", deployed.Address.Hex()).Info("contract deployed")

	record, err := s.store.Load()
	if err != nil {
		return nil, err
	}

	sender, err := record.Address(string(s.cfg.Source.Network), s.cfg.Source.ContractName)
	if err != nil {
		return nil, fmt.Errorf("cannot register %s sender: %w", s.cfg.Source.Network, err)
	}

	s.logger.
		With("source_network", s.cfg.Source.Network).
		With("source_chain_id", s.cfg.Source.ChainID).
		With("sender", sender.Hex()).
		Info("registering sender")
	receipt, err := net.Transact(ctx, deployed.Address, artifact.ABI, s.cfg.Registration.Method, s.cfg.Source.ChainID, evm.PadAddress(sender))
	if err != nil {
		return nil, fmt.Errorf("failed to register %s sender: %w", s.cfg.Source.Network, err)
	}
	s.logger.With("tx_hash", receipt.TxHash.Hex()).Info("sender registered")

	result := &Result{
		Network:        s.cfg.Target.Network,
		Chain:          chain,
		Artifact:       artifact,
		Deployer:       net.Address(),
		Address:        deployed.Address,
		DeployTx:       deployed.TxHash,
		RegistrationTx: receipt.TxHash,
		SourceChainID:  s.cfg.Source.ChainID,
		Sender:         sender,
		DeployedAt:     s.now().UTC(),
		network:        net,
	}

	if err := record.Put(string(result.Network), deployment.Entry{
		ContractName: artifact.Name,
		Address:      result.Address,
		DeployedAt:   result.DeployedAt,
	}); err != nil {
		return nil, err
	}
	if err := s.store.Save(record); err != nil {
		return nil, err
	}
	s.logger.With("network", result.Network).Info("deployment record updated")

	if s.outputGenerator != nil {
		if err := s.outputGenerator.Generate(ctx, result); err != nil {
			return nil, fmt.Errorf("failed to generate output file: %w", err)
		}
	}

	if len(s.cfg.Events) > 0 {
		sub, err := net.Watch(ctx, result.Address, artifact.ABI, s.cfg.Events, listener.LogHandler(logger.Named("receiver_events")))
		if err != nil {
			return nil, fmt.Errorf("failed to attach event listeners: %w", err)
		}
		result.Subscription = sub
	}

	return result, nil
}

// Close stops the event listeners and releases the network connection.
func (r *Result) Close() {
	if r.Subscription != nil {
		r.Subscription.Close()
	}
	if r.network != nil {
		r.network.Close()
	}
}

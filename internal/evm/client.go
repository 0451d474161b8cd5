package evm

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/compose-network/receiver-deployer/internal/logger"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// ErrTransactionFailed is returned when a mined transaction has a non-successful receipt.
var ErrTransactionFailed = errors.New("transaction failed")

type (
	// Backend is what the client needs from a node connection. Both *ethclient.Client and
	// the simulated backend client satisfy it.
	Backend interface {
		bind.ContractBackend
		bind.DeployBackend
		ChainID(ctx context.Context) (*big.Int, error)
	}

	Options struct {
		// GasLimit fixes the gas limit of every transaction; zero means estimate.
		GasLimit uint64
		// TxTimeout bounds sending and mining of a single transaction; zero means no bound
		// beyond the caller's context.
		TxTimeout time.Duration
	}

	// Client signs and submits transactions with a single key.
	Client struct {
		backend    Backend
		closer     func()
		privateKey *ecdsa.PrivateKey
		address    common.Address
		chainID    *big.Int
		opts       Options
		logger     *slog.Logger
	}

	// Deployment is the result of a mined contract creation.
	Deployment struct {
		Address common.Address
		TxHash  common.Hash
		Block   uint64
	}
)

// Dial connects to rpcURL and builds a client signing with privateKeyHex
func Dial(ctx context.Context, rpcURL, privateKeyHex string, opts Options) (*Client, error) {
	privateKey, err := ParsePrivateKey(privateKeyHex)
	if err != nil {
		return nil, err
	}

	log := logger.Named("evm_client")
	log.With("url", rpcURL).Info("dialing the RPC")

	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", rpcURL, err)
	}

	client, err := NewClient(ctx, eth, privateKey, opts)
	if err != nil {
		eth.Close()
		return nil, err
	}
	client.closer = eth.Close

	return client, nil
}

// NewClient builds a client on top of an existing backend
func NewClient(ctx context.Context, backend Backend, privateKey *ecdsa.PrivateKey, opts Options) (*Client, error) {
	log := logger.Named("evm_client")

	log.Info("fetching chain ID")
	chainID, err := backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}

	address := crypto.PubkeyToAddress(privateKey.PublicKey)
	log.With("chain_id", chainID).With("signer", address.Hex()).Info("chain ID was fetched")

	return &Client{
		backend:    backend,
		privateKey: privateKey,
		address:    address,
		chainID:    chainID,
		opts:       opts,
		logger:     log,
	}, nil
}

// ParsePrivateKey parses a hex encoded secp256k1 key, with or without 0x prefix
func ParsePrivateKey(privateKeyHex string) (*ecdsa.PrivateKey, error) {
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	return privateKey, nil
}

func (c *Client) Address() common.Address {
	return c.address
}

func (c *Client) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

func (c *Client) Backend() Backend {
	return c.backend
}

// Close releases the underlying connection if the client owns it
func (c *Client) Close() {
	if c.closer != nil {
		c.closer()
	}
}

// Deploy submits a contract creation transaction and waits until it is mined
func (c *Client) Deploy(ctx context.Context, contractABI abi.ABI, bytecode []byte, constructorArgs ...any) (Deployment, error) {
	ctx, cancel := c.txContext(ctx)
	defer cancel()

	auth, err := c.transactor(ctx)
	if err != nil {
		return Deployment{}, err
	}

	address, tx, _, err := bind.DeployContract(auth, contractABI, bytecode, c.backend, constructorArgs...)
	if err != nil {
		return Deployment{}, fmt.Errorf("failed to deploy contract: %w", err)
	}

	c.logger.
		With("address", address.Hex()).
		With("tx_hash", tx.Hash().Hex()).
		Info("contract deployment transaction sent")

	receipt, err := c.waitMined(ctx, tx)
	if err != nil {
		return Deployment{}, err
	}

	if receipt.ContractAddress != (common.Address{}) {
		address = receipt.ContractAddress
	}

	return Deployment{
		Address: address,
		TxHash:  tx.Hash(),
		Block:   receipt.BlockNumber.Uint64(),
	}, nil
}

// Transact calls method on the contract at address and waits until it is mined
func (c *Client) Transact(ctx context.Context, address common.Address, contractABI abi.ABI, method string, args ...any) (*types.Receipt, error) {
	ctx, cancel := c.txContext(ctx)
	defer cancel()

	auth, err := c.transactor(ctx)
	if err != nil {
		return nil, err
	}

	contract := bind.NewBoundContract(address, contractABI, c.backend, c.backend, c.backend)
	tx, err := contract.Transact(auth, method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to send %s: %w", method, err)
	}

	c.logger.
		With("method", method).
		With("to", address.Hex()).
		With("tx_hash", tx.Hash().Hex()).
		Info("transaction sent")

	return c.waitMined(ctx, tx)
}

func (c *Client) transactor(ctx context.Context) (*bind.TransactOpts, error) {
	auth, err := bind.NewKeyedTransactorWithChainID(c.privateKey, c.chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to create transactor: %w", err)
	}

	auth.Context = ctx
	auth.GasLimit = c.opts.GasLimit

	return auth, nil
}

func (c *Client) waitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	receipt, err := bind.WaitMined(ctx, c.backend, tx)
	if err != nil {
		return nil, fmt.Errorf("failed to wait for transaction %s: %w", tx.Hash().Hex(), err)
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("%w: %s mined with status %d", ErrTransactionFailed, tx.Hash().Hex(), receipt.Status)
	}

	c.logger.
		With("tx_hash", tx.Hash().Hex()).
		With("block", receipt.BlockNumber).
		With("gas_used", receipt.GasUsed).
		Debug("transaction mined")

	return receipt, nil
}

func (c *Client) txContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.opts.TxTimeout > 0 {
		return context.WithTimeout(ctx, c.opts.TxTimeout)
	}
	return context.WithCancel(ctx)
}

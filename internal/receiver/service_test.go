package receiver

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/compose-network/receiver-deployer/configs"
	"github.com/compose-network/receiver-deployer/internal/chains"
	"github.com/compose-network/receiver-deployer/internal/deployment"
	"github.com/compose-network/receiver-deployer/internal/evm"
	fsjson "github.com/compose-network/receiver-deployer/internal/infra/filesystem/json"
	"github.com/compose-network/receiver-deployer/internal/listener"
	"github.com/compose-network/receiver-deployer/internal/output"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testPrivateKey = "0xb71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291"

	chainsJSON = `{
  "chains": [
    {"description": "Avalanche testnet fuji", "rpc": "https://fuji.example", "wormholeRelayer": "0xA3cF45939bD6260bcFe3D66bc73d60f19e49a8BB"},
    {"description": "Celo Testnet", "rpc": "https://celo.example", "wormholeRelayer": "0x306B68267Deb7c5DfCDa3619E22E9Ca39C374f84"}
  ]
}`

	artifactJSON = `{
  "abi": [
    {"type":"constructor","inputs":[{"name":"_wormholeRelayer","type":"address"}],"stateMutability":"nonpayable"},
    {"type":"function","name":"setRegisteredSender","inputs":[{"name":"sourceChain","type":"uint16"},{"name":"sourceAddress","type":"bytes32"}],"outputs":[],"stateMutability":"nonpayable"},
    {"type":"event","name":"GameTransactionProcessed","inputs":[{"name":"player","type":"address","indexed":true},{"name":"action","type":"string","indexed":false},{"name":"value","type":"uint256","indexed":false}],"anonymous":false},
    {"type":"event","name":"MessageReceived","inputs":[{"name":"message","type":"string","indexed":false}],"anonymous":false},
    {"type":"event","name":"SourceChainLogged","inputs":[{"name":"sourceChain","type":"uint16","indexed":false}],"anonymous":false}
  ],
  "bytecode": {"object": "0x60016000f3"}
}`

	recordJSON = `{
  "avalanche": {
    "MessageSender": "0x1111111111111111111111111111111111111111",
    "deployedAt": "2024-09-01T08:00:00.000Z"
  },
  "fantom": {
    "MessageSender": "0x7777777777777777777777777777777777777777",
    "deployedAt": "2024-08-01T08:00:00.000Z"
  }
}`
)

var (
	celoRelayer = common.HexToAddress("0x306B68267Deb7c5DfCDa3619E22E9Ca39C374f84")
	fujiSender  = common.HexToAddress("0x1111111111111111111111111111111111111111")
	fixedNow    = time.Date(2024, 10, 2, 12, 0, 0, 0, time.UTC)
)

type (
	transaction struct {
		address common.Address
		method  string
		args    []any
	}

	fakeSubscription struct {
		closed int
		errs   chan error
	}

	fakeNetwork struct {
		nextAddress  int64
		deployErr    error
		transactErr  error
		deployArgs   [][]any
		transactions []transaction
		watched      []string
		closed       int
		sub          *fakeSubscription
	}

	fakeConnector struct {
		network *fakeNetwork
		calls   []chains.Chain
		keys    []string
		err     error
	}

	fakeOutput struct {
		results []*Result
	}
)

func (s *fakeSubscription) Err() <-chan error { return s.errs }
func (s *fakeSubscription) Close()             { s.closed++ }

func (n *fakeNetwork) Address() common.Address {
	return common.HexToAddress("0x9999999999999999999999999999999999999999")
}

func (n *fakeNetwork) Deploy(_ context.Context, _ abi.ABI, _ []byte, args ...any) (evm.Deployment, error) {
	if n.deployErr != nil {
		return evm.Deployment{}, n.deployErr
	}
	n.nextAddress++
	n.deployArgs = append(n.deployArgs, args)
	return evm.Deployment{
		Address: common.BigToAddress(big.NewInt(0xc0de00 + n.nextAddress)),
		TxHash:  common.BigToHash(big.NewInt(n.nextAddress)),
	}, nil
}

func (n *fakeNetwork) Transact(_ context.Context, address common.Address, _ abi.ABI, method string, args ...any) (*types.Receipt, error) {
	if n.transactErr != nil {
		return nil, n.transactErr
	}
	n.transactions = append(n.transactions, transaction{address: address, method: method, args: args})
	return &types.Receipt{Status: types.ReceiptStatusSuccessful, TxHash: common.HexToHash("0xabc")}, nil
}

func (n *fakeNetwork) Watch(_ context.Context, _ common.Address, _ abi.ABI, events []string, _ listener.Handler) (Subscription, error) {
	n.watched = append(n.watched, events...)
	n.sub = &fakeSubscription{errs: make(chan error)}
	return n.sub, nil
}

func (n *fakeNetwork) Close() { n.closed++ }

func (c *fakeConnector) Connect(_ context.Context, chain chains.Chain, privateKey string) (network, error) {
	c.calls = append(c.calls, chain)
	c.keys = append(c.keys, privateKey)
	if c.err != nil {
		return nil, c.err
	}
	return c.network, nil
}

func (o *fakeOutput) Generate(_ context.Context, result *Result) error {
	o.results = append(o.results, result)
	return nil
}

type fixture struct {
	dir       string
	cfg       configs.Deployer
	connector *fakeConnector
	network   *fakeNetwork
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()

	cfg := configs.MustDefaultConfig().Deployer
	cfg.PrivateKey = testPrivateKey
	cfg.ChainsFile = filepath.Join(dir, "deploy-config", "chains.json")
	cfg.ArtifactFile = filepath.Join(dir, "out", "MessageReceiver.sol", "MessageReceiver.json")
	cfg.RecordsFile = filepath.Join(dir, "deploy-config", "deployedContracts.json")

	net := &fakeNetwork{}
	f := &fixture{
		dir:       dir,
		cfg:       cfg,
		connector: &fakeConnector{network: net},
		network:   net,
	}
	f.write(t, cfg.ChainsFile, chainsJSON)
	f.write(t, cfg.ArtifactFile, artifactJSON)
	f.write(t, cfg.RecordsFile, recordJSON)

	return f
}

func (f *fixture) write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func (f *fixture) service(out outputGenerator) *Service {
	reader := fsjson.NewReader()
	store := deployment.NewStore(f.cfg.RecordsFile, reader, fsjson.NewWriter())
	s := NewService(f.cfg, reader, store, f.connector, out)
	s.now = func() time.Time { return fixedNow }
	return s
}

func (f *fixture) readRecord(t *testing.T) map[string]map[string]any {
	t.Helper()
	data, err := os.ReadFile(f.cfg.RecordsFile)
	require.NoError(t, err)
	var record map[string]map[string]any
	require.NoError(t, json.Unmarshal(data, &record))
	return record
}

func TestDeploySuccess(t *testing.T) {
	f := newFixture(t)
	out := &fakeOutput{}

	result, err := f.service(out).Deploy(context.Background())
	require.NoError(t, err)

	require.Len(t, f.connector.calls, 1)
	assert.Equal(t, "Celo Testnet", f.connector.calls[0].Description)
	assert.Equal(t, testPrivateKey, f.connector.keys[0])

	require.Len(t, f.network.deployArgs, 1)
	assert.Equal(t, []any{celoRelayer}, f.network.deployArgs[0])

	require.Len(t, f.network.transactions, 1)
	tx := f.network.transactions[0]
	assert.Equal(t, result.Address, tx.address)
	assert.Equal(t, "setRegisteredSender", tx.method)
	assert.Equal(t, []any{uint16(6), evm.PadAddress(fujiSender)}, tx.args)

	assert.Equal(t, []string{"GameTransactionProcessed", "MessageReceived", "SourceChainLogged"}, f.network.watched)
	require.NotNil(t, result.Subscription)

	assert.Equal(t, configs.NetworkNameCelo, result.Network)
	assert.Equal(t, fujiSender, result.Sender)
	assert.Equal(t, uint16(6), result.SourceChainID)
	require.Len(t, out.results, 1)

	record := f.readRecord(t)
	require.Len(t, record, 3)
	assert.Equal(t, map[string]any{
		"MessageSender": "0x1111111111111111111111111111111111111111",
		"deployedAt":    "2024-09-01T08:00:00.000Z",
	}, record["avalanche"])
	assert.Equal(t, "0x7777777777777777777777777777777777777777", record["fantom"]["MessageSender"])

	celo := record["celo"]
	require.Len(t, celo, 2)
	assert.Equal(t, result.Address.Hex(), celo["MessageReceiver"])
	assert.NotEqual(t, (common.Address{}).Hex(), celo["MessageReceiver"])
	deployedAt, err := time.Parse(time.RFC3339, celo["deployedAt"].(string))
	require.NoError(t, err)
	assert.True(t, deployedAt.Equal(fixedNow))

	assert.Equal(t, 0, f.network.closed, "connection stays open for listeners")
	result.Close()
	assert.Equal(t, 1, f.network.sub.closed)
	assert.Equal(t, 1, f.network.closed)
}

func TestDeployMissingCredentialFailsBeforeReadingFiles(t *testing.T) {
	f := newFixture(t)
	f.cfg.PrivateKey = "   "
	f.cfg.ChainsFile = filepath.Join(f.dir, "does-not-exist.json")
	f.cfg.ArtifactFile = filepath.Join(f.dir, "does-not-exist-either.json")

	_, err := f.service(nil).Deploy(context.Background())
	require.ErrorIs(t, err, ErrMissingCredential)
	assert.Empty(t, f.connector.calls)
}

func TestDeployChainNotFoundFailsBeforeConnecting(t *testing.T) {
	f := newFixture(t)
	f.cfg.Target.DescriptionMatch = "Base Sepolia"

	_, err := f.service(nil).Deploy(context.Background())
	require.ErrorIs(t, err, chains.ErrChainNotFound)
	assert.Empty(t, f.connector.calls)
	assert.Empty(t, f.network.deployArgs)
}

func TestDeployWithoutRecordFileStartsEmpty(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.Remove(f.cfg.RecordsFile))

	_, err := f.service(nil).Deploy(context.Background())

	// an empty record cannot provide the source sender, but loading itself must succeed
	require.ErrorIs(t, err, deployment.ErrSenderNotRecorded)
	assert.Len(t, f.network.deployArgs, 1)
	assert.Empty(t, f.network.transactions)
	assert.NoFileExists(t, f.cfg.RecordsFile)
}

func TestDeployMissingDependencyFailsBeforeRegistration(t *testing.T) {
	f := newFixture(t)
	f.write(t, f.cfg.RecordsFile, `{"fantom": {"MessageSender": "0x7777777777777777777777777777777777777777"}}`)

	_, err := f.service(nil).Deploy(context.Background())
	require.ErrorIs(t, err, deployment.ErrSenderNotRecorded)
	assert.Contains(t, err.Error(), "avalanche")

	assert.Len(t, f.network.deployArgs, 1, "the deployment already happened and is not rolled back")
	assert.Empty(t, f.network.transactions)
	assert.Equal(t, 1, f.network.closed)

	record := f.readRecord(t)
	assert.NotContains(t, record, "celo")
}

func TestDeployMalformedRecordIsFatal(t *testing.T) {
	f := newFixture(t)
	f.write(t, f.cfg.RecordsFile, `{"avalanche": `)

	_, err := f.service(nil).Deploy(context.Background())
	require.Error(t, err)
	assert.Empty(t, f.network.transactions)
}

func TestDeployRegistrationFailureDoesNotPersist(t *testing.T) {
	f := newFixture(t)
	f.network.transactErr = evm.ErrTransactionFailed

	_, err := f.service(nil).Deploy(context.Background())
	require.ErrorIs(t, err, evm.ErrTransactionFailed)

	assert.NotContains(t, f.readRecord(t), "celo")
	assert.Empty(t, f.network.watched)
}

func TestDeployNetworkErrorsPassThrough(t *testing.T) {
	dialErr := errors.New("dial tcp: connection refused")

	f := newFixture(t)
	f.connector.err = dialErr
	_, err := f.service(nil).Deploy(context.Background())
	require.ErrorIs(t, err, dialErr)

	f = newFixture(t)
	deployErr := errors.New("insufficient funds for gas * price + value")
	f.network.deployErr = deployErr
	_, err = f.service(nil).Deploy(context.Background())
	require.ErrorIs(t, err, deployErr)
	assert.Contains(t, err.Error(), deployErr.Error())
}

func TestDeployArtifactWithoutRegistrationMethod(t *testing.T) {
	f := newFixture(t)
	f.cfg.Registration.Method = "setPeer"

	_, err := f.service(nil).Deploy(context.Background())
	require.Error(t, err)
	assert.Empty(t, f.network.deployArgs)
}

func TestDeployTwiceOverwritesRecordEntry(t *testing.T) {
	f := newFixture(t)

	first, err := f.service(nil).Deploy(context.Background())
	require.NoError(t, err)
	second, err := f.service(nil).Deploy(context.Background())
	require.NoError(t, err)

	assert.Len(t, f.network.deployArgs, 2)
	assert.NotEqual(t, first.Address, second.Address)

	record := f.readRecord(t)
	assert.Len(t, record, 3)
	assert.Equal(t, second.Address.Hex(), record["celo"]["MessageReceiver"])
}

func TestDeployWithoutEvents(t *testing.T) {
	f := newFixture(t)
	f.cfg.Events = nil

	result, err := f.service(nil).Deploy(context.Background())
	require.NoError(t, err)
	assert.Nil(t, result.Subscription)
	assert.Empty(t, f.network.watched)

	result.Close()
	assert.Equal(t, 1, f.network.closed)
}

func TestOutputGeneratorWritesSummary(t *testing.T) {
	f := newFixture(t)
	path := filepath.Join(f.dir, "output.yaml")

	result, err := f.service(NewOutputGenerator(output.NewGenerator(path, fsjson.NewWriter()))).Deploy(context.Background())
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	model, err := output.Read(data)
	require.NoError(t, err)

	assert.Equal(t, configs.NetworkNameCelo, model.Network)
	assert.Equal(t, "https://celo.example", model.Chain.RPCURL)
	assert.Equal(t, result.Address.Hex(), model.Contract.Address)
	assert.Equal(t, "MessageReceiver", model.Contract.Name)
	assert.Equal(t, "2024-10-02T12:00:00.000Z", model.Contract.DeployedAt)
	assert.Equal(t, uint16(6), model.Registered.ChainID)
	assert.Equal(t, fujiSender.Hex(), model.Registered.Address)
}

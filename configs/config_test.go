package configs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg, err := DefaultConfig()
	require.NoError(t, err)

	d := cfg.Deployer
	assert.Equal(t, NetworkNameCelo, d.Target.Network)
	assert.Equal(t, "Celo Testnet", d.Target.DescriptionMatch)
	assert.Equal(t, NetworkNameAvalanche, d.Source.Network)
	assert.Equal(t, "MessageSender", d.Source.ContractName)
	assert.Equal(t, uint16(6), d.Source.ChainID)
	assert.Equal(t, "MessageReceiver", d.ContractName)
	assert.Equal(t, "setRegisteredSender", d.Registration.Method)
	assert.Equal(t, []string{"GameTransactionProcessed", "MessageReceived", "SourceChainLogged"}, d.Events)
	assert.Equal(t, 2*time.Minute, d.TxTimeout)
	assert.True(t, d.Watch)
	assert.Empty(t, d.PrivateKey)

	require.NoError(t, d.Validate())
	require.NoError(t, cfg.Log.Validate())
}

func TestDeployerValidate(t *testing.T) {
	t.Run("empty config reports every missing field", func(t *testing.T) {
		var d Deployer
		err := d.Validate()
		require.Error(t, err)
		for _, field := range []string{
			"deployer.chains-file",
			"deployer.artifact-file",
			"deployer.records-file",
			"deployer.contract-name",
			"deployer.target.network",
			"deployer.source.chain-id",
			"deployer.registration.method",
		} {
			assert.Contains(t, err.Error(), field)
		}
	})

	t.Run("source and target must differ", func(t *testing.T) {
		d := MustDefaultConfig().Deployer
		d.Source.Network = d.Target.Network
		err := d.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "must differ")
	})

	t.Run("watching needs a poll interval", func(t *testing.T) {
		d := MustDefaultConfig().Deployer
		d.PollInterval = 0
		require.Error(t, d.Validate())

		d.Watch = false
		require.NoError(t, d.Validate())
	})
}

func TestLogValidate(t *testing.T) {
	assert.NoError(t, (&Log{Format: LogFormatJSON}).Validate())
	assert.NoError(t, (&Log{}).Validate())
	assert.Error(t, (&Log{Format: "xml"}).Validate())
}

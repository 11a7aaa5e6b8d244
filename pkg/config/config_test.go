package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPrivateKey = "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func validBridgeConfig() *BridgeConfig {
	return &BridgeConfig{
		WalletId: "liquid",
		ChainID:  ChainId_AlgorandMainnet,
		Connector: ConnectorConfig{
			Type:        ConnectorType_LocalKey,
			PrivateKeys: []string{testPrivateKey},
		},
		Persistence: PersistenceConfig{Type: PersistenceType_Memory},
	}
}

func Test_ChainIdHex(t *testing.T) {
	assert.Equal(t, "0x1040", ChainId_AlgorandMainnet.Hex())
}

func Test_BridgeConfig_Validate(t *testing.T) {
	t.Run("valid config resolves network and defaults", func(t *testing.T) {
		cfg := validBridgeConfig()
		require.NoError(t, cfg.Validate())
		require.NotNil(t, cfg.Network)
		assert.Equal(t, "0x1040", cfg.Network.ChainId)
		assert.Equal(t, ChainGuardStrict, cfg.Connector.ChainGuardMode)
		assert.Equal(t, DefaultUnregisteredChainCodes, cfg.Connector.UnregisteredChainCodes)
		assert.Equal(t, "Liquid EVM", cfg.WalletLabel)
	})

	t.Run("unsupported chain", func(t *testing.T) {
		cfg := validBridgeConfig()
		cfg.ChainID = 1
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported chain ID")
	})

	t.Run("network override must match chain id", func(t *testing.T) {
		cfg := validBridgeConfig()
		cfg.Network = &NetworkDescriptor{ChainId: "0x1", ChainName: "x"}
		require.Error(t, cfg.Validate())
	})

	t.Run("empty wallet id", func(t *testing.T) {
		cfg := validBridgeConfig()
		cfg.WalletId = ""
		require.Error(t, cfg.Validate())
	})
}

func Test_ConnectorConfig_Validate(t *testing.T) {
	cases := []struct {
		name    string
		cfg     ConnectorConfig
		wantErr bool
	}{
		{"rpc ok", ConnectorConfig{Type: ConnectorType_RPC, RpcUrl: "http://localhost:8545"}, false},
		{"rpc missing url", ConnectorConfig{Type: ConnectorType_RPC}, true},
		{"local key ok", ConnectorConfig{Type: ConnectorType_LocalKey, PrivateKeys: []string{testPrivateKey}}, false},
		{"local key short", ConnectorConfig{Type: ConnectorType_LocalKey, PrivateKeys: []string{"0x01"}}, true},
		{"unknown type", ConnectorConfig{Type: "walletconnect"}, true},
		{"bad guard mode", ConnectorConfig{Type: ConnectorType_RPC, RpcUrl: "http://x", ChainGuardMode: "sometimes"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func Test_PersistenceConfig_Validate(t *testing.T) {
	assert.NoError(t, (&PersistenceConfig{Type: PersistenceType_Memory}).Validate())
	assert.Error(t, (&PersistenceConfig{Type: PersistenceType_Badger}).Validate())
	assert.NoError(t, (&PersistenceConfig{Type: PersistenceType_Badger, DataPath: "/tmp/x"}).Validate())
	assert.Error(t, (&PersistenceConfig{Type: PersistenceType_Redis}).Validate())
	assert.Error(t, (&PersistenceConfig{Type: PersistenceType_Redis, RedisAddress: "localhost:6379", RedisDB: 16}).Validate())
	assert.Error(t, (&PersistenceConfig{Type: "sqlite"}).Validate())
}

func Test_LoadBridgeConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.yaml")
	contents := `
walletId: liquid
chainId: 4161
connector:
  type: rpc
  name: MetaMask
  rpcUrl: http://localhost:8545
  chainGuardMode: soft
  unregisteredChainCodes: [4902]
persistence:
  type: badger
  dataPath: /tmp/liquid
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	cfg, err := LoadBridgeConfigFile(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ChainId_AlgorandTestnet, cfg.ChainID)
	assert.Equal(t, ChainGuardSoft, cfg.Connector.ChainGuardMode)
	assert.Equal(t, []int{4902}, cfg.Connector.UnregisteredChainCodes)
	assert.Equal(t, "MetaMask", cfg.Connector.Name)
	assert.Equal(t, "Algorand TestNet", cfg.Network.ChainName)

	_, err = LoadBridgeConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

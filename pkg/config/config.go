package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"gopkg.in/yaml.v3"
	"k8s.io/apimachinery/pkg/util/validation/field"
)

// Environment variable names for the signer CLI
const (
	EnvLiquidWalletID        = "LIQUID_WALLET_ID"
	EnvLiquidConfigFile      = "LIQUID_CONFIG_FILE"
	EnvLiquidChainID         = "LIQUID_CHAIN_ID"
	EnvLiquidConnector       = "LIQUID_CONNECTOR"
	EnvLiquidRPCURL          = "LIQUID_RPC_URL"
	EnvLiquidPrivateKey      = "LIQUID_PRIVATE_KEY"
	EnvLiquidPersistenceType = "LIQUID_PERSISTENCE_TYPE"
	EnvLiquidDataPath        = "LIQUID_DATA_PATH"
	EnvLiquidRedisAddress    = "LIQUID_REDIS_ADDRESS"
	EnvLiquidRedisPassword   = "LIQUID_REDIS_PASSWORD"
	EnvLiquidRedisDB         = "LIQUID_REDIS_DB"
	EnvLiquidAlgodURL        = "LIQUID_ALGOD_URL"
	EnvLiquidAlgodToken      = "LIQUID_ALGOD_TOKEN"
	EnvLiquidVerbose         = "LIQUID_VERBOSE"
)

// ChainId is the virtual EVM network id under which the target ledger is exposed to
// source-chain wallets.
type ChainId uint64

const (
	ChainId_AlgorandMainnet  ChainId = 4160
	ChainId_AlgorandTestnet  ChainId = 4161
	ChainId_AlgorandLocalnet ChainId = 4162
)

// Hex renders the id the way wallet_switchEthereumChain expects it.
func (c ChainId) Hex() string {
	return hexutil.EncodeUint64(uint64(c))
}

type ChainName string

const (
	ChainName_AlgorandMainnet  ChainName = "mainnet"
	ChainName_AlgorandTestnet  ChainName = "testnet"
	ChainName_AlgorandLocalnet ChainName = "localnet"
)

var ChainIdToName = map[ChainId]ChainName{
	ChainId_AlgorandMainnet:  ChainName_AlgorandMainnet,
	ChainId_AlgorandTestnet:  ChainName_AlgorandTestnet,
	ChainId_AlgorandLocalnet: ChainName_AlgorandLocalnet,
}
var ChainNameToId = map[ChainName]ChainId{
	ChainName_AlgorandMainnet:  ChainId_AlgorandMainnet,
	ChainName_AlgorandTestnet:  ChainId_AlgorandTestnet,
	ChainName_AlgorandLocalnet: ChainId_AlgorandLocalnet,
}

type NativeCurrency struct {
	Name     string `json:"name" yaml:"name"`
	Symbol   string `json:"symbol" yaml:"symbol"`
	Decimals int    `json:"decimals" yaml:"decimals"`
}

// NetworkDescriptor is the wallet_addEthereumChain parameter object.
type NetworkDescriptor struct {
	ChainId           string         `json:"chainId" yaml:"chainId"`
	ChainName         string         `json:"chainName" yaml:"chainName"`
	RpcUrls           []string       `json:"rpcUrls" yaml:"rpcUrls"`
	NativeCurrency    NativeCurrency `json:"nativeCurrency" yaml:"nativeCurrency"`
	BlockExplorerUrls []string       `json:"blockExplorerUrls" yaml:"blockExplorerUrls"`
}

var algoCurrency = NativeCurrency{Name: "Algorand", Symbol: "ALGO", Decimals: 18}

var NetworkDescriptors = map[ChainId]*NetworkDescriptor{
	ChainId_AlgorandMainnet: {
		ChainId:           ChainId_AlgorandMainnet.Hex(),
		ChainName:         "Algorand",
		RpcUrls:           []string{"https://mainnet-api.4160.nodely.dev"},
		NativeCurrency:    algoCurrency,
		BlockExplorerUrls: []string{"https://allo.info"},
	},
	ChainId_AlgorandTestnet: {
		ChainId:           ChainId_AlgorandTestnet.Hex(),
		ChainName:         "Algorand TestNet",
		RpcUrls:           []string{"https://testnet-api.4160.nodely.dev"},
		NativeCurrency:    algoCurrency,
		BlockExplorerUrls: []string{"https://testnet.allo.info"},
	},
	ChainId_AlgorandLocalnet: {
		ChainId:           ChainId_AlgorandLocalnet.Hex(),
		ChainName:         "Algorand LocalNet",
		RpcUrls:           []string{"http://localhost:4001"},
		NativeCurrency:    algoCurrency,
		BlockExplorerUrls: []string{"http://localhost:8080"},
	},
}

func GetNetworkDescriptorForChainId(chainId ChainId) (*NetworkDescriptor, error) {
	nd, ok := NetworkDescriptors[chainId]
	if !ok {
		return nil, fmt.Errorf("unsupported chain ID: %d", chainId)
	}
	cp := *nd
	return &cp, nil
}

// GetSupportedChainIDsString returns supported chain IDs as strings for CLI help
func GetSupportedChainIDsString() string {
	return fmt.Sprintf("%d (mainnet), %d (testnet), %d (localnet)",
		ChainId_AlgorandMainnet, ChainId_AlgorandTestnet, ChainId_AlgorandLocalnet)
}

// ChainGuardMode selects how strictly a connector enforces the target network before
// signing.
type ChainGuardMode string

const (
	// ChainGuardStrict reads the network id, switches, adds when unregistered and fails
	// on anything else.
	ChainGuardStrict ChainGuardMode = "strict"
	// ChainGuardSoft runs the strict protocol but only logs failures. Used by connectors
	// whose signing payload carries the chain id itself.
	ChainGuardSoft ChainGuardMode = "soft"
	// ChainGuardNone never touches the network.
	ChainGuardNone ChainGuardMode = "none"
)

type ConnectorType string

const (
	ConnectorType_RPC      ConnectorType = "rpc"
	ConnectorType_LocalKey ConnectorType = "localKey"
)

// DefaultUnregisteredChainCodes are the switch-network error codes that mean "add the
// network first": 4902 from extension wallets, -32603 from some mobile bridges.
var DefaultUnregisteredChainCodes = []int{4902, -32603}

type ConnectorConfig struct {
	Type ConnectorType `json:"type" yaml:"type"`
	Name string        `json:"name" yaml:"name"`
	Icon string        `json:"icon" yaml:"icon"`

	// rpc connector
	RpcUrl            string  `json:"rpcUrl" yaml:"rpcUrl"`
	RequestsPerSecond float64 `json:"requestsPerSecond" yaml:"requestsPerSecond"`

	// localKey connector, hex encoded secp256k1 keys
	PrivateKeys []string `json:"privateKeys" yaml:"privateKeys"`

	ChainGuardMode         ChainGuardMode `json:"chainGuardMode" yaml:"chainGuardMode"`
	UnregisteredChainCodes []int          `json:"unregisteredChainCodes" yaml:"unregisteredChainCodes"`

	// AlwaysRefreshMetadata makes session resume overwrite persisted accounts even when
	// the address set is unchanged.
	AlwaysRefreshMetadata bool `json:"alwaysRefreshMetadata" yaml:"alwaysRefreshMetadata"`
}

// ApplyDefaults fills zero-valued optional fields.
func (cc *ConnectorConfig) ApplyDefaults() {
	if cc.ChainGuardMode == "" {
		cc.ChainGuardMode = ChainGuardStrict
	}
	if len(cc.UnregisteredChainCodes) == 0 {
		cc.UnregisteredChainCodes = append([]int{}, DefaultUnregisteredChainCodes...)
	}
	if cc.Name == "" {
		cc.Name = string(cc.Type)
	}
}

func (cc *ConnectorConfig) Validate() error {
	var allErrors field.ErrorList
	switch cc.Type {
	case ConnectorType_RPC:
		if cc.RpcUrl == "" {
			allErrors = append(allErrors, field.Required(field.NewPath("rpcUrl"), "rpcUrl is required for rpc connectors"))
		}
		if cc.RequestsPerSecond < 0 {
			allErrors = append(allErrors, field.Invalid(field.NewPath("requestsPerSecond"), cc.RequestsPerSecond, "must not be negative"))
		}
	case ConnectorType_LocalKey:
		if len(cc.PrivateKeys) == 0 {
			allErrors = append(allErrors, field.Required(field.NewPath("privateKeys"), "at least one private key is required"))
		}
		for i, pk := range cc.PrivateKeys {
			if len(strings.TrimPrefix(pk, "0x")) != 64 {
				allErrors = append(allErrors, field.Invalid(field.NewPath("privateKeys").Index(i), "<redacted>", "must be 32 bytes hex encoded"))
			}
		}
	default:
		allErrors = append(allErrors, field.NotSupported(field.NewPath("type"), cc.Type,
			[]string{string(ConnectorType_RPC), string(ConnectorType_LocalKey)}))
	}

	switch cc.ChainGuardMode {
	case "", ChainGuardStrict, ChainGuardSoft, ChainGuardNone:
	default:
		allErrors = append(allErrors, field.NotSupported(field.NewPath("chainGuardMode"), cc.ChainGuardMode,
			[]string{string(ChainGuardStrict), string(ChainGuardSoft), string(ChainGuardNone)}))
	}

	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}

type PersistenceType string

const (
	PersistenceType_Memory PersistenceType = "memory"
	PersistenceType_Badger PersistenceType = "badger"
	PersistenceType_Redis  PersistenceType = "redis"
)

type PersistenceConfig struct {
	Type     PersistenceType `json:"type" yaml:"type"`
	DataPath string          `json:"dataPath" yaml:"dataPath"`

	RedisAddress   string `json:"redisAddress" yaml:"redisAddress"`
	RedisPassword  string `json:"redisPassword" yaml:"redisPassword"`
	RedisDB        int    `json:"redisDb" yaml:"redisDb"`
	RedisKeyPrefix string `json:"redisKeyPrefix" yaml:"redisKeyPrefix"`
}

func (pc *PersistenceConfig) Validate() error {
	var allErrors field.ErrorList
	switch pc.Type {
	case PersistenceType_Memory:
	case PersistenceType_Badger:
		if pc.DataPath == "" {
			allErrors = append(allErrors, field.Required(field.NewPath("dataPath"), "dataPath is required for badger persistence"))
		}
	case PersistenceType_Redis:
		if pc.RedisAddress == "" {
			allErrors = append(allErrors, field.Required(field.NewPath("redisAddress"), "redisAddress is required for redis persistence"))
		}
		if pc.RedisDB < 0 || pc.RedisDB > 15 {
			allErrors = append(allErrors, field.Invalid(field.NewPath("redisDb"), pc.RedisDB, "must be between 0-15"))
		}
	default:
		allErrors = append(allErrors, field.NotSupported(field.NewPath("type"), pc.Type,
			[]string{string(PersistenceType_Memory), string(PersistenceType_Badger), string(PersistenceType_Redis)}))
	}
	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}

type LedgerConfig struct {
	AlgodUrl   string `json:"algodUrl" yaml:"algodUrl"`
	AlgodToken string `json:"algodToken" yaml:"algodToken"`
}

// BridgeConfig represents the complete configuration of one wallet adapter instance
type BridgeConfig struct {
	WalletId    string  `json:"walletId" yaml:"walletId"`
	WalletLabel string  `json:"walletLabel" yaml:"walletLabel"`
	ChainID     ChainId `json:"chainId" yaml:"chainId"`

	// Network overrides the built-in descriptor for ChainID when set.
	Network *NetworkDescriptor `json:"network,omitempty" yaml:"network,omitempty"`

	Connector   ConnectorConfig   `json:"connector" yaml:"connector"`
	Persistence PersistenceConfig `json:"persistence" yaml:"persistence"`
	Ledger      LedgerConfig      `json:"ledger" yaml:"ledger"`

	Debug bool `json:"debug" yaml:"debug"`
}

// Validate validates the configuration and resolves the network descriptor
func (c *BridgeConfig) Validate() error {
	if c.WalletId == "" {
		return fmt.Errorf("wallet id cannot be empty")
	}
	if c.WalletLabel == "" {
		c.WalletLabel = "Liquid EVM"
	}

	if c.Network == nil {
		nd, err := GetNetworkDescriptorForChainId(c.ChainID)
		if err != nil {
			return fmt.Errorf("unsupported chain ID %d. Supported: %s", c.ChainID, GetSupportedChainIDsString())
		}
		c.Network = nd
	} else if c.Network.ChainId == "" {
		c.Network.ChainId = c.ChainID.Hex()
	} else if c.Network.ChainId != c.ChainID.Hex() {
		return fmt.Errorf("network descriptor chain id %s does not match chain id %s", c.Network.ChainId, c.ChainID.Hex())
	}

	c.Connector.ApplyDefaults()
	if err := c.Connector.Validate(); err != nil {
		return fmt.Errorf("invalid connector config: %w", err)
	}
	if err := c.Persistence.Validate(); err != nil {
		return fmt.Errorf("invalid persistence config: %w", err)
	}
	return nil
}

// LoadBridgeConfigFile reads a YAML bridge config. Flags applied afterwards take precedence.
func LoadBridgeConfigFile(path string) (*BridgeConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	var cfg BridgeConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return &cfg, nil
}

// IsSourceAddress reports whether s is a well formed EVM address.
func IsSourceAddress(s string) bool {
	return common.IsHexAddress(s)
}

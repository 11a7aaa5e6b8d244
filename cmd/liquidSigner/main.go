package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/Layr-Labs/liquid-signer-go/pkg/config"
	"github.com/Layr-Labs/liquid-signer-go/pkg/connector"
	"github.com/Layr-Labs/liquid-signer-go/pkg/logger"
	"github.com/Layr-Labs/liquid-signer-go/pkg/persistence/factory"
	"github.com/Layr-Labs/liquid-signer-go/pkg/txGroup"
	"github.com/Layr-Labs/liquid-signer-go/pkg/wallet"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "liquid-signer",
		Usage: "Sign Algorand transactions with an EVM key",
		Description: `Derives Algorand accounts from EVM addresses and signs Algorand transaction
groups with a single EIP-712 signature from the EVM wallet.

Sessions are persisted per wallet id, so accounts survive across invocations.`,
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "YAML bridge config file. Flags override values from the file",
				EnvVars: []string{config.EnvLiquidConfigFile},
			},
			&cli.StringFlag{
				Name:    "wallet-id",
				Usage:   "Wallet id the session is stored under",
				Value:   "liquid-evm",
				EnvVars: []string{config.EnvLiquidWalletID},
			},
			&cli.Uint64Flag{
				Name:    "chain-id",
				Aliases: []string{"chain"},
				Usage:   fmt.Sprintf("Virtual EVM chain ID of the target ledger: %s", config.GetSupportedChainIDsString()),
				Value:   uint64(config.ChainId_AlgorandTestnet),
				EnvVars: []string{config.EnvLiquidChainID},
			},
			&cli.StringFlag{
				Name:    "connector",
				Usage:   "Connector type (rpc, localKey)",
				Value:   string(config.ConnectorType_LocalKey),
				EnvVars: []string{config.EnvLiquidConnector},
			},
			&cli.StringFlag{
				Name:    "rpc-url",
				Aliases: []string{"rpc"},
				Usage:   "Wallet JSON-RPC endpoint for the rpc connector",
				EnvVars: []string{config.EnvLiquidRPCURL},
			},
			&cli.StringSliceFlag{
				Name:    "private-key",
				Usage:   "Hex encoded secp256k1 key for the localKey connector. Repeat for several accounts",
				EnvVars: []string{config.EnvLiquidPrivateKey},
			},
			&cli.StringFlag{
				Name:    "persistence",
				Usage:   "Session store (memory, badger, redis)",
				Value:   string(config.PersistenceType_Badger),
				EnvVars: []string{config.EnvLiquidPersistenceType},
			},
			&cli.StringFlag{
				Name:    "data-path",
				Usage:   "Badger data directory",
				Value:   "./.liquid-signer",
				EnvVars: []string{config.EnvLiquidDataPath},
			},
			&cli.StringFlag{
				Name:    "redis-address",
				Usage:   "Redis address (host:port)",
				EnvVars: []string{config.EnvLiquidRedisAddress},
			},
			&cli.StringFlag{
				Name:    "redis-password",
				Usage:   "Redis password",
				EnvVars: []string{config.EnvLiquidRedisPassword},
			},
			&cli.IntFlag{
				Name:    "redis-db",
				Usage:   "Redis database number",
				EnvVars: []string{config.EnvLiquidRedisDB},
			},
			&cli.StringFlag{
				Name:    "algod-url",
				Usage:   "algod endpoint used by --submit",
				EnvVars: []string{config.EnvLiquidAlgodURL},
			},
			&cli.StringFlag{
				Name:    "algod-token",
				Usage:   "algod API token",
				EnvVars: []string{config.EnvLiquidAlgodToken},
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Usage:   "Enable verbose logging",
				EnvVars: []string{config.EnvLiquidVerbose},
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "connect",
				Usage:  "Connect the wallet and derive its accounts",
				Action: connectCommand,
			},
			{
				Name:   "resume",
				Usage:  "Resume the stored session",
				Action: resumeCommand,
			},
			{
				Name:   "accounts",
				Usage:  "Print the stored accounts",
				Action: accountsCommand,
			},
			{
				Name:  "sign",
				Usage: "Sign a transaction group",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "input",
						Aliases:  []string{"i"},
						Usage:    "JSON file holding the group: base64 msgpack blobs or transaction objects",
						Required: true,
					},
					&cli.IntSliceFlag{
						Name:  "index",
						Usage: "Only sign these positions. Repeatable",
					},
					&cli.BoolFlag{
						Name:  "submit",
						Usage: "Submit the signed group to algod",
					},
				},
				Action: signCommand,
			},
			{
				Name:   "disconnect",
				Usage:  "Forget the stored session",
				Action: disconnectCommand,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

// parseBridgeConfig reads the config file when given and lays explicitly set flags over it.
func parseBridgeConfig(c *cli.Context) (*config.BridgeConfig, error) {
	cfg := &config.BridgeConfig{}
	if path := c.String("config"); path != "" {
		fileCfg, err := config.LoadBridgeConfigFile(path)
		if err != nil {
			return nil, err
		}
		cfg = fileCfg
	}

	override := func(name string, empty bool) bool {
		return c.IsSet(name) || empty
	}

	if override("wallet-id", cfg.WalletId == "") {
		cfg.WalletId = c.String("wallet-id")
	}
	if override("chain-id", cfg.ChainID == 0) {
		cfg.ChainID = config.ChainId(c.Uint64("chain-id"))
	}
	if override("connector", cfg.Connector.Type == "") {
		cfg.Connector.Type = config.ConnectorType(c.String("connector"))
	}
	if override("rpc-url", cfg.Connector.RpcUrl == "") {
		cfg.Connector.RpcUrl = c.String("rpc-url")
	}
	if override("private-key", len(cfg.Connector.PrivateKeys) == 0) {
		cfg.Connector.PrivateKeys = c.StringSlice("private-key")
	}
	if override("persistence", cfg.Persistence.Type == "") {
		cfg.Persistence.Type = config.PersistenceType(c.String("persistence"))
	}
	if override("data-path", cfg.Persistence.DataPath == "") {
		cfg.Persistence.DataPath = c.String("data-path")
	}
	if override("redis-address", cfg.Persistence.RedisAddress == "") {
		cfg.Persistence.RedisAddress = c.String("redis-address")
	}
	if override("redis-password", cfg.Persistence.RedisPassword == "") {
		cfg.Persistence.RedisPassword = c.String("redis-password")
	}
	if c.IsSet("redis-db") {
		cfg.Persistence.RedisDB = c.Int("redis-db")
	}
	if override("algod-url", cfg.Ledger.AlgodUrl == "") {
		cfg.Ledger.AlgodUrl = c.String("algod-url")
	}
	if override("algod-token", cfg.Ledger.AlgodToken == "") {
		cfg.Ledger.AlgodToken = c.String("algod-token")
	}
	if c.Bool("verbose") {
		cfg.Debug = true
	}
	return cfg, nil
}

// openWallet wires a wallet from flags. The returned cleanup closes the session store.
func openWallet(c *cli.Context) (*wallet.Wallet, func(), error) {
	cfg, err := parseBridgeConfig(c)
	if err != nil {
		return nil, nil, fmt.Errorf("configuration error: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}

	store, err := factory.NewSessionPersistence(&cfg.Persistence, l)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open session store: %w", err)
	}
	cleanup := func() {
		if err := store.Close(); err != nil {
			l.Sugar().Warnw("Failed to close session store", "error", err)
		}
		_ = l.Sync()
	}

	conn, err := connector.NewConnectorFromConfig(&cfg.Connector, l)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	hooks := wallet.UIHooks{
		OnConnect: func(ctx context.Context, sourceAddress string, targetAddress string) error {
			l.Sugar().Infow("Connected", "source", sourceAddress, "target", targetAddress)
			return nil
		},
		OnAfterSign: func(ctx context.Context, success bool, errorMessage string) error {
			if !success {
				l.Sugar().Warnw("Signing failed", "error", errorMessage)
			}
			return nil
		},
	}
	w, err := wallet.NewManager(store, hooks, l).NewWallet(cfg, conn)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	l.Sugar().Debugw("Wallet ready",
		"walletId", cfg.WalletId,
		"connector", cfg.Connector.Type,
		"persistence", cfg.Persistence.Type,
		"chainId", cfg.ChainID,
	)
	return w, cleanup, nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func connectCommand(c *cli.Context) error {
	w, cleanup, err := openWallet(c)
	if err != nil {
		return err
	}
	defer cleanup()

	accounts, err := w.Connect(c.Context)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	return printJSON(accounts)
}

func resumeCommand(c *cli.Context) error {
	w, cleanup, err := openWallet(c)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := w.ResumeSession(c.Context); err != nil {
		return fmt.Errorf("failed to resume session: %w", err)
	}
	accounts, err := w.Accounts()
	if err != nil {
		return err
	}
	return printJSON(accounts)
}

func accountsCommand(c *cli.Context) error {
	w, cleanup, err := openWallet(c)
	if err != nil {
		return err
	}
	defer cleanup()

	accounts, err := w.Accounts()
	if err != nil {
		return err
	}
	active, err := w.ActiveAccount()
	if err != nil {
		return err
	}
	return printJSON(map[string]interface{}{
		"accounts":      accounts,
		"activeAccount": active,
	})
}

func signCommand(c *cli.Context) error {
	data, err := os.ReadFile(c.String("input"))
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	group, err := txGroup.ParseJSON(data)
	if err != nil {
		return err
	}

	var indexFilter []int
	if c.IsSet("index") {
		indexFilter = c.IntSlice("index")
	}

	w, cleanup, err := openWallet(c)
	if err != nil {
		return err
	}
	defer cleanup()

	results, err := w.SignTransactions(c.Context, group, indexFilter)
	if err != nil {
		return fmt.Errorf("failed to sign: %w", err)
	}

	if c.Bool("submit") {
		txid, err := w.Submit(c.Context, results)
		if err != nil {
			return err
		}
		return printJSON(map[string]interface{}{
			"signed": txGroup.EncodeResults(results),
			"txId":   txid,
		})
	}
	return printJSON(txGroup.EncodeResults(results))
}

func disconnectCommand(c *cli.Context) error {
	w, cleanup, err := openWallet(c)
	if err != nil {
		return err
	}
	defer cleanup()

	return w.Disconnect(c.Context)
}

package rpcConnector

import (
	"context"
	"sync"

	"github.com/Layr-Labs/liquid-signer-go/pkg/bridgeErrors"
	"github.com/Layr-Labs/liquid-signer-go/pkg/config"
	"github.com/Layr-Labs/liquid-signer-go/pkg/provider"
	"github.com/Layr-Labs/liquid-signer-go/pkg/provider/rpcProvider"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"go.uber.org/zap"
)

type dialFunc func(ctx context.Context) (*rpcProvider.RpcProvider, error)

// RpcConnector reaches a remote source-chain wallet over JSON-RPC.
type RpcConnector struct {
	cfg *config.ConnectorConfig

	mu       sync.Mutex
	provider *rpcProvider.RpcProvider
	dial     dialFunc

	logger *zap.Logger
}

func NewRpcConnector(cfg *config.ConnectorConfig, logger *zap.Logger) *RpcConnector {
	return &RpcConnector{
		cfg: cfg,
		dial: func(ctx context.Context) (*rpcProvider.RpcProvider, error) {
			return rpcProvider.NewRpcProvider(ctx, cfg.RpcUrl, cfg.RequestsPerSecond, logger)
		},
		logger: logger,
	}
}

// NewRpcConnectorFromClient uses an already connected client instead of dialing cfg.RpcUrl.
func NewRpcConnectorFromClient(cfg *config.ConnectorConfig, client *rpc.Client, logger *zap.Logger) *RpcConnector {
	return &RpcConnector{
		cfg: cfg,
		dial: func(ctx context.Context) (*rpcProvider.RpcProvider, error) {
			return rpcProvider.NewRpcProviderFromClient(client, cfg.RequestsPerSecond, logger), nil
		},
		logger: logger,
	}
}

func (c *RpcConnector) Name() string {
	return c.cfg.Name
}

func (c *RpcConnector) Icon() string {
	return c.cfg.Icon
}

func (c *RpcConnector) InitializeProvider(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.provider != nil {
		return nil
	}
	p, err := c.dial(ctx)
	if err != nil {
		return bridgeErrors.Wrap(bridgeErrors.ErrProviderUnavailable, "initializeProvider", err)
	}
	c.provider = p
	c.logger.Sugar().Debugw("Initialized rpc provider", "connector", c.cfg.Name, "url", c.cfg.RpcUrl)
	return nil
}

func (c *RpcConnector) GetProvider(ctx context.Context) (provider.IProvider, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.provider == nil {
		return nil, bridgeErrors.Wrap(bridgeErrors.ErrProviderUnavailable, "getProvider", nil)
	}
	return c.provider, nil
}

func (c *RpcConnector) SignTypedData(ctx context.Context, typedData apitypes.TypedData, account string) ([]byte, error) {
	p, err := c.GetProvider(ctx)
	if err != nil {
		return nil, err
	}
	return provider.SignTypedDataV4(ctx, p, account, typedData)
}

func (c *RpcConnector) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.provider != nil {
		c.provider.Close()
		c.provider = nil
	}
}

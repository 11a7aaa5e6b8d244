package localKeyConnector

import (
	"context"
	"sync"

	"github.com/Layr-Labs/liquid-signer-go/pkg/bridgeErrors"
	"github.com/Layr-Labs/liquid-signer-go/pkg/config"
	"github.com/Layr-Labs/liquid-signer-go/pkg/provider"
	"github.com/Layr-Labs/liquid-signer-go/pkg/provider/inMemoryProvider"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"go.uber.org/zap"
)

// InitialChainId is the network a fresh local signer reports before the chain guard
// moves it to the target ledger.
const InitialChainId uint64 = 1

// LocalKeyConnector signs with keys held in process. It backs the CLI and development
// setups where no external wallet is available.
type LocalKeyConnector struct {
	cfg *config.ConnectorConfig

	mu       sync.Mutex
	provider *inMemoryProvider.InMemoryProvider

	logger *zap.Logger
}

func NewLocalKeyConnector(cfg *config.ConnectorConfig, logger *zap.Logger) *LocalKeyConnector {
	return &LocalKeyConnector{
		cfg:    cfg,
		logger: logger,
	}
}

func (c *LocalKeyConnector) Name() string {
	return c.cfg.Name
}

func (c *LocalKeyConnector) Icon() string {
	return c.cfg.Icon
}

func (c *LocalKeyConnector) InitializeProvider(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.provider != nil {
		return nil
	}
	p, err := inMemoryProvider.NewInMemoryProviderFromHex(c.cfg.PrivateKeys, InitialChainId, c.logger)
	if err != nil {
		return bridgeErrors.Wrap(bridgeErrors.ErrProviderUnavailable, "initializeProvider", err)
	}
	if len(c.cfg.UnregisteredChainCodes) > 0 {
		p.SetUnregisteredCode(c.cfg.UnregisteredChainCodes[0])
	}
	c.provider = p
	return nil
}

func (c *LocalKeyConnector) GetProvider(ctx context.Context) (provider.IProvider, error) {
	p, err := c.InMemoryProvider()
	if err != nil {
		return nil, err
	}
	return p, nil
}

// InMemoryProvider exposes the concrete provider, mainly for tests.
func (c *LocalKeyConnector) InMemoryProvider() (*inMemoryProvider.InMemoryProvider, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.provider == nil {
		return nil, bridgeErrors.Wrap(bridgeErrors.ErrProviderUnavailable, "getProvider", nil)
	}
	return c.provider, nil
}

func (c *LocalKeyConnector) SignTypedData(ctx context.Context, typedData apitypes.TypedData, account string) ([]byte, error) {
	p, err := c.GetProvider(ctx)
	if err != nil {
		return nil, err
	}
	return provider.SignTypedDataV4(ctx, p, account, typedData)
}

func (c *LocalKeyConnector) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.provider = nil
}

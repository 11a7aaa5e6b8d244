// Package connector defines the capability set every source-chain wallet backend provides
// and builds concrete backends from configuration.
package connector

import (
	"context"
	"fmt"

	"github.com/Layr-Labs/liquid-signer-go/pkg/config"
	"github.com/Layr-Labs/liquid-signer-go/pkg/connector/localKeyConnector"
	"github.com/Layr-Labs/liquid-signer-go/pkg/connector/rpcConnector"
	"github.com/Layr-Labs/liquid-signer-go/pkg/provider"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"go.uber.org/zap"
)

type IConnector interface {
	// Name and Icon are stamped on account metadata.
	Name() string
	Icon() string

	// InitializeProvider prepares the backend's provider. It is safe to call more than once.
	InitializeProvider(ctx context.Context) error

	// GetProvider returns the initialized provider or ErrProviderUnavailable.
	GetProvider(ctx context.Context) (provider.IProvider, error)

	// SignTypedData asks account to sign typedData and returns the 65 byte signature.
	SignTypedData(ctx context.Context, typedData apitypes.TypedData, account string) ([]byte, error)

	Close()
}

var (
	_ IConnector = (*rpcConnector.RpcConnector)(nil)
	_ IConnector = (*localKeyConnector.LocalKeyConnector)(nil)
)

// NewConnectorFromConfig builds the backend selected by cfg.Type.
func NewConnectorFromConfig(cfg *config.ConnectorConfig, logger *zap.Logger) (IConnector, error) {
	if cfg == nil {
		return nil, fmt.Errorf("connector config is required")
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid connector config: %w", err)
	}

	switch cfg.Type {
	case config.ConnectorType_RPC:
		return rpcConnector.NewRpcConnector(cfg, logger), nil
	case config.ConnectorType_LocalKey:
		return localKeyConnector.NewLocalKeyConnector(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unsupported connector type: %s", cfg.Type)
	}
}

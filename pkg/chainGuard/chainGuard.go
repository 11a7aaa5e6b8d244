// Package chainGuard makes sure a provider is on the target ledger's network before any
// signature is requested from it.
package chainGuard

import (
	"context"
	"fmt"
	"slices"

	"github.com/Layr-Labs/liquid-signer-go/pkg/bridgeErrors"
	"github.com/Layr-Labs/liquid-signer-go/pkg/config"
	"github.com/Layr-Labs/liquid-signer-go/pkg/provider"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"
)

type IChainGuard interface {
	Ensure(ctx context.Context, p provider.IProvider) error
}

type Config struct {
	// Network is sent verbatim with wallet_addEthereumChain.
	Network *config.NetworkDescriptor
	Mode    config.ChainGuardMode
	// UnregisteredCodes are the switch-network error codes answered with an add-network request.
	UnregisteredCodes []int
}

// NewChainGuard returns the guard variant selected by cfg.Mode.
func NewChainGuard(cfg *Config, logger *zap.Logger) (IChainGuard, error) {
	if cfg == nil {
		return nil, fmt.Errorf("chain guard config cannot be nil")
	}
	if cfg.Mode == config.ChainGuardNone {
		return &NoopGuard{}, nil
	}

	strict, err := NewStrictGuard(cfg.Network, cfg.UnregisteredCodes, logger)
	if err != nil {
		return nil, err
	}
	switch cfg.Mode {
	case "", config.ChainGuardStrict:
		return strict, nil
	case config.ChainGuardSoft:
		return &SoftGuard{inner: strict, logger: logger}, nil
	default:
		return nil, fmt.Errorf("unsupported chain guard mode: %s", cfg.Mode)
	}
}

// StrictGuard reads the current network, switches when it differs and adds the network
// when the switch fails with a code from the unregistered set.
type StrictGuard struct {
	network           *config.NetworkDescriptor
	targetChainId     uint64
	unregisteredCodes []int
	logger            *zap.Logger
}

func NewStrictGuard(network *config.NetworkDescriptor, unregisteredCodes []int, logger *zap.Logger) (*StrictGuard, error) {
	if network == nil {
		return nil, fmt.Errorf("network descriptor cannot be nil")
	}
	id, err := hexutil.DecodeUint64(network.ChainId)
	if err != nil {
		return nil, fmt.Errorf("invalid network chain id %q: %w", network.ChainId, err)
	}
	if len(unregisteredCodes) == 0 {
		unregisteredCodes = config.DefaultUnregisteredChainCodes
	}
	return &StrictGuard{
		network:           network,
		targetChainId:     id,
		unregisteredCodes: append([]int{}, unregisteredCodes...),
		logger:            logger,
	}, nil
}

func (g *StrictGuard) Ensure(ctx context.Context, p provider.IProvider) error {
	if p == nil {
		return bridgeErrors.Wrap(bridgeErrors.ErrProviderUnavailable, "ensureChain", nil)
	}

	current, err := provider.ChainId(ctx, p)
	if err != nil {
		return fmt.Errorf("failed to read current chain id: %w", bridgeErrors.FromProviderError(provider.MethodChainId, err))
	}
	if current == g.targetChainId {
		return nil
	}

	_, err = p.Request(ctx, provider.MethodSwitchChain, provider.SwitchChainParams{ChainId: g.network.ChainId})
	if err == nil {
		g.logger.Sugar().Debugw("Switched network", "from", current, "to", g.targetChainId)
		return nil
	}

	code, ok := bridgeErrors.ErrorCode(err)
	if !ok || !g.isUnregistered(code) {
		return bridgeErrors.FromProviderError(provider.MethodSwitchChain, err)
	}

	g.logger.Sugar().Infow("Network not registered with connector, adding it",
		"chainId", g.network.ChainId,
		"chainName", g.network.ChainName,
		"code", code,
	)
	if _, err := p.Request(ctx, provider.MethodAddChain, g.network); err != nil {
		err = bridgeErrors.FromProviderError(provider.MethodAddChain, err)
		return bridgeErrors.Wrap(bridgeErrors.ErrNetworkUnregistered, provider.MethodAddChain, err)
	}
	return nil
}

func (g *StrictGuard) isUnregistered(code int) bool {
	return slices.Contains(g.unregisteredCodes, code)
}

// SoftGuard runs the strict protocol and logs failures instead of returning them. It
// serves connectors whose signing payload already pins the chain id.
type SoftGuard struct {
	inner  *StrictGuard
	logger *zap.Logger
}

func (g *SoftGuard) Ensure(ctx context.Context, p provider.IProvider) error {
	if err := g.inner.Ensure(ctx, p); err != nil {
		g.logger.Sugar().Warnw("Chain guard failed, continuing", "error", err)
	}
	return nil
}

// NoopGuard never touches the provider.
type NoopGuard struct{}

func (g *NoopGuard) Ensure(ctx context.Context, p provider.IProvider) error {
	return nil
}

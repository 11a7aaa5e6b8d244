package addressBridge

import (
	"context"
	"fmt"
	"sync"

	"github.com/Layr-Labs/liquid-signer-go/pkg/types"
	"go.uber.org/zap"
)

// IAddressDeriver maps a source address to its target-ledger address.
type IAddressDeriver interface {
	DeriveAddress(ctx context.Context, sourceAddress string) (string, error)
}

// DeriverFunc hands out the deriver on first use so heavy SDK setup can stay lazy.
type DeriverFunc func(ctx context.Context) (IAddressDeriver, error)

// AccountOptions carries the display data stamped on derived accounts.
type AccountOptions struct {
	WalletLabel   string
	ConnectorName string
	ConnectorIcon string
}

// AddressBridge owns the target -> source address map of one wallet adapter.
// The map is only reachable through Derive, ReverseLookup, RebuildFrom and Clear.
type AddressBridge struct {
	mu sync.RWMutex

	targetToSource map[string]string
	getDeriver     DeriverFunc
	logger         *zap.Logger
}

func NewAddressBridge(getDeriver DeriverFunc, logger *zap.Logger) *AddressBridge {
	return &AddressBridge{
		targetToSource: make(map[string]string),
		getDeriver:     getDeriver,
		logger:         logger,
	}
}

// Derive derives one account per source address, in input order, and records every pair.
// Nothing is recorded unless all derivations succeed.
func (ab *AddressBridge) Derive(ctx context.Context, sourceAddresses []string, opts AccountOptions) ([]types.Account, error) {
	deriver, err := ab.getDeriver(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize address deriver: %w", err)
	}

	accounts := make([]types.Account, 0, len(sourceAddresses))
	for _, source := range sourceAddresses {
		target, err := deriver.DeriveAddress(ctx, source)
		if err != nil {
			return nil, fmt.Errorf("failed to derive target address for %s: %w", source, err)
		}
		accounts = append(accounts, types.Account{
			DisplayName:   displayName(opts.WalletLabel, source),
			TargetAddress: target,
			Metadata: types.AccountMetadata{
				SourceAddress: source,
				ConnectorName: opts.ConnectorName,
				ConnectorIcon: opts.ConnectorIcon,
			},
		})
	}

	ab.mu.Lock()
	for _, a := range accounts {
		ab.targetToSource[a.TargetAddress] = a.Metadata.SourceAddress
	}
	ab.mu.Unlock()

	return accounts, nil
}

func displayName(label, source string) string {
	if label == "" {
		return source
	}
	return fmt.Sprintf("%s (%s)", label, source)
}

// ReverseLookup returns the source address recorded for target.
func (ab *AddressBridge) ReverseLookup(target string) (string, bool) {
	ab.mu.RLock()
	defer ab.mu.RUnlock()

	source, ok := ab.targetToSource[target]
	return source, ok
}

// RebuildFrom replaces the map with the pairs recorded in persisted account metadata.
// Accounts without a source address are skipped. Returns the number of pairs restored.
func (ab *AddressBridge) RebuildFrom(accounts []types.Account) int {
	rebuilt := make(map[string]string, len(accounts))
	for _, a := range accounts {
		if a.Metadata.SourceAddress == "" || a.TargetAddress == "" {
			continue
		}
		rebuilt[a.TargetAddress] = a.Metadata.SourceAddress
	}

	ab.mu.Lock()
	ab.targetToSource = rebuilt
	ab.mu.Unlock()

	ab.logger.Sugar().Debugw("Rebuilt address map from persisted accounts",
		"accounts", len(accounts),
		"restored", len(rebuilt),
	)
	return len(rebuilt)
}

// Clear drops every mapping. Called on disconnect.
func (ab *AddressBridge) Clear() {
	ab.mu.Lock()
	defer ab.mu.Unlock()

	ab.targetToSource = make(map[string]string)
}

// Len returns the number of recorded pairs.
func (ab *AddressBridge) Len() int {
	ab.mu.RLock()
	defer ab.mu.RUnlock()

	return len(ab.targetToSource)
}

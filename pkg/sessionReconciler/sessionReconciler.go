// Package sessionReconciler restores a wallet's address map after a reload and decides
// whether the persisted session has to be rewritten.
package sessionReconciler

import (
	"context"
	"fmt"

	"github.com/Layr-Labs/liquid-signer-go/pkg/addressBridge"
	"github.com/Layr-Labs/liquid-signer-go/pkg/bridgeErrors"
	"github.com/Layr-Labs/liquid-signer-go/pkg/types"
	"go.uber.org/zap"
)

type IAddressBridge interface {
	Derive(ctx context.Context, sourceAddresses []string, opts addressBridge.AccountOptions) ([]types.Account, error)
	RebuildFrom(accounts []types.Account) int
}

type Config struct {
	AccountOptions addressBridge.AccountOptions
	// AlwaysRefreshMetadata rewrites the session on every resume, even when nothing changed.
	AlwaysRefreshMetadata bool
}

type SessionReconciler struct {
	bridge IAddressBridge
	config *Config
	logger *zap.Logger
}

func NewSessionReconciler(bridge IAddressBridge, cfg *Config, logger *zap.Logger) *SessionReconciler {
	if cfg == nil {
		cfg = &Config{}
	}
	return &SessionReconciler{
		bridge: bridge,
		config: cfg,
		logger: logger,
	}
}

// Rebuild restores the address map from persisted. A nil session leaves the map untouched.
func (r *SessionReconciler) Rebuild(persisted *types.SessionState) int {
	if persisted == nil {
		return 0
	}
	restored := r.bridge.RebuildFrom(persisted.Accounts)
	r.logger.Sugar().Infow("Restored address map from persisted session", "restored", restored)
	return restored
}

// Resume rebuilds the address map from persisted, derives accounts for the source
// addresses the connector reports now, and reports whether the store should be
// overwritten with them. A nil persisted session is a no-op.
func (r *SessionReconciler) Resume(
	ctx context.Context,
	currentSourceAddresses []string,
	persisted *types.SessionState,
) ([]types.Account, bool, error) {
	if persisted == nil {
		r.logger.Sugar().Debugw("No persisted session, nothing to resume")
		return nil, false, nil
	}

	r.Rebuild(persisted)

	if len(currentSourceAddresses) == 0 {
		return nil, false, bridgeErrors.Wrap(bridgeErrors.ErrNoAccountsFound, "resume", nil)
	}

	derived, err := r.bridge.Derive(ctx, currentSourceAddresses, r.config.AccountOptions)
	if err != nil {
		return nil, false, fmt.Errorf("failed to derive accounts on resume: %w", err)
	}

	if !sameAddressSet(derived, persisted.Accounts) {
		r.logger.Sugar().Warnw("Session accounts mismatch, refreshing persisted accounts",
			"persisted", persisted.TargetAddresses(),
			"current", targetAddresses(derived),
		)
		// drop pairs for accounts that are no longer connected
		r.bridge.RebuildFrom(derived)
		return derived, true, nil
	}
	if r.config.AlwaysRefreshMetadata {
		return derived, true, nil
	}
	if metadataChanged(derived, persisted.Accounts) {
		r.logger.Sugar().Infow("Account metadata changed, refreshing persisted accounts")
		return derived, true, nil
	}
	return derived, false, nil
}

func targetAddresses(accounts []types.Account) []string {
	out := make([]string, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, a.TargetAddress)
	}
	return out
}

func sameAddressSet(a, b []types.Account) bool {
	setA := make(map[string]struct{}, len(a))
	for _, acc := range a {
		setA[acc.TargetAddress] = struct{}{}
	}
	setB := make(map[string]struct{}, len(b))
	for _, acc := range b {
		setB[acc.TargetAddress] = struct{}{}
	}
	if len(setA) != len(setB) {
		return false
	}
	for addr := range setA {
		if _, ok := setB[addr]; !ok {
			return false
		}
	}
	return true
}

// metadataChanged assumes both slices hold the same address set.
func metadataChanged(derived, persisted []types.Account) bool {
	byTarget := make(map[string]types.Account, len(persisted))
	for _, a := range persisted {
		byTarget[a.TargetAddress] = a
	}
	for _, d := range derived {
		p := byTarget[d.TargetAddress]
		if p.DisplayName != d.DisplayName || p.Metadata != d.Metadata {
			return true
		}
	}
	return false
}

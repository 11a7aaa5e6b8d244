// Package signingOrchestrator signs the eligible positions of a transaction group with a
// single external signature request and returns a result for every position.
package signingOrchestrator

import (
	"context"
	"fmt"

	"github.com/Layr-Labs/liquid-signer-go/pkg/bridgeErrors"
	"github.com/Layr-Labs/liquid-signer-go/pkg/chainGuard"
	"github.com/Layr-Labs/liquid-signer-go/pkg/liquidAccounts"
	"github.com/Layr-Labs/liquid-signer-go/pkg/provider"
	"github.com/Layr-Labs/liquid-signer-go/pkg/txGroup"
	"github.com/Layr-Labs/liquid-signer-go/pkg/types"
	sdktypes "github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BeforeSignHook runs before the signature request. Returning an error aborts signing.
type BeforeSignHook func(ctx context.Context, txns []sdktypes.Transaction, indexFilter []int) error

// AfterSignHook reports the outcome. Its error is logged and dropped.
type AfterSignHook func(ctx context.Context, success bool, errorMessage string) error

type Hooks struct {
	BeforeSign BeforeSignHook
	AfterSign  AfterSignHook
}

type IAddressLookup interface {
	ReverseLookup(targetAddress string) (string, bool)
}

// RebuildFunc repopulates the address lookup from persisted account metadata.
type RebuildFunc func(ctx context.Context) error

// ISigner is the part of a connector the orchestrator needs.
type ISigner interface {
	GetProvider(ctx context.Context) (provider.IProvider, error)
	SignTypedData(ctx context.Context, typedData apitypes.TypedData, account string) ([]byte, error)
}

// SdkFunc returns the signing SDK, initializing it on first use.
type SdkFunc func(ctx context.Context) (liquidAccounts.ILiquidAccounts, error)

type Dependencies struct {
	Processor txGroup.ITransactionGroupProcessor
	Lookup    IAddressLookup
	Rebuild   RebuildFunc
	Guard     chainGuard.IChainGuard
	Signer    ISigner
	GetSdk    SdkFunc
}

type SigningOrchestrator struct {
	deps   *Dependencies
	logger *zap.Logger
}

func NewSigningOrchestrator(deps *Dependencies, logger *zap.Logger) (*SigningOrchestrator, error) {
	if deps == nil {
		return nil, fmt.Errorf("dependencies cannot be nil")
	}
	if deps.Processor == nil || deps.Lookup == nil || deps.Guard == nil || deps.Signer == nil || deps.GetSdk == nil {
		return nil, fmt.Errorf("processor, lookup, guard, signer and sdk are required")
	}
	return &SigningOrchestrator{deps: deps, logger: logger}, nil
}

// SignTransactions returns one entry per flattened position of group: an encoded signed
// transaction for every eligible position and nil elsewhere. ownedAddresses are the target
// addresses this wallet controls. On failure no partial result is returned.
func (o *SigningOrchestrator) SignTransactions(
	ctx context.Context,
	group txGroup.Group,
	ownedAddresses []string,
	indexFilter []int,
	hooks Hooks,
) ([][]byte, error) {
	batchId := uuid.New().String()
	log := o.logger.With(zap.String("batchId", batchId))

	results, err := o.signTransactions(ctx, log, group, ownedAddresses, indexFilter, hooks)
	if err != nil {
		log.Sugar().Errorw("Failed to sign transaction group", "error", err)
		o.afterSign(ctx, log, hooks, false, err.Error())
		return nil, err
	}
	if results.signed > 0 {
		o.afterSign(ctx, log, hooks, true, "")
	}
	return results.blobs, nil
}

type signResult struct {
	blobs  [][]byte
	signed int
}

func (o *SigningOrchestrator) signTransactions(
	ctx context.Context,
	log *zap.Logger,
	group txGroup.Group,
	ownedAddresses []string,
	indexFilter []int,
	hooks Hooks,
) (*signResult, error) {
	normalized, err := o.deps.Processor.Normalize(group)
	if err != nil {
		return nil, err
	}
	batch := o.deps.Processor.Classify(normalized, ownedAddresses, indexFilter)
	selected := batch.SelectedIndexes()

	if len(selected) == 0 {
		log.Sugar().Debugw("No eligible transactions, nothing to sign", "groupSize", batch.Len())
		return &signResult{blobs: make([][]byte, batch.Len())}, nil
	}

	source, err := o.resolveSigner(ctx, log, batch)
	if err != nil {
		return nil, err
	}

	txns := batch.Transactions()
	if hooks.BeforeSign != nil {
		if err := hooks.BeforeSign(ctx, txns, indexFilter); err != nil {
			return nil, fmt.Errorf("before sign hook failed: %w", err)
		}
	}

	p, err := o.deps.Signer.GetProvider(ctx)
	if err != nil {
		return nil, err
	}
	if err := o.deps.Guard.Ensure(ctx, p); err != nil {
		return nil, err
	}

	sdk, err := o.deps.GetSdk(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize signing sdk: %w", err)
	}

	log.Sugar().Infow("Requesting batched signature",
		"source", source,
		"groupSize", len(txns),
		"selected", selected,
	)
	signFn := func(ctx context.Context, typedData apitypes.TypedData) ([]byte, error) {
		return o.deps.Signer.SignTypedData(ctx, typedData, source)
	}
	signed, err := sdk.SignTransactions(ctx, source, txns, selected, signFn)
	if err != nil {
		return nil, bridgeErrors.FromProviderError("signTransactions", err)
	}
	if len(signed) != len(selected) {
		return nil, fmt.Errorf("signer returned %d transactions for %d selected", len(signed), len(selected))
	}

	blobs := make([][]byte, batch.Len())
	next := 0
	for _, e := range batch.Entries {
		if !e.EligibleForSignature {
			continue
		}
		blobs[e.OriginalIndex] = signed[next]
		next++
	}
	return &signResult{blobs: blobs, signed: len(signed)}, nil
}

// resolveSigner maps the first eligible sender to its source address and requires every
// other eligible sender to map to the same one.
func (o *SigningOrchestrator) resolveSigner(ctx context.Context, log *zap.Logger, batch *types.SigningBatch) (string, error) {
	first, _ := batch.FirstEligible()
	source, err := o.lookup(ctx, log, first.Decoded.Sender.String())
	if err != nil {
		return "", err
	}

	for _, e := range batch.Entries {
		if !e.EligibleForSignature || e.OriginalIndex == first.OriginalIndex {
			continue
		}
		other, err := o.lookup(ctx, log, e.Decoded.Sender.String())
		if err != nil {
			return "", err
		}
		if other != source {
			return "", bridgeErrors.Wrap(bridgeErrors.ErrMultipleSigners, "resolveSigner",
				fmt.Errorf("positions %d and %d resolve to %s and %s", first.OriginalIndex, e.OriginalIndex, source, other))
		}
	}
	return source, nil
}

func (o *SigningOrchestrator) lookup(ctx context.Context, log *zap.Logger, target string) (string, error) {
	if source, ok := o.deps.Lookup.ReverseLookup(target); ok {
		return source, nil
	}
	if o.deps.Rebuild != nil {
		log.Sugar().Infow("Address map miss, rebuilding from persisted session", "target", target)
		if err := o.deps.Rebuild(ctx); err != nil {
			return "", fmt.Errorf("failed to rebuild address map: %w", err)
		}
		if source, ok := o.deps.Lookup.ReverseLookup(target); ok {
			return source, nil
		}
	}
	return "", bridgeErrors.Wrap(bridgeErrors.ErrNoSourceAddressMapping, "resolveSigner", fmt.Errorf("target %s", target))
}

func (o *SigningOrchestrator) afterSign(ctx context.Context, log *zap.Logger, hooks Hooks, success bool, message string) {
	if hooks.AfterSign == nil {
		return
	}
	if err := hooks.AfterSign(ctx, success, message); err != nil {
		log.Sugar().Warnw("After sign hook failed", "error", err)
	}
}

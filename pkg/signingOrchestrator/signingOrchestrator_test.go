package signingOrchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/Layr-Labs/liquid-signer-go/pkg/addressBridge"
	"github.com/Layr-Labs/liquid-signer-go/pkg/bridgeErrors"
	"github.com/Layr-Labs/liquid-signer-go/pkg/chainGuard"
	"github.com/Layr-Labs/liquid-signer-go/pkg/config"
	"github.com/Layr-Labs/liquid-signer-go/pkg/connector/localKeyConnector"
	"github.com/Layr-Labs/liquid-signer-go/pkg/liquidAccounts"
	"github.com/Layr-Labs/liquid-signer-go/pkg/provider"
	"github.com/Layr-Labs/liquid-signer-go/pkg/txGroup"
	"github.com/Layr-Labs/liquid-signer-go/pkg/types"
	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/encoding/msgpack"
	sdktypes "github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const (
	keyA    = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	sourceA = "0x2c7536E3605D9C16a7a3D7b1898e529396a65c23"
	keyB    = "8da4ef21b864d2cc526dbdb2a120bd2874c36c9d0a1fb7f8c63d7f7a8b41de8f"
)

type harness struct {
	orchestrator *SigningOrchestrator
	bridge       *addressBridge.AddressBridge
	connector    *localKeyConnector.LocalKeyConnector
	sdk          *liquidAccounts.LiquidAccounts
	accounts     []types.Account
	rebuilds     int
	persisted    []types.Account
}

func newHarness(t *testing.T, keys ...string) *harness {
	t.Helper()
	ctx := context.Background()
	logger := zaptest.NewLogger(t)

	sdk, err := liquidAccounts.New(&liquidAccounts.Config{ChainId: uint64(config.ChainId_AlgorandTestnet)}, logger)
	require.NoError(t, err)

	conn := localKeyConnector.NewLocalKeyConnector(&config.ConnectorConfig{
		Type:        config.ConnectorType_LocalKey,
		Name:        "local",
		PrivateKeys: keys,
	}, logger)
	require.NoError(t, conn.InitializeProvider(ctx))

	bridge := addressBridge.NewAddressBridge(func(context.Context) (addressBridge.IAddressDeriver, error) {
		return sdk, nil
	}, logger)

	p, err := conn.GetProvider(ctx)
	require.NoError(t, err)
	sources, err := provider.Accounts(ctx, p, true)
	require.NoError(t, err)
	accounts, err := bridge.Derive(ctx, sources, addressBridge.AccountOptions{WalletLabel: "Liquid EVM", ConnectorName: "local"})
	require.NoError(t, err)

	nd, err := config.GetNetworkDescriptorForChainId(config.ChainId_AlgorandTestnet)
	require.NoError(t, err)
	guard, err := chainGuard.NewChainGuard(&chainGuard.Config{Network: nd, Mode: config.ChainGuardStrict}, logger)
	require.NoError(t, err)

	h := &harness{bridge: bridge, connector: conn, sdk: sdk, accounts: accounts, persisted: accounts}
	h.orchestrator, err = NewSigningOrchestrator(&Dependencies{
		Processor: txGroup.NewProcessor(logger),
		Lookup:    bridge,
		Rebuild: func(ctx context.Context) error {
			h.rebuilds++
			bridge.RebuildFrom(h.persisted)
			return nil
		},
		Guard:  guard,
		Signer: conn,
		GetSdk: func(context.Context) (liquidAccounts.ILiquidAccounts, error) { return sdk, nil },
	}, logger)
	require.NoError(t, err)
	return h
}

func (h *harness) owned() []string {
	out := make([]string, 0, len(h.accounts))
	for _, a := range h.accounts {
		out = append(out, a.TargetAddress)
	}
	return out
}

func (h *harness) signCalls(t *testing.T) int {
	t.Helper()
	p, err := h.connector.InMemoryProvider()
	require.NoError(t, err)
	n := 0
	for _, c := range p.Calls() {
		if c == provider.MethodSignTypedDataV4 {
			n++
		}
	}
	return n
}

func payment(t *testing.T, sender string, amount uint64) sdktypes.Transaction {
	t.Helper()
	addr, err := sdktypes.DecodeAddress(sender)
	require.NoError(t, err)
	return sdktypes.Transaction{
		Type: sdktypes.PaymentTx,
		Header: sdktypes.Header{
			Sender:     addr,
			Fee:        1000,
			FirstValid: 1,
			LastValid:  1000,
			GenesisID:  "testnet-v1.0",
		},
		PaymentTxnFields: sdktypes.PaymentTxnFields{
			Receiver: addr,
			Amount:   sdktypes.MicroAlgos(amount),
		},
	}
}

func Test_SignTransactions(t *testing.T) {
	ctx := context.Background()
	other := crypto.GenerateAccount().Address.String()

	t.Run("mixed owner group signs owned positions only", func(t *testing.T) {
		h := newHarness(t, keyA)
		mine := h.accounts[0].TargetAddress
		group := txGroup.StructuredFlat([]sdktypes.Transaction{
			payment(t, mine, 1),
			payment(t, other, 2),
			payment(t, mine, 3),
		})

		var afterCalls []bool
		hooks := Hooks{
			AfterSign: func(ctx context.Context, success bool, msg string) error {
				afterCalls = append(afterCalls, success)
				return errors.New("hook exploded")
			},
		}

		out, err := h.orchestrator.SignTransactions(ctx, group, h.owned(), nil, hooks)
		require.NoError(t, err)
		require.Len(t, out, 3)
		assert.NotNil(t, out[0])
		assert.Nil(t, out[1])
		assert.NotNil(t, out[2])
		assert.Equal(t, 1, h.signCalls(t))
		assert.Equal(t, []bool{true}, afterCalls)

		for i, blob := range [][]byte{out[0], out[2]} {
			var stx sdktypes.SignedTxn
			require.NoError(t, msgpack.Decode(blob, &stx))
			assert.Equal(t, mine, stx.Txn.Sender.String())
			assert.Equal(t, sdktypes.MicroAlgos(1+2*i), stx.Txn.Amount)
			assert.NotEmpty(t, stx.Lsig.Logic)
			require.Len(t, stx.Lsig.Args, 2)
		}
	})

	t.Run("zero eligible makes no external call", func(t *testing.T) {
		h := newHarness(t, keyA)
		group := txGroup.StructuredFlat([]sdktypes.Transaction{
			payment(t, other, 1),
			payment(t, other, 2),
		})

		p, err := h.connector.InMemoryProvider()
		require.NoError(t, err)
		callsBefore := len(p.Calls())

		beforeCalled := false
		hooks := Hooks{BeforeSign: func(context.Context, []sdktypes.Transaction, []int) error {
			beforeCalled = true
			return nil
		}}

		out, err := h.orchestrator.SignTransactions(ctx, group, h.owned(), nil, hooks)
		require.NoError(t, err)
		assert.Equal(t, [][]byte{nil, nil}, out)
		assert.False(t, beforeCalled)
		assert.Len(t, p.Calls(), callsBefore)
	})

	t.Run("index filter limits signed positions", func(t *testing.T) {
		h := newHarness(t, keyA)
		mine := h.accounts[0].TargetAddress
		group := txGroup.StructuredFlat([]sdktypes.Transaction{
			payment(t, mine, 1),
			payment(t, mine, 2),
		})

		var seenFilter []int
		var seenTxns int
		hooks := Hooks{BeforeSign: func(ctx context.Context, txns []sdktypes.Transaction, filter []int) error {
			seenTxns = len(txns)
			seenFilter = filter
			return nil
		}}

		out, err := h.orchestrator.SignTransactions(ctx, group, h.owned(), []int{1}, hooks)
		require.NoError(t, err)
		assert.Nil(t, out[0])
		assert.NotNil(t, out[1])
		assert.Equal(t, 2, seenTxns)
		assert.Equal(t, []int{1}, seenFilter)
	})

	t.Run("user rejection is all or nothing", func(t *testing.T) {
		h := newHarness(t, keyA)
		p, err := h.connector.InMemoryProvider()
		require.NoError(t, err)
		p.SetRejectSigning(true)

		var messages []string
		hooks := Hooks{AfterSign: func(ctx context.Context, success bool, msg string) error {
			assert.False(t, success)
			messages = append(messages, msg)
			return nil
		}}

		mine := h.accounts[0].TargetAddress
		out, err := h.orchestrator.SignTransactions(ctx, txGroup.StructuredFlat([]sdktypes.Transaction{payment(t, mine, 1)}), h.owned(), nil, hooks)
		require.Error(t, err)
		assert.Nil(t, out)
		assert.True(t, errors.Is(err, bridgeErrors.ErrUserRejected))
		require.Len(t, messages, 1)
		assert.Equal(t, err.Error(), messages[0])
	})

	t.Run("before hook failure aborts before signing", func(t *testing.T) {
		h := newHarness(t, keyA)
		mine := h.accounts[0].TargetAddress

		afterCalled := false
		hooks := Hooks{
			BeforeSign: func(context.Context, []sdktypes.Transaction, []int) error {
				return errors.New("user closed the dialog")
			},
			AfterSign: func(ctx context.Context, success bool, msg string) error {
				afterCalled = true
				return nil
			},
		}
		_, err := h.orchestrator.SignTransactions(ctx, txGroup.StructuredFlat([]sdktypes.Transaction{payment(t, mine, 1)}), h.owned(), nil, hooks)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "user closed the dialog")
		assert.True(t, afterCalled)
		assert.Equal(t, 0, h.signCalls(t))
	})

	t.Run("two distinct signers are rejected", func(t *testing.T) {
		h := newHarness(t, keyA, keyB)
		require.Len(t, h.accounts, 2)
		group := txGroup.StructuredFlat([]sdktypes.Transaction{
			payment(t, h.accounts[0].TargetAddress, 1),
			payment(t, h.accounts[1].TargetAddress, 2),
		})

		_, err := h.orchestrator.SignTransactions(ctx, group, h.owned(), nil, Hooks{})
		assert.True(t, errors.Is(err, bridgeErrors.ErrMultipleSigners))
		assert.Equal(t, 0, h.signCalls(t))
	})

	t.Run("lookup miss falls back to persisted session", func(t *testing.T) {
		h := newHarness(t, keyA)
		h.bridge.Clear()
		mine := h.accounts[0].TargetAddress

		out, err := h.orchestrator.SignTransactions(ctx, txGroup.StructuredFlat([]sdktypes.Transaction{payment(t, mine, 1)}), h.owned(), nil, Hooks{})
		require.NoError(t, err)
		assert.NotNil(t, out[0])
		assert.Equal(t, 1, h.rebuilds)

		source, ok := h.bridge.ReverseLookup(mine)
		require.True(t, ok)
		assert.Equal(t, sourceA, source)
	})

	t.Run("lookup miss without persisted session fails", func(t *testing.T) {
		h := newHarness(t, keyA)
		h.bridge.Clear()
		h.persisted = nil
		mine := h.accounts[0].TargetAddress

		_, err := h.orchestrator.SignTransactions(ctx, txGroup.StructuredFlat([]sdktypes.Transaction{payment(t, mine, 1)}), h.owned(), nil, Hooks{})
		assert.True(t, errors.Is(err, bridgeErrors.ErrNoSourceAddressMapping))
	})

	t.Run("encoded signed entries are skipped", func(t *testing.T) {
		h := newHarness(t, keyA)
		mine := h.accounts[0].TargetAddress

		first, err := h.orchestrator.SignTransactions(ctx, txGroup.StructuredFlat([]sdktypes.Transaction{payment(t, mine, 1)}), h.owned(), nil, Hooks{})
		require.NoError(t, err)

		group := txGroup.EncodedFlat([][]byte{first[0], msgpack.Encode(payment(t, mine, 2))})
		out, err := h.orchestrator.SignTransactions(ctx, group, h.owned(), nil, Hooks{})
		require.NoError(t, err)
		assert.Nil(t, out[0])
		assert.NotNil(t, out[1])
	})
}

func Test_NewSigningOrchestrator(t *testing.T) {
	_, err := NewSigningOrchestrator(nil, zaptest.NewLogger(t))
	assert.Error(t, err)

	_, err = NewSigningOrchestrator(&Dependencies{}, zaptest.NewLogger(t))
	assert.Error(t, err)
}

package sessionReconciler

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Layr-Labs/liquid-signer-go/pkg/addressBridge"
	"github.com/Layr-Labs/liquid-signer-go/pkg/bridgeErrors"
	"github.com/Layr-Labs/liquid-signer-go/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const (
	sourceA = "0xAaAaaAAaAaaAaaAAAaaAaaaAAaAaAAAaAAaAAaaA"
	sourceB = "0xBbbBbbbbBbBbbbbbBBbbBbbbBbbBBbBBBbbbBbBb"
)

type prefixDeriver struct{}

func (prefixDeriver) DeriveAddress(ctx context.Context, source string) (string, error) {
	return "T-" + strings.ToLower(source), nil
}

func newReconciler(t *testing.T, cfg *Config) (*SessionReconciler, *addressBridge.AddressBridge) {
	t.Helper()
	bridge := addressBridge.NewAddressBridge(func(context.Context) (addressBridge.IAddressDeriver, error) {
		return prefixDeriver{}, nil
	}, zaptest.NewLogger(t))
	return NewSessionReconciler(bridge, cfg, zaptest.NewLogger(t)), bridge
}

func persistedSession(t *testing.T, opts addressBridge.AccountOptions, sources ...string) *types.SessionState {
	t.Helper()
	bridge := addressBridge.NewAddressBridge(func(context.Context) (addressBridge.IAddressDeriver, error) {
		return prefixDeriver{}, nil
	}, zaptest.NewLogger(t))
	accounts, err := bridge.Derive(context.Background(), sources, opts)
	require.NoError(t, err)
	return &types.SessionState{Accounts: accounts, ActiveAccount: &accounts[0]}
}

func Test_Resume(t *testing.T) {
	ctx := context.Background()
	opts := addressBridge.AccountOptions{WalletLabel: "Liquid EVM", ConnectorName: "MetaMask"}

	t.Run("no persisted session is a no-op", func(t *testing.T) {
		r, bridge := newReconciler(t, &Config{AccountOptions: opts})
		accounts, shouldPersist, err := r.Resume(ctx, []string{sourceA}, nil)
		require.NoError(t, err)
		assert.Nil(t, accounts)
		assert.False(t, shouldPersist)
		assert.Equal(t, 0, bridge.Len())
	})

	t.Run("unchanged session does not persist", func(t *testing.T) {
		r, bridge := newReconciler(t, &Config{AccountOptions: opts})
		persisted := persistedSession(t, opts, sourceA, sourceB)

		accounts, shouldPersist, err := r.Resume(ctx, []string{sourceB, sourceA}, persisted)
		require.NoError(t, err)
		assert.False(t, shouldPersist)
		require.Len(t, accounts, 2)
		assert.Equal(t, sourceB, accounts[0].Metadata.SourceAddress)

		source, ok := bridge.ReverseLookup(persisted.Accounts[0].TargetAddress)
		require.True(t, ok)
		assert.Equal(t, sourceA, source)
	})

	t.Run("connector name change forces refresh", func(t *testing.T) {
		r, _ := newReconciler(t, &Config{AccountOptions: addressBridge.AccountOptions{
			WalletLabel:   "Liquid EVM",
			ConnectorName: "Rainbow",
		}})
		persisted := persistedSession(t, opts, sourceA)

		accounts, shouldPersist, err := r.Resume(ctx, []string{sourceA}, persisted)
		require.NoError(t, err)
		assert.True(t, shouldPersist)
		assert.Equal(t, "Rainbow", accounts[0].Metadata.ConnectorName)
	})

	t.Run("always refresh persists unchanged sessions", func(t *testing.T) {
		r, _ := newReconciler(t, &Config{AccountOptions: opts, AlwaysRefreshMetadata: true})
		_, shouldPersist, err := r.Resume(ctx, []string{sourceA}, persistedSession(t, opts, sourceA))
		require.NoError(t, err)
		assert.True(t, shouldPersist)
	})

	t.Run("address mismatch persists fresh accounts", func(t *testing.T) {
		r, bridge := newReconciler(t, &Config{AccountOptions: opts})
		persisted := persistedSession(t, opts, sourceA)

		accounts, shouldPersist, err := r.Resume(ctx, []string{sourceA, sourceB}, persisted)
		require.NoError(t, err)
		assert.True(t, shouldPersist)
		assert.Len(t, accounts, 2)
		assert.Equal(t, 2, bridge.Len())
	})

	t.Run("disconnected accounts leave the address map", func(t *testing.T) {
		r, bridge := newReconciler(t, &Config{AccountOptions: opts})
		persisted := persistedSession(t, opts, sourceA, sourceB)

		accounts, shouldPersist, err := r.Resume(ctx, []string{sourceA}, persisted)
		require.NoError(t, err)
		assert.True(t, shouldPersist)
		require.Len(t, accounts, 1)
		assert.Equal(t, 1, bridge.Len())

		_, ok := bridge.ReverseLookup(persisted.Accounts[1].TargetAddress)
		assert.False(t, ok)
		source, ok := bridge.ReverseLookup(accounts[0].TargetAddress)
		assert.True(t, ok)
		assert.Equal(t, sourceA, source)
	})

	t.Run("accounts without source metadata are skipped on rebuild", func(t *testing.T) {
		r, bridge := newReconciler(t, &Config{AccountOptions: opts})
		persisted := persistedSession(t, opts, sourceA)
		persisted.Accounts = append(persisted.Accounts, types.Account{TargetAddress: "T-orphan"})

		assert.Equal(t, 1, r.Rebuild(persisted))
		_, ok := bridge.ReverseLookup("T-orphan")
		assert.False(t, ok)
	})

	t.Run("no current accounts is fatal", func(t *testing.T) {
		r, _ := newReconciler(t, &Config{AccountOptions: opts})
		_, _, err := r.Resume(ctx, nil, persistedSession(t, opts, sourceA))
		assert.True(t, errors.Is(err, bridgeErrors.ErrNoAccountsFound))
	})
}

package addressBridge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/Layr-Labs/liquid-signer-go/pkg/liquidAccounts"
	"github.com/Layr-Labs/liquid-signer-go/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const (
	sourceA = "0xAaAaaAAaAaaAaaAAAaaAaaaAAaAaAAAaAAaAAaaA"
	sourceB = "0xBbbBbbbbBbBbbbbbBBbbBbbbBbbBBbBBBbbbBbBb"
)

type countingDeriver struct {
	calls  int
	failOn string
}

func (d *countingDeriver) DeriveAddress(ctx context.Context, source string) (string, error) {
	d.calls++
	if source == d.failOn {
		return "", errors.New("derivation failed")
	}
	return "T-" + strings.ToLower(source), nil
}

func staticDeriver(d IAddressDeriver) DeriverFunc {
	return func(context.Context) (IAddressDeriver, error) { return d, nil }
}

func Test_Derive(t *testing.T) {
	ctx := context.Background()
	d := &countingDeriver{}
	ab := NewAddressBridge(staticDeriver(d), zaptest.NewLogger(t))

	accounts, err := ab.Derive(ctx, []string{sourceA, sourceB}, AccountOptions{
		WalletLabel:   "Liquid EVM",
		ConnectorName: "MetaMask",
		ConnectorIcon: "data:image/svg+xml;base64,AAA",
	})
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, 2, d.calls)

	assert.Equal(t, sourceA, accounts[0].Metadata.SourceAddress)
	assert.Equal(t, sourceB, accounts[1].Metadata.SourceAddress)
	assert.Equal(t, "MetaMask", accounts[0].Metadata.ConnectorName)
	assert.Equal(t, fmt.Sprintf("Liquid EVM (%s)", sourceA), accounts[0].DisplayName)

	for _, a := range accounts {
		source, ok := ab.ReverseLookup(a.TargetAddress)
		require.True(t, ok)
		assert.Equal(t, a.Metadata.SourceAddress, source)
	}
}

func Test_Derive_Idempotent(t *testing.T) {
	ctx := context.Background()
	ab := NewAddressBridge(staticDeriver(&countingDeriver{}), zaptest.NewLogger(t))

	first, err := ab.Derive(ctx, []string{sourceA}, AccountOptions{})
	require.NoError(t, err)
	second, err := ab.Derive(ctx, []string{sourceA, sourceA}, AccountOptions{})
	require.NoError(t, err)

	assert.Equal(t, first[0].TargetAddress, second[0].TargetAddress)
	assert.Equal(t, second[0].TargetAddress, second[1].TargetAddress)
	assert.Equal(t, 1, ab.Len())
	assert.Equal(t, sourceA, first[0].DisplayName, "no label falls back to source address")
}

func Test_Derive_AllOrNothing(t *testing.T) {
	ctx := context.Background()
	ab := NewAddressBridge(staticDeriver(&countingDeriver{failOn: sourceB}), zaptest.NewLogger(t))

	_, err := ab.Derive(ctx, []string{sourceA, sourceB}, AccountOptions{})
	require.Error(t, err)
	assert.Equal(t, 0, ab.Len())
}

func Test_Derive_DeriverInitFailure(t *testing.T) {
	boom := errors.New("sdk init failed")
	ab := NewAddressBridge(func(context.Context) (IAddressDeriver, error) { return nil, boom }, zaptest.NewLogger(t))

	_, err := ab.Derive(context.Background(), []string{sourceA}, AccountOptions{})
	assert.ErrorIs(t, err, boom)
}

func Test_RebuildFrom(t *testing.T) {
	ab := NewAddressBridge(staticDeriver(&countingDeriver{}), zaptest.NewLogger(t))
	_, err := ab.Derive(context.Background(), []string{sourceA}, AccountOptions{})
	require.NoError(t, err)

	restored := ab.RebuildFrom([]types.Account{
		{TargetAddress: "T1", Metadata: types.AccountMetadata{SourceAddress: sourceB}},
		{TargetAddress: "T2"},
	})
	assert.Equal(t, 1, restored)

	source, ok := ab.ReverseLookup("T1")
	require.True(t, ok)
	assert.Equal(t, sourceB, source)

	_, ok = ab.ReverseLookup("T2")
	assert.False(t, ok, "accounts without metadata are skipped")

	_, ok = ab.ReverseLookup("T-" + strings.ToLower(sourceA))
	assert.False(t, ok, "rebuild replaces the map")

	ab.Clear()
	assert.Equal(t, 0, ab.Len())
}

// Test_RoundTrip_LiquidAccounts checks reverseLookup(derive([s])[0]) == s with the real deriver.
func Test_RoundTrip_LiquidAccounts(t *testing.T) {
	sdk, err := liquidAccounts.New(&liquidAccounts.Config{ChainId: 4160}, zaptest.NewLogger(t))
	require.NoError(t, err)
	ab := NewAddressBridge(staticDeriver(sdk), zaptest.NewLogger(t))

	sources := []string{
		sourceA,
		sourceB,
		"0x0000000000000000000000000000000000000001",
		"0x90F8bf6A479f320ead074411a4B0e7944Ea8c9C1",
	}
	for _, s := range sources {
		accounts, err := ab.Derive(context.Background(), []string{s}, AccountOptions{})
		require.NoError(t, err)
		got, ok := ab.ReverseLookup(accounts[0].TargetAddress)
		require.True(t, ok)
		assert.Equal(t, s, got)
	}
}

package testutil

import (
	"testing"

	"github.com/Layr-Labs/liquid-signer-go/pkg/types"
	sdktypes "github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/stretchr/testify/require"
)

// Well known development keys and their source addresses.
const (
	TestPrivateKeyA = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	TestSourceA     = "0x2c7536E3605D9C16a7a3D7b1898e529396a65c23"
	TestPrivateKeyB = "8da4ef21b864d2cc526dbdb2a120bd2874c36c9d0a1fb7f8c63d7f7a8b41de8f"
)

// CreateTestPayment builds a minimal payment from sender to itself.
func CreateTestPayment(t *testing.T, sender string, amount uint64) sdktypes.Transaction {
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

// CreateTestAccounts creates n accounts with distinct, syntactically arbitrary addresses.
func CreateTestAccounts(n int, connectorName string) []types.Account {
	accounts := make([]types.Account, n)
	for i := 0; i < n; i++ {
		source := "0x" + string(rune('A'+i))
		accounts[i] = types.Account{
			DisplayName:   "Liquid EVM (" + source + ")",
			TargetAddress: "TARGET-" + string(rune('A'+i)),
			Metadata: types.AccountMetadata{
				SourceAddress: source,
				ConnectorName: connectorName,
			},
		}
	}
	return accounts
}

package memory

import (
	"testing"

	"github.com/Layr-Labs/liquid-signer-go/pkg/persistence"
	"github.com/Layr-Labs/liquid-signer-go/pkg/testutil"
	"github.com/Layr-Labs/liquid-signer-go/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryPersistence(t *testing.T) {
	testutil.RunSessionPersistenceSuite(t, func(t *testing.T) persistence.ISessionPersistence {
		return NewMemoryPersistence()
	})
}

func TestMemoryPersistence_LoadReturnsCopy(t *testing.T) {
	mp := NewMemoryPersistence()
	defer func() { _ = mp.Close() }()

	accounts := testutil.CreateTestAccounts(1, "")
	require.NoError(t, mp.AddWallet("wallet-1", &types.SessionState{Accounts: accounts}))

	loaded, err := mp.LoadSession("wallet-1")
	require.NoError(t, err)
	loaded.Accounts[0].TargetAddress = "changed"

	again, err := mp.LoadSession("wallet-1")
	require.NoError(t, err)
	assert.Equal(t, accounts[0].TargetAddress, again.Accounts[0].TargetAddress)
}

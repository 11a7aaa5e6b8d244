package testutil

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/Layr-Labs/liquid-signer-go/pkg/persistence"
	"github.com/Layr-Labs/liquid-signer-go/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSessionPersistenceSuite exercises the ISessionPersistence contract against the store
// returned by newStore. Each subtest gets a fresh store and closes it afterwards.
func RunSessionPersistenceSuite(t *testing.T, newStore func(t *testing.T) persistence.ISessionPersistence) {
	open := func(t *testing.T) persistence.ISessionPersistence {
		s := newStore(t)
		t.Cleanup(func() { _ = s.Close() })
		return s
	}

	t.Run("load missing session returns nil", func(t *testing.T) {
		s := open(t)
		state, err := s.LoadSession("missing")
		require.NoError(t, err)
		assert.Nil(t, state)
	})

	t.Run("add and load round trips", func(t *testing.T) {
		s := open(t)
		accounts := CreateTestAccounts(2, "MetaMask")
		original := &types.SessionState{Accounts: accounts, ActiveAccount: &accounts[0]}

		require.NoError(t, s.AddWallet("wallet-1", original))
		loaded, err := s.LoadSession("wallet-1")
		require.NoError(t, err)
		assert.Equal(t, original, loaded)

		// stored copies are independent of the caller's values
		original.Accounts[0].DisplayName = "mutated"
		loaded, err = s.LoadSession("wallet-1")
		require.NoError(t, err)
		assert.NotEqual(t, "mutated", loaded.Accounts[0].DisplayName)
	})

	t.Run("set accounts keeps or resets the active account", func(t *testing.T) {
		s := open(t)
		accounts := CreateTestAccounts(3, "MetaMask")
		require.NoError(t, s.AddWallet("wallet-1", &types.SessionState{Accounts: accounts[:2], ActiveAccount: &accounts[1]}))

		require.NoError(t, s.SetAccounts("wallet-1", accounts[1:]))
		loaded, err := s.LoadSession("wallet-1")
		require.NoError(t, err)
		assert.Equal(t, accounts[1:], loaded.Accounts)
		assert.Equal(t, accounts[1].TargetAddress, loaded.ActiveAccount.TargetAddress)

		require.NoError(t, s.SetAccounts("wallet-1", accounts[2:]))
		loaded, err = s.LoadSession("wallet-1")
		require.NoError(t, err)
		assert.Equal(t, accounts[2].TargetAddress, loaded.ActiveAccount.TargetAddress)
	})

	t.Run("set accounts on missing wallet", func(t *testing.T) {
		s := open(t)
		err := s.SetAccounts("missing", CreateTestAccounts(1, ""))
		assert.True(t, errors.Is(err, persistence.ErrWalletNotFound))
	})

	t.Run("set active account", func(t *testing.T) {
		s := open(t)
		accounts := CreateTestAccounts(2, "")
		require.NoError(t, s.AddWallet("wallet-1", &types.SessionState{Accounts: accounts, ActiveAccount: &accounts[0]}))

		require.NoError(t, s.SetActiveAccount("wallet-1", accounts[1].TargetAddress))
		loaded, err := s.LoadSession("wallet-1")
		require.NoError(t, err)
		assert.Equal(t, accounts[1].TargetAddress, loaded.ActiveAccount.TargetAddress)

		err = s.SetActiveAccount("wallet-1", "TARGET-Z")
		assert.True(t, errors.Is(err, persistence.ErrAccountNotFound))

		err = s.SetActiveAccount("missing", accounts[0].TargetAddress)
		assert.True(t, errors.Is(err, persistence.ErrWalletNotFound))
	})

	t.Run("remove is idempotent and list is sorted", func(t *testing.T) {
		s := open(t)
		for _, id := range []string{"wallet-b", "wallet-a", "wallet-c"} {
			require.NoError(t, s.AddWallet(id, &types.SessionState{}))
		}

		ids, err := s.ListWallets()
		require.NoError(t, err)
		assert.Equal(t, []string{"wallet-a", "wallet-b", "wallet-c"}, ids)

		require.NoError(t, s.RemoveWallet("wallet-b"))
		require.NoError(t, s.RemoveWallet("wallet-b"))

		ids, err = s.ListWallets()
		require.NoError(t, err)
		assert.Equal(t, []string{"wallet-a", "wallet-c"}, ids)

		state, err := s.LoadSession("wallet-b")
		require.NoError(t, err)
		assert.Nil(t, state)
	})

	t.Run("concurrent writers", func(t *testing.T) {
		s := open(t)
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				assert.NoError(t, s.AddWallet(fmt.Sprintf("wallet-%02d", i), &types.SessionState{Accounts: CreateTestAccounts(1, "")}))
			}(i)
		}
		wg.Wait()

		ids, err := s.ListWallets()
		require.NoError(t, err)
		assert.Len(t, ids, 10)
	})

	t.Run("closed store rejects operations", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.HealthCheck())
		require.NoError(t, s.Close())
		require.NoError(t, s.Close())

		assert.True(t, errors.Is(s.HealthCheck(), persistence.ErrClosed))
		_, err := s.LoadSession("wallet-1")
		assert.True(t, errors.Is(err, persistence.ErrClosed))
		assert.True(t, errors.Is(s.AddWallet("wallet-1", &types.SessionState{}), persistence.ErrClosed))
	})
}

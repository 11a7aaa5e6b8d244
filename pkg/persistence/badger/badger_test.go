package badger

import (
	"testing"

	"github.com/Layr-Labs/liquid-signer-go/pkg/logger"
	"github.com/Layr-Labs/liquid-signer-go/pkg/persistence"
	"github.com/Layr-Labs/liquid-signer-go/pkg/testutil"
	"github.com/Layr-Labs/liquid-signer-go/pkg/types"
	badgerdb "github.com/dgraph-io/badger/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBadgerPersistence(t *testing.T) {
	testutil.RunSessionPersistenceSuite(t, func(t *testing.T) persistence.ISessionPersistence {
		testLogger, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})
		bp, err := NewBadgerPersistence(t.TempDir(), testLogger)
		require.NoError(t, err)
		return bp
	})
}

func TestBadgerPersistence_SurvivesReopen(t *testing.T) {
	tmpDir := t.TempDir()
	testLogger, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})

	bp, err := NewBadgerPersistence(tmpDir, testLogger)
	require.NoError(t, err)

	accounts := testutil.CreateTestAccounts(2, "MetaMask")
	require.NoError(t, bp.AddWallet("wallet-1", &types.SessionState{Accounts: accounts, ActiveAccount: &accounts[1]}))
	require.NoError(t, bp.Close())

	bp, err = NewBadgerPersistence(tmpDir, testLogger)
	require.NoError(t, err)
	defer func() { _ = bp.Close() }()

	loaded, err := bp.LoadSession("wallet-1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, accounts, loaded.Accounts)
	assert.Equal(t, accounts[1].TargetAddress, loaded.ActiveAccount.TargetAddress)
}

func TestBadgerPersistence_RejectsUnknownSchema(t *testing.T) {
	tmpDir := t.TempDir()
	testLogger, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})

	bp, err := NewBadgerPersistence(tmpDir, testLogger)
	require.NoError(t, err)
	require.NoError(t, bp.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set([]byte(keySchemaVersion), []byte("v0"))
	}))
	require.NoError(t, bp.Close())

	_, err = NewBadgerPersistence(tmpDir, testLogger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported schema version")
}

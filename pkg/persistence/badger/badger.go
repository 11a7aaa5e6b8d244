package badger

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Layr-Labs/liquid-signer-go/pkg/persistence"
	"github.com/Layr-Labs/liquid-signer-go/pkg/types"
	badgerdb "github.com/dgraph-io/badger/v3"
	"go.uber.org/zap"
)

// Key prefixes for namespacing
const (
	keyPrefixWallet      = "wallet:"
	keySchemaVersion     = "metadata:schema_version"
	currentSchemaVersion = "v1"
)

// BadgerPersistence is a durable, disk-based session store.
type BadgerPersistence struct {
	db       *badgerdb.DB
	logger   *zap.Logger
	gcCancel context.CancelFunc
	gcWg     sync.WaitGroup
	mu       sync.RWMutex
	closed   bool
}

var _ persistence.ISessionPersistence = (*BadgerPersistence)(nil)

// NewBadgerPersistence opens (or creates) the database at dataPath with SyncWrites enabled
// and starts a background goroutine for value log garbage collection.
func NewBadgerPersistence(dataPath string, logger *zap.Logger) (*BadgerPersistence, error) {
	absPath, err := filepath.Abs(dataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	opts := badgerdb.DefaultOptions(absPath)
	opts.Logger = &badgerLoggerAdapter{logger: logger}
	opts.SyncWrites = true
	opts.CompactL0OnClose = true
	opts.NumVersionsToKeep = 1

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database at %s: %w", absPath, err)
	}

	bp := &BadgerPersistence{
		db:     db,
		logger: logger,
	}

	if err := bp.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	bp.gcCancel = cancel
	bp.gcWg.Add(1)
	go bp.runGC(ctx)

	logger.Sugar().Infow("Badger persistence initialized", "path", absPath)

	return bp, nil
}

// initSchema initializes or validates the schema version
func (b *BadgerPersistence) initSchema() error {
	return b.db.Update(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(keySchemaVersion))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return txn.Set([]byte(keySchemaVersion), []byte(currentSchemaVersion))
		}
		if err != nil {
			return fmt.Errorf("failed to read schema version: %w", err)
		}

		var existingVersion string
		err = item.Value(func(val []byte) error {
			existingVersion = string(val)
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to read schema version value: %w", err)
		}

		if existingVersion != currentSchemaVersion {
			return fmt.Errorf("unsupported schema version: %s (expected: %s)", existingVersion, currentSchemaVersion)
		}

		return nil
	})
}

// runGC runs periodic garbage collection in the background
func (b *BadgerPersistence) runGC(ctx context.Context) {
	defer b.gcWg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			err := b.db.RunValueLogGC(0.5)
			if err != nil && !errors.Is(err, badgerdb.ErrNoRewrite) {
				b.logger.Sugar().Warnw("Badger GC error", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

func walletKey(walletID string) []byte {
	return []byte(keyPrefixWallet + walletID)
}

func getSession(txn *badgerdb.Txn, walletID string) (*types.SessionState, error) {
	item, err := txn.Get(walletKey(walletID))
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var data []byte
	err = item.Value(func(val []byte) error {
		data = append([]byte{}, val...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return persistence.UnmarshalSessionState(data)
}

func setSession(txn *badgerdb.Txn, walletID string, state *types.SessionState) error {
	data, err := persistence.MarshalSessionState(state)
	if err != nil {
		return err
	}
	return txn.Set(walletKey(walletID), data)
}

// LoadSession retrieves the session for walletID
func (b *BadgerPersistence) LoadSession(walletID string) (*types.SessionState, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, persistence.ErrClosed
	}

	var state *types.SessionState
	err := b.db.View(func(txn *badgerdb.Txn) error {
		var err error
		state, err = getSession(txn, walletID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load session for %s: %w", walletID, err)
	}
	return state, nil
}

// AddWallet creates or replaces the session for walletID
func (b *BadgerPersistence) AddWallet(walletID string, state *types.SessionState) error {
	if state == nil {
		state = &types.SessionState{}
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return persistence.ErrClosed
	}

	return b.db.Update(func(txn *badgerdb.Txn) error {
		return setSession(txn, walletID, state)
	})
}

// update applies fn to an existing session inside one read-write transaction.
func (b *BadgerPersistence) update(walletID string, fn func(*types.SessionState) (*types.SessionState, error)) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return persistence.ErrClosed
	}

	return b.db.Update(func(txn *badgerdb.Txn) error {
		existing, err := getSession(txn, walletID)
		if err != nil {
			return fmt.Errorf("failed to load session for %s: %w", walletID, err)
		}
		if existing == nil {
			return persistence.ErrWalletNotFound
		}
		updated, err := fn(existing)
		if err != nil {
			return err
		}
		return setSession(txn, walletID, updated)
	})
}

func (b *BadgerPersistence) SetAccounts(walletID string, accounts []types.Account) error {
	return b.update(walletID, func(existing *types.SessionState) (*types.SessionState, error) {
		return persistence.ApplyAccounts(existing, accounts), nil
	})
}

func (b *BadgerPersistence) SetActiveAccount(walletID string, targetAddress string) error {
	return b.update(walletID, func(existing *types.SessionState) (*types.SessionState, error) {
		return persistence.ApplyActiveAccount(existing, targetAddress)
	})
}

// RemoveWallet deletes the session. Idempotent.
func (b *BadgerPersistence) RemoveWallet(walletID string) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return persistence.ErrClosed
	}

	return b.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Delete(walletKey(walletID))
	})
}

// ListWallets returns all stored wallet ids; badger iterates keys in sorted order.
func (b *BadgerPersistence) ListWallets() ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, persistence.ErrClosed
	}

	ids := []string{}
	err := b.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefixWallet)
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			ids = append(ids, strings.TrimPrefix(string(it.Item().Key()), keyPrefixWallet))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list wallets: %w", err)
	}
	return ids, nil
}

// Close shuts down the persistence layer
func (b *BadgerPersistence) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	if b.gcCancel != nil {
		b.gcCancel()
	}
	b.gcWg.Wait()

	if err := b.db.Close(); err != nil {
		return fmt.Errorf("failed to close badger database: %w", err)
	}

	b.logger.Sugar().Info("Badger persistence closed")
	return nil
}

// HealthCheck verifies the persistence layer is operational
func (b *BadgerPersistence) HealthCheck() error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return persistence.ErrClosed
	}

	return b.db.View(func(txn *badgerdb.Txn) error {
		_, err := txn.Get([]byte(keySchemaVersion))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return fmt.Errorf("schema version not found - database may be corrupted")
		}
		return err
	})
}

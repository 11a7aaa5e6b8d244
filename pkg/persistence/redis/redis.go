package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Layr-Labs/liquid-signer-go/pkg/persistence"
	"github.com/Layr-Labs/liquid-signer-go/pkg/types"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Key prefixes for namespacing in Redis
const (
	keyPrefixWallet      = "liquid:wallet:"
	keySchemaVersion     = "liquid:metadata:schema_version"
	currentSchemaVersion = "v1"

	// Redis has no prefix iteration, wallet ids are tracked in a set.
	keySetWallets = "liquid:wallets:index"

	operationTimeout = 5 * time.Second
	maxUpdateRetries = 5
)

// RedisPersistence is a session store shared by every process pointing at the same Redis.
type RedisPersistence struct {
	client    *redis.Client
	logger    *zap.Logger
	keyPrefix string
	mu        sync.RWMutex
	closed    bool
}

var _ persistence.ISessionPersistence = (*RedisPersistence)(nil)

// RedisConfig holds the configuration for connecting to Redis
type RedisConfig struct {
	// Address is the Redis server address (host:port)
	Address string
	// Password is the optional Redis password
	Password string
	// DB is the Redis database number (0-15)
	DB int
	// KeyPrefix is prepended to every key, e.g. "myapp:" gives "myapp:liquid:wallet:<id>".
	KeyPrefix string
}

// NewRedisPersistence connects to Redis and validates the schema version.
func NewRedisPersistence(cfg *RedisConfig, logger *zap.Logger) (*RedisPersistence, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}

	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address cannot be empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	rp := &RedisPersistence{
		client:    client,
		logger:    logger,
		keyPrefix: cfg.KeyPrefix,
	}

	if err := rp.initSchema(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Sugar().Infow("Redis persistence initialized", "address", cfg.Address, "db", cfg.DB, "key_prefix", cfg.KeyPrefix)

	return rp, nil
}

// prefixKey adds the custom key prefix (if configured) to a key
func (r *RedisPersistence) prefixKey(key string) string {
	if r.keyPrefix == "" {
		return key
	}
	return r.keyPrefix + key
}

func (r *RedisPersistence) walletKey(walletID string) string {
	return r.prefixKey(keyPrefixWallet + walletID)
}

// initSchema initializes or validates the schema version
func (r *RedisPersistence) initSchema(ctx context.Context) error {
	schemaKey := r.prefixKey(keySchemaVersion)

	existingVersion, err := r.client.Get(ctx, schemaKey).Result()
	if errors.Is(err, redis.Nil) {
		return r.client.Set(ctx, schemaKey, currentSchemaVersion, 0).Err()
	}
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if existingVersion != currentSchemaVersion {
		return fmt.Errorf("unsupported schema version: %s (expected: %s)", existingVersion, currentSchemaVersion)
	}

	return nil
}

// LoadSession retrieves the session for walletID
func (r *RedisPersistence) LoadSession(walletID string) (*types.SessionState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, persistence.ErrClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	data, err := r.client.Get(ctx, r.walletKey(walletID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session for %s: %w", walletID, err)
	}
	return persistence.UnmarshalSessionState(data)
}

// AddWallet creates or replaces the session for walletID
func (r *RedisPersistence) AddWallet(walletID string, state *types.SessionState) error {
	if state == nil {
		state = &types.SessionState{}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return persistence.ErrClosed
	}

	data, err := persistence.MarshalSessionState(state)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.walletKey(walletID), data, 0)
		pipe.SAdd(ctx, r.prefixKey(keySetWallets), walletID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save session for %s: %w", walletID, err)
	}
	return nil
}

// update applies fn to an existing session with optimistic locking on the wallet key.
func (r *RedisPersistence) update(walletID string, fn func(*types.SessionState) (*types.SessionState, error)) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return persistence.ErrClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	key := r.walletKey(walletID)
	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return persistence.ErrWalletNotFound
		}
		if err != nil {
			return err
		}
		existing, err := persistence.UnmarshalSessionState(data)
		if err != nil {
			return err
		}
		updated, err := fn(existing)
		if err != nil {
			return err
		}
		encoded, err := persistence.MarshalSessionState(updated)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, 0)
			return nil
		})
		return err
	}

	for i := 0; i < maxUpdateRetries; i++ {
		err := r.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			r.logger.Sugar().Debugw("Session changed during update, retrying", "walletId", walletID, "attempt", i+1)
			continue
		}
		return err
	}
	return fmt.Errorf("failed to update session for %s: too much contention", walletID)
}

func (r *RedisPersistence) SetAccounts(walletID string, accounts []types.Account) error {
	return r.update(walletID, func(existing *types.SessionState) (*types.SessionState, error) {
		return persistence.ApplyAccounts(existing, accounts), nil
	})
}

func (r *RedisPersistence) SetActiveAccount(walletID string, targetAddress string) error {
	return r.update(walletID, func(existing *types.SessionState) (*types.SessionState, error) {
		return persistence.ApplyActiveAccount(existing, targetAddress)
	})
}

// RemoveWallet deletes the session. Idempotent.
func (r *RedisPersistence) RemoveWallet(walletID string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return persistence.ErrClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.walletKey(walletID))
		pipe.SRem(ctx, r.prefixKey(keySetWallets), walletID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to remove session for %s: %w", walletID, err)
	}
	return nil
}

// ListWallets returns the indexed wallet ids, dropping index entries whose session is gone.
func (r *RedisPersistence) ListWallets() ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, persistence.ErrClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	indexKey := r.prefixKey(keySetWallets)
	ids, err := r.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list wallets: %w", err)
	}

	out := make([]string, 0, len(ids))
	for _, id := range ids {
		n, err := r.client.Exists(ctx, r.walletKey(id)).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to check wallet %s: %w", id, err)
		}
		if n == 0 {
			r.client.SRem(ctx, indexKey, id)
			continue
		}
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

// Close shuts down the persistence layer
func (r *RedisPersistence) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	if err := r.client.Close(); err != nil {
		return fmt.Errorf("failed to close Redis client: %w", err)
	}

	r.logger.Sugar().Info("Redis persistence closed")
	return nil
}

// HealthCheck verifies the persistence layer is operational
func (r *RedisPersistence) HealthCheck() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return persistence.ErrClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()

	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}

	_, err := r.client.Get(ctx, r.prefixKey(keySchemaVersion)).Result()
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("schema version not found - database may not be properly initialized")
	}
	if err != nil {
		return fmt.Errorf("failed to verify schema version: %w", err)
	}

	return nil
}

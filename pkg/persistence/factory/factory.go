// Package factory builds the session store selected by configuration.
package factory

import (
	"fmt"

	"github.com/Layr-Labs/liquid-signer-go/pkg/config"
	"github.com/Layr-Labs/liquid-signer-go/pkg/persistence"
	"github.com/Layr-Labs/liquid-signer-go/pkg/persistence/badger"
	"github.com/Layr-Labs/liquid-signer-go/pkg/persistence/memory"
	"github.com/Layr-Labs/liquid-signer-go/pkg/persistence/redis"
	"go.uber.org/zap"
)

func NewSessionPersistence(cfg *config.PersistenceConfig, logger *zap.Logger) (persistence.ISessionPersistence, error) {
	if cfg == nil {
		return nil, fmt.Errorf("persistence config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid persistence config: %w", err)
	}

	switch cfg.Type {
	case config.PersistenceType_Memory:
		logger.Sugar().Warnw("Using in-memory session persistence, sessions are lost on exit")
		return memory.NewMemoryPersistence(), nil
	case config.PersistenceType_Badger:
		return badger.NewBadgerPersistence(cfg.DataPath, logger)
	case config.PersistenceType_Redis:
		return redis.NewRedisPersistence(&redis.RedisConfig{
			Address:   cfg.RedisAddress,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			KeyPrefix: cfg.RedisKeyPrefix,
		}, logger)
	default:
		return nil, fmt.Errorf("unsupported persistence type: %s", cfg.Type)
	}
}

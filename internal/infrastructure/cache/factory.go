package cache

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ledgerscan/backend/internal/domain/shared"
	"github.com/ledgerscan/backend/internal/infrastructure/config"
)

// NewIdempotencyStore creates the idempotency store the deployment calls for.
// With Redis enabled it connects there; otherwise, or when the connection
// fails, it falls back to the in-memory store with a warning.
func NewIdempotencyStore(cfg config.RedisConfig, logger *zap.Logger) shared.IdempotencyStore {
	if logger == nil {
		logger = zap.NewNop()
	}

	if !cfg.Enabled {
		return NewInMemoryIdempotencyStore()
	}

	store, err := NewRedisIdempotencyStore(cfg)
	if err != nil {
		logger.Warn("Redis unavailable, falling back to in-memory idempotency store. "+
			"Resubmission detection will not span instances.",
			zap.Error(fmt.Errorf("redis idempotency store: %w", err)))
		return NewInMemoryIdempotencyStore()
	}

	logger.Info("using Redis idempotency store", zap.String("addr", cfg.Addr()))
	return store
}

package lock

import (
	"fmt"

	"github.com/erp/obligations/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Factory creates lockers based on configuration
type Factory struct {
	lockConfig            config.LockConfig
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// FactoryOption is a functional option for configuring the factory
type FactoryOption func(*Factory)

// WithFactoryLogger sets the logger for the factory and the lockers it builds
func WithFactoryLogger(logger *zap.Logger) FactoryOption {
	return func(f *Factory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to a local locker when
// Redis is unavailable. Default is false.
func WithInMemoryFallback(allow bool) FactoryOption {
	return func(f *Factory) {
		f.allowInMemoryFallback = allow
	}
}

// NewFactory creates a new factory
func NewFactory(lockCfg config.LockConfig, redisCfg config.RedisConfig, opts ...FactoryOption) *Factory {
	f := &Factory{
		lockConfig:  lockCfg,
		redisConfig: redisCfg,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Create returns the configured locker and a function releasing its
// resources
func (f *Factory) Create() (Locker, func() error, error) {
	if f.lockConfig.Backend != config.LockBackendRedis {
		f.logger.Info("using in-process counterparty locker")
		return NewLocalLocker(), noopClose, nil
	}

	client, err := NewRedisClient(f.redisConfig)
	if err == nil {
		f.logger.Info("using Redis counterparty locker", zap.String("addr", f.redisConfig.Addr()))
		return f.redisLocker(client), client.Close, nil
	}

	if !f.allowInMemoryFallback {
		return nil, nil, fmt.Errorf("Redis required for counterparty locking but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-process counterparty locker. "+
		"Reconciliations are only serialised within this process.",
		zap.Error(err),
	)
	return NewLocalLocker(), noopClose, nil
}

func (f *Factory) redisLocker(client redis.UniversalClient) *RedisLocker {
	return NewRedisLocker(client,
		WithKeyPrefix(f.lockConfig.KeyPrefix),
		WithExpiry(f.lockConfig.Expiry),
		WithTries(f.lockConfig.Tries, f.lockConfig.RetryDelay),
		WithLogger(f.logger.Named("lock")),
	)
}

func noopClose() error { return nil }

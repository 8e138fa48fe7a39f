package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/obligations/internal/infrastructure/config"
	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisLocker provides per-counterparty mutual exclusion across processes
// using redsync over a shared Redis
type RedisLocker struct {
	redsync    *redsync.Redsync
	keyPrefix  string
	expiry     time.Duration
	tries      int
	retryDelay time.Duration
	logger     *zap.Logger
}

// RedisLockerOption configures a RedisLocker
type RedisLockerOption func(*RedisLocker)

// WithKeyPrefix sets the prefix of lock keys
func WithKeyPrefix(prefix string) RedisLockerOption {
	return func(l *RedisLocker) {
		if prefix != "" {
			l.keyPrefix = prefix
		}
	}
}

// WithExpiry sets how long a lock is held before it expires on its own
func WithExpiry(expiry time.Duration) RedisLockerOption {
	return func(l *RedisLocker) {
		if expiry > 0 {
			l.expiry = expiry
		}
	}
}

// WithTries sets the number of acquire attempts and the delay between them
func WithTries(tries int, retryDelay time.Duration) RedisLockerOption {
	return func(l *RedisLocker) {
		if tries > 0 {
			l.tries = tries
		}
		if retryDelay >= 0 {
			l.retryDelay = retryDelay
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) RedisLockerOption {
	return func(l *RedisLocker) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewRedisLocker creates a RedisLocker over the given client
func NewRedisLocker(client redis.UniversalClient, opts ...RedisLockerOption) *RedisLocker {
	l := &RedisLocker{
		redsync:    redsync.New(goredis.NewPool(client)),
		keyPrefix:  DefaultKeyPrefix,
		expiry:     30 * time.Second,
		tries:      32,
		retryDelay: 100 * time.Millisecond,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// WithLock acquires the counterparty's lock, runs fn and releases the lock,
// even when fn panics
func (l *RedisLocker) WithLock(ctx context.Context, counterpartyID uuid.UUID, fn func(ctx context.Context) error) error {
	if err := checkArgs(counterpartyID, fn); err != nil {
		return err
	}

	key := l.keyPrefix + counterpartyID.String()
	mutex := l.redsync.NewMutex(
		key,
		redsync.WithExpiry(l.expiry),
		redsync.WithTries(l.tries),
		redsync.WithRetryDelay(l.retryDelay),
	)

	if err := mutex.LockContext(ctx); err != nil {
		l.logger.Warn("failed to acquire lock", zap.String("lock_key", key), zap.Error(err))
		return fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	l.logger.Debug("lock acquired", zap.String("lock_key", key))

	defer func() {
		// Release with a fresh context so a cancelled caller still unlocks
		unlockCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if ok, err := mutex.UnlockContext(unlockCtx); !ok || err != nil {
			l.logger.Error("failed to release lock",
				zap.String("lock_key", key),
				zap.Bool("unlock_ok", ok),
				zap.Error(err),
			)
		}
	}()

	return fn(ctx)
}

// NewRedisClient connects to Redis and checks the connection
func NewRedisClient(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

package lock

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/erp/obligations/internal/infrastructure/config"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a miniredis server and a client connected to it
func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisLocker_WithLock(t *testing.T) {
	mr, client := setupTestRedis(t)
	l := NewRedisLocker(client)
	counterpartyID := uuid.New()

	err := l.WithLock(context.Background(), counterpartyID, func(ctx context.Context) error {
		assert.True(t, mr.Exists(DefaultKeyPrefix+counterpartyID.String()), "lock key must exist while held")
		return nil
	})

	require.NoError(t, err)
	assert.False(t, mr.Exists(DefaultKeyPrefix+counterpartyID.String()), "lock key must be removed after release")
}

func TestRedisLocker_PropagatesErrorAndReleases(t *testing.T) {
	mr, client := setupTestRedis(t)
	l := NewRedisLocker(client, WithKeyPrefix("test:"))
	counterpartyID := uuid.New()

	err := l.WithLock(context.Background(), counterpartyID, func(ctx context.Context) error {
		return assert.AnError
	})

	assert.ErrorIs(t, err, assert.AnError)
	assert.False(t, mr.Exists("test:"+counterpartyID.String()))
}

func TestRedisLocker_SerialisesSameCounterparty(t *testing.T) {
	_, client := setupTestRedis(t)
	l := NewRedisLocker(client, WithTries(200, 5*time.Millisecond))
	counterpartyID := uuid.New()

	var active, maxActive, completed int32
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := l.WithLock(context.Background(), counterpartyID, func(ctx context.Context) error {
				if n := atomic.AddInt32(&active, 1); n > 1 {
					atomic.StoreInt32(&maxActive, n)
				} else {
					atomic.CompareAndSwapInt32(&maxActive, 0, 1)
				}
				time.Sleep(10 * time.Millisecond)
				atomic.AddInt32(&active, -1)
				return nil
			})
			if err == nil {
				atomic.AddInt32(&completed, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxActive)
	assert.Equal(t, int32(5), completed)
}

func TestRedisLocker_FailsWhenLockIsHeld(t *testing.T) {
	mr, client := setupTestRedis(t)
	counterpartyID := uuid.New()
	require.NoError(t, mr.Set(DefaultKeyPrefix+counterpartyID.String(), "someone-else"))

	l := NewRedisLocker(client, WithTries(2, time.Millisecond))
	called := false
	err := l.WithLock(context.Background(), counterpartyID, func(ctx context.Context) error {
		called = true
		return nil
	})

	assert.Error(t, err)
	assert.False(t, called)
}

func TestRedisLocker_InvalidArguments(t *testing.T) {
	_, client := setupTestRedis(t)
	l := NewRedisLocker(client)

	assert.ErrorIs(t, l.WithLock(context.Background(), uuid.New(), nil), ErrNilLockFn)
	assert.ErrorIs(t, l.WithLock(context.Background(), uuid.Nil, func(context.Context) error { return nil }), ErrNilCounterparty)
}

func TestFactory_Create(t *testing.T) {
	t.Run("local backend", func(t *testing.T) {
		locker, closeFn, err := NewFactory(config.LockConfig{Backend: config.LockBackendLocal}, config.RedisConfig{}).Create()
		require.NoError(t, err)
		assert.IsType(t, &LocalLocker{}, locker)
		assert.NoError(t, closeFn())
	})

	t.Run("redis backend", func(t *testing.T) {
		mr := miniredis.RunT(t)
		port, err := strconv.Atoi(mr.Port())
		require.NoError(t, err)
		redisCfg := config.RedisConfig{Host: mr.Host(), Port: port}

		locker, closeFn, err := NewFactory(config.LockConfig{Backend: config.LockBackendRedis, Tries: 3}, redisCfg).Create()
		require.NoError(t, err)
		defer closeFn()
		assert.IsType(t, &RedisLocker{}, locker)
	})

	t.Run("redis unavailable without fallback", func(t *testing.T) {
		_, _, err := NewFactory(
			config.LockConfig{Backend: config.LockBackendRedis},
			config.RedisConfig{Host: "127.0.0.1", Port: 1},
		).Create()
		assert.Error(t, err)
	})

	t.Run("redis unavailable with fallback", func(t *testing.T) {
		locker, _, err := NewFactory(
			config.LockConfig{Backend: config.LockBackendRedis},
			config.RedisConfig{Host: "127.0.0.1", Port: 1},
			WithInMemoryFallback(true),
		).Create()
		require.NoError(t, err)
		assert.IsType(t, &LocalLocker{}, locker)
	})
}

// Package lock serialises work per counterparty. LocalLocker covers a single
// process; RedisLocker uses the RedLock algorithm to cover every instance
// sharing a Redis deployment.
package lock

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// DefaultKeyPrefix prefixes every distributed lock key
const DefaultKeyPrefix = "obligations:lock:counterparty:"

var (
	// ErrNilLockFn is returned when a nil function is passed to WithLock
	ErrNilLockFn = errors.New("lock function is nil")
	// ErrNilCounterparty is returned when the counterparty ID is empty
	ErrNilCounterparty = errors.New("counterparty ID cannot be empty")
)

// Locker runs fn while holding the lock of one counterparty
type Locker interface {
	WithLock(ctx context.Context, counterpartyID uuid.UUID, fn func(ctx context.Context) error) error
}

func checkArgs(counterpartyID uuid.UUID, fn func(ctx context.Context) error) error {
	if fn == nil {
		return ErrNilLockFn
	}
	if counterpartyID == uuid.Nil {
		return ErrNilCounterparty
	}
	return nil
}

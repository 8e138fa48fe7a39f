package lock

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// LocalLocker is an in-process keyed mutex. Waiting for a busy counterparty
// honours context cancellation. Entries are dropped once no goroutine holds
// or waits for them.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[uuid.UUID]*slot
}

type slot struct {
	sem  chan struct{}
	refs int
}

// NewLocalLocker creates a new LocalLocker
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[uuid.UUID]*slot)}
}

// WithLock runs fn while no other caller of this locker holds the same
// counterparty
func (l *LocalLocker) WithLock(ctx context.Context, counterpartyID uuid.UUID, fn func(ctx context.Context) error) error {
	if err := checkArgs(counterpartyID, fn); err != nil {
		return err
	}

	s := l.acquire(counterpartyID)
	defer l.release(counterpartyID, s)

	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-s.sem }()

	return fn(ctx)
}

func (l *LocalLocker) acquire(id uuid.UUID) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[id]
	if !ok {
		s = &slot{sem: make(chan struct{}, 1)}
		l.slots[id] = s
	}
	s.refs++
	return s
}

func (l *LocalLocker) release(id uuid.UUID, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, id)
	}
}

// held returns the number of counterparties with a holder or waiter
func (l *LocalLocker) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}

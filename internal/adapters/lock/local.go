// Package lock implements engine.Locker in process and on Redis.
package lock

import (
	"context"
	"fmt"
	"sync"

	"faas-engine/internal/core/engine"
)

var _ engine.Locker = (*Local)(nil)

// Local serializes holders of the same key within one process. Distinct keys
// never block each other.
type Local struct {
	mu    sync.Mutex
	slots map[string]*slot
}

// slot is a one-token semaphore shared by everyone holding or waiting on a
// key. It is dropped once refs reaches zero.
type slot struct {
	sem  chan struct{}
	refs int
}

func NewLocal() *Local {
	return &Local{slots: make(map[string]*slot)}
}

func (l *Local) Lock(ctx context.Context, key string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", engine.ErrLocked, key, err)
	}

	s := l.acquire(key)
	select {
	case s.sem <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-s.sem
				l.release(key, s)
			})
		}, nil
	case <-ctx.Done():
		l.release(key, s)
		return nil, fmt.Errorf("%w: %s: %v", engine.ErrLocked, key, ctx.Err())
	}
}

func (l *Local) acquire(key string) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{sem: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	return s
}

func (l *Local) release(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

// held reports how many keys have a holder or waiter.
func (l *Local) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}

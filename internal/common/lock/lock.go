// Package lock serializes dataset merges per category.
package lock

import (
	"context"
	"sync"
)

// Locker hands out exclusive leases on a key.
type Locker interface {
	Acquire(ctx context.Context, key string) (Lease, error)
}

// Lease is a held lock. Release is safe to call once.
type Lease interface {
	Release(ctx context.Context) error
}

// KeyedMutex is an in-process Locker. Waiters give up when ctx ends.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	ch   chan struct{}
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyLock)}
}

func (k *KeyedMutex) Acquire(ctx context.Context, key string) (Lease, error) {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{ch: make(chan struct{}, 1)}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
		return &localLease{owner: k, key: key, lock: l}, nil
	case <-ctx.Done():
		k.drop(key, l)
		return nil, ctx.Err()
	}
}

func (k *KeyedMutex) drop(key string, l *keyLock) {
	k.mu.Lock()
	defer k.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(k.locks, key)
	}
}

type localLease struct {
	once  sync.Once
	owner *KeyedMutex
	key   string
	lock  *keyLock
}

func (l *localLease) Release(context.Context) error {
	l.once.Do(func() {
		<-l.lock.ch
		l.owner.drop(l.key, l.lock)
	})
	return nil
}

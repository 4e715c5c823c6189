// Package keylock provides a mutex per string key whose acquisition honours
// context cancellation.
package keylock

import (
	"context"
	"sync"
)

// KeyedMutex serializes holders of the same key. Distinct keys never contend
// beyond a short map access.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

// New returns an empty KeyedMutex.
func New() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]chan struct{})}
}

// Lock blocks until key is free or ctx is done. The returned unlock function
// must be called exactly once.
func (k *KeyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	for {
		k.mu.Lock()
		held, busy := k.locks[key]
		if !busy {
			done := make(chan struct{})
			k.locks[key] = done
			k.mu.Unlock()
			return func() { k.release(key, done) }, nil
		}
		k.mu.Unlock()

		select {
		case <-held:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// TryLock acquires key only if it is free.
func (k *KeyedMutex) TryLock(key string) (func(), bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if _, busy := k.locks[key]; busy {
		return nil, false
	}
	done := make(chan struct{})
	k.locks[key] = done
	return func() { k.release(key, done) }, true
}

// Len reports how many keys are currently held.
func (k *KeyedMutex) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}

func (k *KeyedMutex) release(key string, done chan struct{}) {
	k.mu.Lock()
	if k.locks[key] == done {
		delete(k.locks, key)
	}
	k.mu.Unlock()
	close(done)
}

package service

import (
	"context"
	"errors"
	"sync"

	"github.com/sethvargo/go-retry"

	"github.com/mmulqu/biome/internal/constants"
)

var errLockBusy = errors.New("lock busy")

// keyedMutex serializes work per key. Ingest uses one instance keyed by cell
// id (the per-cell ownership critical section) and one keyed by player login
// (one sync per player at a time).
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*sync.Mutex)}
}

func (k *keyedMutex) get(key string) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	return m
}

// Lock blocks until the key's lock is held and returns the unlock func.
func (k *keyedMutex) Lock(key string) func() {
	m := k.get(key)
	m.Lock()
	return m.Unlock
}

// With runs fn while holding the key's lock. Acquisition is attempted with
// fibonacci backoff first so a contended cell does not stall the whole
// batch's pacing; after the retry budget it falls back to a blocking wait
// rather than failing the write.
func (k *keyedMutex) With(ctx context.Context, key string, fn func() error) error {
	m := k.get(key)

	backoff := retry.WithMaxRetries(constants.CellLockMaxRetries, retry.NewFibonacci(constants.CellLockBackoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if !m.TryLock() {
			return retry.RetryableError(errLockBusy)
		}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		m.Lock()
	}
	defer m.Unlock()

	return fn()
}

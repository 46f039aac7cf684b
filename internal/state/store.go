// Package state keeps the small amount of data that survives between runs:
// the per-source run lock, the feed offset and cached exchange rates.
package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Store is a named-key value store.
type Store interface {
	// Get returns the value and whether the key exists.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set stores value with no expiry.
	Set(ctx context.Context, key, value string) error
	// SetNX stores value only if key is absent or expired.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
}

// ErrLocked is returned by AcquireLock when the lock is held.
var ErrLocked = errors.New("lock is held")

// Lock is a TTL-bounded mutual exclusion flag.
type Lock struct {
	store Store
	key   string
	token string
}

// AcquireLock takes the lock at key for at most ttl.
func AcquireLock(ctx context.Context, store Store, key string, ttl time.Duration) (*Lock, error) {
	token := uuid.NewString()
	ok, err := store.SetNX(ctx, key, token, ttl)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLocked
	}
	return &Lock{store: store, key: key, token: token}, nil
}

// Release drops the lock if it is still ours. An expired lock taken over by
// another run is left alone.
func (l *Lock) Release(ctx context.Context) error {
	current, ok, err := l.store.Get(ctx, l.key)
	if err != nil {
		return fmt.Errorf("failed to read lock %s: %w", l.key, err)
	}
	if !ok || current != l.token {
		return nil
	}
	return l.store.Delete(ctx, l.key)
}

// IsLocked reports whether someone holds the lock at key.
func IsLocked(ctx context.Context, store Store, key string) (bool, error) {
	_, ok, err := store.Get(ctx, key)
	return ok, err
}

// Keys used by the sync components.
func LockKey(source string) string { return "lock:" + source }
func OffsetKey(source string) string { return "offset:" + source }
func RateKey(currency string) string { return "rate:" + currency }
func RateTimeKey(currency string) string { return "rate:" + currency + ":time" }

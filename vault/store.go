package vault

import (
	"context"
	"errors"
	"time"
)

// ErrKeyNotFound is returned by [Store.Get] when a key does not exist or
// has been evicted by TTL. The two cases are deliberately
// indistinguishable.
var ErrKeyNotFound = errors.New("vault: key not found")

// Store is the narrow key-value capability the vault persists through. The
// vault never holds a direct connection or long-lived transaction; every
// call is a single round trip.
//
// CompareAndSwap is the mechanism behind single-use enforcement and must be
// atomic: implementations that cannot compare and replace in one operation
// must not be used as a vault store.
type Store interface {
	// Get returns the stored value or [ErrKeyNotFound].
	Get(ctx context.Context, key string) ([]byte, error)

	// SetWithTTL stores value under key, expiring after ttl.
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key, reporting whether it existed.
	Delete(ctx context.Context, key string) (bool, error)

	// CompareAndSwap atomically replaces the value under key with
	// replacement only if the current value equals expected. It returns
	// false when the value differs or the key is gone; the remaining TTL
	// is preserved on success.
	CompareAndSwap(ctx context.Context, key string, expected, replacement []byte) (bool, error)
}

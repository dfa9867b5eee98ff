package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNoEntry is returned by KeyValue.Get when the key is absent or expired.
var ErrNoEntry = errors.New("cache: no entry")

// ErrUnhashableKey is returned by a KeyBuilder when the key material has no
// stable identity across processes (functions, channels). Callers must fall
// back to an uncached read.
var ErrUnhashableKey = errors.New("cache: key material is not hashable")

// KeyValue is the byte-oriented store contract the query layer caches into.
// Implementations must treat a missing key as ErrNoEntry on Get and as a
// no-op on Delete.
type KeyValue interface {
	// Exists reports whether the key currently holds an entry.
	Exists(ctx context.Context, key string) (bool, error)

	// Get returns the stored payload, or ErrNoEntry when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores the payload under key with the given time-to-live.
	// Backends with a store-wide TTL may ignore the per-call value.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes the entry. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// ScanKeys returns every key matching the glob-style pattern,
	// e.g. "photo:all:*".
	ScanKeys(ctx context.Context, pattern string) ([]string, error)
}

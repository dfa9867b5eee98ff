// Package cacheinfra provides the concrete cache.KeyValue backends: an
// in-process sturdyc store and a remote Redis store.
package cacheinfra

import (
	"context"
	"strings"
	"time"

	"github.com/viccon/sturdyc"

	"github.com/hnatiak/photoshare/cache"
)

// MemoryConfig holds the configuration for the in-process sturdyc store.
type MemoryConfig struct {
	// Capacity is the maximum number of entries the store holds.
	// Must be greater than 0.
	Capacity int

	// NumShards determines the number of cache shards for concurrent access.
	// Must be greater than 0.
	NumShards int

	// TTL is the time-to-live applied to every entry. sturdyc configures TTL
	// per client, not per entry, so the per-call TTL on Set is ignored.
	TTL time.Duration

	// EvictionPercentage specifies what percentage of entries to evict when
	// the store reaches capacity. Must be between 1 and 100.
	EvictionPercentage int
}

// DefaultMemoryConfig returns a MemoryConfig with sensible defaults.
func DefaultMemoryConfig() MemoryConfig {
	return MemoryConfig{
		Capacity:           10000,
		NumShards:          64,
		TTL:                15 * time.Minute,
		EvictionPercentage: 10,
	}
}

// Validate checks the configuration values.
func (c MemoryConfig) Validate() error {
	if c.Capacity <= 0 {
		return &ConfigError{Field: "Capacity", Message: "must be greater than 0"}
	}
	if c.NumShards <= 0 {
		return &ConfigError{Field: "NumShards", Message: "must be greater than 0"}
	}
	if c.TTL <= 0 {
		return &ConfigError{Field: "TTL", Message: "must be greater than 0"}
	}
	if c.EvictionPercentage < 1 || c.EvictionPercentage > 100 {
		return &ConfigError{Field: "EvictionPercentage", Message: "must be between 1 and 100"}
	}
	return nil
}

// ConfigError represents a backend configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "cacheinfra: config error in field " + e.Field + ": " + e.Message
}

// MemoryStore adapts a sturdyc client to the cache.KeyValue port. Payloads
// are opaque byte slices; serialization stays with the caller's codec.
type MemoryStore struct {
	client *sturdyc.Client[[]byte]
}

var _ cache.KeyValue = (*MemoryStore)(nil)

// NewMemoryStore creates an in-process store from the given configuration.
func NewMemoryStore(cfg MemoryConfig) (*MemoryStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client := sturdyc.New[[]byte](cfg.Capacity, cfg.NumShards, cfg.TTL, cfg.EvictionPercentage)
	return &MemoryStore{client: client}, nil
}

// Exists reports whether the key holds a live entry.
func (s *MemoryStore) Exists(_ context.Context, key string) (bool, error) {
	_, ok := s.client.Get(key)
	return ok, nil
}

// Get returns the stored payload or cache.ErrNoEntry.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	value, ok := s.client.Get(key)
	if !ok {
		return nil, cache.ErrNoEntry
	}
	return value, nil
}

// Set stores the payload. The per-call TTL is ignored: sturdyc expires
// entries with the client-wide TTL configured at construction.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	s.client.Set(key, value)
	return nil
}

// Delete removes the entry if present.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.client.Delete(key)
	return nil
}

// ScanKeys returns every key matching the glob-style pattern. Only the
// "prefix*" form is supported, which is all the invalidation path uses.
func (s *MemoryStore) ScanKeys(_ context.Context, pattern string) ([]string, error) {
	prefix := strings.TrimSuffix(pattern, "*")
	var matched []string
	for _, key := range s.client.ScanKeys() {
		if strings.HasPrefix(key, prefix) {
			matched = append(matched, key)
		}
	}
	return matched, nil
}

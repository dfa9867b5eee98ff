// Package cache defines the caching ports used by the query layer.
//
// # Overview
//
// Three contracts live here:
//
//   - KeyValue: a byte-oriented key-value store with TTL expiry. Concrete
//     backends (Redis, in-process) live in internal/cacheinfra.
//   - KeyBuilder: deterministic, collision-resistant cache key derivation
//     from arbitrary key material.
//   - Codec: serialization of domain object graphs into the byte payloads
//     a KeyValue stores.
//
// The package is deliberately free of domain types: it caches whatever the
// codec can round-trip, including eagerly loaded relationship graphs.
//
// # Key Derivation
//
// The default KeyBuilder serializes key material with deterministic,
// reflection-based rules (sorted map keys, recursive slices and structs)
// and hashes the result with xxhash. Keys take the form
//
//	<namespace>:<shape>:<hash>
//
// so two executors, or two read shapes within one executor, can never
// collide. Material without a stable identity across processes (functions,
// channels) yields ErrUnhashableKey; callers are expected to skip caching
// for that read rather than risk a corrupt key.
//
// # Absence vs. Errors
//
// KeyValue.Get returns ErrNoEntry for an absent key. Backend failures are
// distinct errors so that callers can treat "not cached" and "cache down"
// as the same degradation path while still logging the latter.
package cache

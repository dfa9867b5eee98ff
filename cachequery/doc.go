// Package cachequery implements the cache-aside query layer with
// event-driven invalidation.
//
// # Overview
//
// Repositories hand read queries to an Executor. The Cacheable executor
// memoizes results in a cache.KeyValue store keyed by a hash of the query
// shape (for list reads) or the lookup key (for single-record and scalar
// reads), eagerly loads a statically declared set of relations before
// caching so the stored graph is fully hydrated, and degrades to direct
// queries whenever no backend is configured or the key material cannot be
// hashed.
//
// Invalidation is decoupled from the write path through the Bus: after a
// successful commit a repository triggers "<prefix>:<event>" with the
// mutated row's identity, and every executor subscribed to that prefix
// deletes the cache entries the write may have staled. One executor can
// subscribe to foreign prefixes, so e.g. a new comment clears the photo
// repository's cached "photo with comments" entry.
//
// # Caching Semantics
//
// A hit is determined by key existence in the backend. A present entry that
// decodes to an empty list, nil record, or zero scalar is still treated as
// a miss and re-queried, and empty results are never stored; hot "no
// results" reads therefore always reach the database. That is deliberate:
// it avoids pinning stale emptiness while a concurrent write is in flight.
//
// Invalidation is best effort. Handler failures are logged and delivery
// continues; a stale entry then survives at most until its TTL elapses.
// Trigger reports per-subscriber outcomes so callers and tests can observe
// partial failure deliberately.
//
// # Wiring
//
// The Bus is an explicit object constructed once at startup and passed to
// every executor; prefixes are declared and handlers bound during that
// wiring, never while requests are in flight. There is one known
// consistency gap: a reader racing between a commit and its trigger can
// repopulate the cache with pre-write data that only TTL will clear.
package cachequery

package cachequery

import "context"

// Query is the read-operation contract the executor consumes. Adapters over
// the ORM implement it; the executor never sees SQL or ORM metadata.
type Query[T any] interface {
	// Identity returns a deterministic representation of the statement and
	// its bound parameters. Two queries that would yield identical result
	// sets must return identical identities. Identity errors make the
	// executor bypass caching for the call.
	Identity() (string, error)

	// EagerLoad attaches the named relations so the executed result is a
	// fully hydrated graph. Returns the augmented query.
	EagerLoad(relations ...string) Query[T]

	// All executes the query and returns every matching record.
	All(ctx context.Context) ([]T, error)

	// First executes the query and returns the first matching record, or
	// nil when there is no match.
	First(ctx context.Context) (*T, error)

	// Scalar executes the query as a single-value read (a count or similar
	// aggregate).
	Scalar(ctx context.Context) (int64, error)
}

// Executor is the read capability repositories depend on. The Cacheable
// implementation memoizes results; a repository constructed without a cache
// backend still satisfies every call through direct queries.
type Executor[T any] interface {
	// GetAll returns every record the query matches.
	GetAll(ctx context.Context, q Query[T]) ([]T, error)

	// GetFirst returns the single record identified by key, or nil when
	// absent. The key, not the statement, names the cache entry.
	GetFirst(ctx context.Context, key any, q Query[T]) (*T, error)

	// GetScalar returns the scalar the query produces for the given key.
	GetScalar(ctx context.Context, key any, q Query[T]) (int64, error)
}

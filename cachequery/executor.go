package cachequery

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/hnatiak/photoshare/cache"
)

// DefaultTTL is applied when the configuration does not override it.
const DefaultTTL = 15 * time.Minute

const (
	shapeAll    = "all"
	shapeFirst  = "first"
	shapeScalar = "scalar"
)

// shapeBindings maps each read shape's invalidation handler to the events
// it reacts to. Scalar entries skip created: a freshly inserted row cannot
// already have a stale scalar-keyed entry.
var shapeBindings = []struct {
	shape  string
	events []Event
}{
	{shape: shapeAll, events: []Event{EventCreated, EventUpdated, EventDeleted}},
	{shape: shapeFirst, events: []Event{EventCreated, EventUpdated, EventDeleted}},
	{shape: shapeScalar, events: []Event{EventUpdated, EventDeleted}},
}

// Config assembles a Cacheable executor.
type Config struct {
	// Name is the executor's keyspace namespace, usually the aggregate name
	// ("photo", "comment"). It must be unique per executor so keys never
	// collide across instances.
	Name string

	// KV is the cache backend. Nil disables caching: every read goes
	// straight to the query.
	KV cache.KeyValue

	// Keys derives cache keys. Defaults to cache.NewDefaultKeyBuilder.
	Keys cache.KeyBuilder

	// Codec serializes cached values. Defaults to cache.NewMsgpackCodec.
	Codec cache.Codec

	// Bus receives this executor's invalidation subscriptions. Nil leaves
	// the executor unwired; only TTL expiry will clear its entries.
	Bus *Bus

	// Prefixes are the topic prefixes whose mutations stale this executor's
	// cached reads: its own aggregate plus any foreign aggregates embedded
	// in the cached graphs.
	Prefixes []string

	// TTL bounds entry staleness. Defaults to DefaultTTL.
	TTL time.Duration

	// Relations are eagerly loaded before a result is cached, so the stored
	// graph needs no further database access when decoded later.
	Relations []string

	Logger zerolog.Logger
}

// Cacheable is the caching Executor implementation. All failure modes on
// the cache path degrade to direct queries; callers only ever see errors
// from the query itself.
type Cacheable[T any] struct {
	name      string
	kv        cache.KeyValue
	keys      cache.KeyBuilder
	codec     cache.Codec
	ttl       time.Duration
	relations []string
	log       zerolog.Logger
}

var _ Executor[struct{}] = (*Cacheable[struct{}])(nil)

// NewCacheable builds the executor and, when a bus is supplied, declares
// its prefixes and binds its invalidation handlers under every
// prefix/event pair per shapeBindings.
func NewCacheable[T any](cfg Config) *Cacheable[T] {
	if cfg.Keys == nil {
		cfg.Keys = cache.NewDefaultKeyBuilder()
	}
	if cfg.Codec == nil {
		cfg.Codec = cache.NewMsgpackCodec()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}

	c := &Cacheable[T]{
		name:      cfg.Name,
		kv:        cfg.KV,
		keys:      cfg.Keys,
		codec:     cfg.Codec,
		ttl:       cfg.TTL,
		relations: cfg.Relations,
		log:       cfg.Logger.With().Str("component", "cachequery").Str("executor", cfg.Name).Logger(),
	}

	if cfg.Bus != nil {
		c.register(cfg.Bus, cfg.Prefixes)
	}
	return c
}

func (c *Cacheable[T]) register(bus *Bus, prefixes []string) {
	handlers := map[string]Handler{
		shapeAll:    c.invalidateForAll,
		shapeFirst:  c.invalidateForFirst,
		shapeScalar: c.invalidateForScalar,
	}
	for _, prefix := range prefixes {
		bus.DeclarePrefix(prefix)
		for _, binding := range shapeBindings {
			for _, event := range binding.events {
				bus.Subscribe(prefix, event, c.name+"."+binding.shape, handlers[binding.shape])
			}
		}
	}
}

// GetAll implements the list read. The cache key is derived from the query
// identity; the stored value is the eagerly loaded record slice.
func (c *Cacheable[T]) GetAll(ctx context.Context, q Query[T]) ([]T, error) {
	if c.kv == nil || bypassed(ctx) {
		return q.All(ctx)
	}

	identity, err := q.Identity()
	if err != nil {
		return q.All(ctx)
	}
	key, err := c.keys.BuildKey(c.name, shapeAll, identity)
	if err != nil {
		// Unhashable material: correctness over caching.
		return q.All(ctx)
	}

	if data, ok := c.lookup(ctx, key); ok {
		var records []T
		if err := c.codec.Decode(data, &records); err == nil && len(records) > 0 {
			c.log.Debug().Str("key", key).Msg("cache hit")
			return records, nil
		}
		// An empty or undecodable payload falls through to a re-query.
	}
	c.log.Debug().Str("key", key).Msg("cache miss")

	records, err := q.EagerLoad(c.relations...).All(ctx)
	if err != nil {
		return nil, err
	}
	if len(records) > 0 {
		c.store(ctx, key, records)
	}
	return records, nil
}

// GetFirst implements the single-record read, keyed by the lookup identity
// rather than the statement so writes can target the entry directly.
func (c *Cacheable[T]) GetFirst(ctx context.Context, lookup any, q Query[T]) (*T, error) {
	if c.kv == nil || bypassed(ctx) {
		return q.First(ctx)
	}

	key, err := c.keys.BuildKey(c.name, shapeFirst, lookup)
	if err != nil {
		return q.First(ctx)
	}

	if data, ok := c.lookup(ctx, key); ok {
		var record T
		if err := c.codec.Decode(data, &record); err == nil {
			c.log.Debug().Str("key", key).Msg("cache hit")
			return &record, nil
		}
	}
	c.log.Debug().Str("key", key).Msg("cache miss")

	record, err := q.EagerLoad(c.relations...).First(ctx)
	if err != nil {
		return nil, err
	}
	if record != nil {
		c.store(ctx, key, record)
	}
	return record, nil
}

// GetScalar implements the scalar read. Relations are not attached: a
// joined row set would skew aggregates, and the cached value is a single
// number with nothing to hydrate.
func (c *Cacheable[T]) GetScalar(ctx context.Context, lookup any, q Query[T]) (int64, error) {
	if c.kv == nil || bypassed(ctx) {
		return q.Scalar(ctx)
	}

	key, err := c.keys.BuildKey(c.name, shapeScalar, lookup)
	if err != nil {
		return q.Scalar(ctx)
	}

	if data, ok := c.lookup(ctx, key); ok {
		var value int64
		if err := c.codec.Decode(data, &value); err == nil && value != 0 {
			c.log.Debug().Str("key", key).Msg("cache hit")
			return value, nil
		}
	}
	c.log.Debug().Str("key", key).Msg("cache miss")

	value, err := q.Scalar(ctx)
	if err != nil {
		return 0, err
	}
	if value != 0 {
		c.store(ctx, key, value)
	}
	return value, nil
}

// lookup treats key existence, not payload truthiness, as the hit signal.
// Backend failures read as misses so a flaky cache only costs latency.
func (c *Cacheable[T]) lookup(ctx context.Context, key string) ([]byte, bool) {
	exists, err := c.kv.Exists(ctx, key)
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache existence check failed")
		return nil, false
	}
	if !exists {
		return nil, false
	}

	data, err := c.kv.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrNoEntry) {
			c.log.Warn().Err(err).Str("key", key).Msg("cache read failed")
		}
		return nil, false
	}
	return data, true
}

func (c *Cacheable[T]) store(ctx context.Context, key string, value any) {
	data, err := c.codec.Encode(value)
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache encode failed")
		return
	}
	if err := c.kv.Set(ctx, key, data, c.ttl); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache write failed")
		return
	}
	c.log.Debug().Str("key", key).Msg("cache entry stored")
}

// invalidateForAll wholesale-drops every list entry in this executor's
// keyspace. Arbitrary filter and pagination combinations make targeted
// list invalidation intractable.
func (c *Cacheable[T]) invalidateForAll(ctx context.Context, _ ...any) error {
	if c.kv == nil {
		return nil
	}

	keys, err := c.kv.ScanKeys(ctx, c.keys.Keyspace(c.name, shapeAll)+"*")
	if err != nil {
		return err
	}

	var errs []error
	for _, key := range keys {
		if err := c.kv.Delete(ctx, key); err != nil {
			errs = append(errs, err)
			continue
		}
		c.log.Debug().Str("key", key).Msg("cache entry invalidated")
	}
	return errors.Join(errs...)
}

func (c *Cacheable[T]) invalidateForFirst(ctx context.Context, ids ...any) error {
	return c.invalidateKeyed(ctx, shapeFirst, ids)
}

func (c *Cacheable[T]) invalidateForScalar(ctx context.Context, ids ...any) error {
	return c.invalidateKeyed(ctx, shapeScalar, ids)
}

// invalidateKeyed drops the entry derived from each identity argument.
// Triggers carry the mutated row's id plus related foreign ids; an
// identity that never named an entry in this keyspace deletes nothing.
func (c *Cacheable[T]) invalidateKeyed(ctx context.Context, shape string, ids []any) error {
	if c.kv == nil {
		return nil
	}

	var errs []error
	for _, id := range ids {
		key, err := c.keys.BuildKey(c.name, shape, id)
		if err != nil {
			// Unhashable identities were never cached in the first place.
			continue
		}
		if err := c.kv.Delete(ctx, key); err != nil {
			errs = append(errs, err)
			continue
		}
		c.log.Debug().Str("key", key).Msg("cache entry invalidated")
	}
	return errors.Join(errs...)
}

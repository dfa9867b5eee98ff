// Package di wires the configured storage, cache backend, bus and
// repositories into one container.
package di

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/uptrace/bun"

	"github.com/hnatiak/photoshare/cache"
	"github.com/hnatiak/photoshare/cachequery"
	"github.com/hnatiak/photoshare/config"
	"github.com/hnatiak/photoshare/internal/cacheinfra"
	"github.com/hnatiak/photoshare/internal/storage"
	"github.com/hnatiak/photoshare/repository"
)

// Container holds the singleton collaborators of a running service.
// Repositories share one database handle, one cache backend and one bus,
// so invalidation crosses aggregate boundaries.
type Container struct {
	db  *bun.DB
	kv  cache.KeyValue
	bus *cachequery.Bus
	log zerolog.Logger

	photos   *repository.Photos
	comments *repository.Comments
	users    *repository.Users
	qrcodes  *repository.QRCodes

	closers []func() error
}

// New builds the container from configuration. With cache backend "off"
// every repository still works; reads simply always hit the database.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Container, error) {
	c := &Container{log: log}

	db, err := openDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}
	c.db = db
	c.closers = append(c.closers, db.Close)

	kv, err := openCache(ctx, cfg.Cache)
	if err != nil {
		db.Close()
		return nil, err
	}
	c.kv = kv
	if closer, ok := kv.(interface{ Close() error }); ok {
		c.closers = append(c.closers, closer.Close)
	}

	c.bus = cachequery.NewBus(log)

	deps := repository.Deps{
		DB:  db,
		KV:  kv,
		Bus: c.bus,
		TTL: cfg.Cache.TTL,
		Log: log,
	}
	c.photos = repository.NewPhotos(deps)
	c.comments = repository.NewComments(deps)
	c.users = repository.NewUsers(deps)
	c.qrcodes = repository.NewQRCodes(deps)

	return c, nil
}

func openDatabase(cfg config.DatabaseConfig) (*bun.DB, error) {
	switch cfg.Driver {
	case "sqlite":
		return storage.OpenSQLite(cfg.DSN)
	case "postgres":
		return storage.OpenPostgres(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func openCache(ctx context.Context, cfg config.CacheConfig) (cache.KeyValue, error) {
	switch cfg.Backend {
	case config.BackendOff:
		return nil, nil
	case config.BackendMemory:
		mc := cacheinfra.DefaultMemoryConfig()
		if cfg.Memory.Capacity > 0 {
			mc.Capacity = cfg.Memory.Capacity
		}
		if cfg.Memory.NumShards > 0 {
			mc.NumShards = cfg.Memory.NumShards
		}
		if cfg.TTL > 0 {
			mc.TTL = cfg.TTL
		}
		return cacheinfra.NewMemoryStore(mc)
	case config.BackendRedis:
		rc := cacheinfra.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}
		return cacheinfra.NewRedisStore(ctx, rc)
	default:
		return nil, fmt.Errorf("unsupported cache backend %q", cfg.Backend)
	}
}

// DB returns the shared database handle.
func (c *Container) DB() *bun.DB { return c.db }

// Cache returns the shared cache backend, nil when caching is off.
func (c *Container) Cache() cache.KeyValue { return c.kv }

// Bus returns the shared invalidation bus.
func (c *Container) Bus() *cachequery.Bus { return c.bus }

// Photos returns the photo repository.
func (c *Container) Photos() *repository.Photos { return c.photos }

// Comments returns the comment repository.
func (c *Container) Comments() *repository.Comments { return c.comments }

// Users returns the account repository.
func (c *Container) Users() *repository.Users { return c.users }

// QRCodes returns the QR code repository.
func (c *Container) QRCodes() *repository.QRCodes { return c.qrcodes }

// ResetSchema recreates the database schema. Test and development use
// only.
func (c *Container) ResetSchema(ctx context.Context) error {
	return storage.ResetSchema(ctx, c.db)
}

// Close releases the database and cache connections.
func (c *Container) Close() error {
	var firstErr error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

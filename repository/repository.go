package repository

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/uptrace/bun"

	"github.com/hnatiak/photoshare/cache"
	"github.com/hnatiak/photoshare/cachequery"
)

// Topic prefixes the repositories publish and subscribe under.
const (
	PrefixPhoto   = "photo"
	PrefixComment = "comment"
	PrefixUser    = "user"
	PrefixQRCode  = "qrcode"
)

// Deps carries the shared collaborators a repository needs. KV and Bus may
// be nil; the repository then runs uncached.
type Deps struct {
	DB  *bun.DB
	KV  cache.KeyValue
	Bus *cachequery.Bus
	TTL time.Duration
	Log zerolog.Logger
}

func (d Deps) executorConfig(name string, prefixes []string, relations ...string) cachequery.Config {
	return cachequery.Config{
		Name:      name,
		KV:        d.KV,
		Bus:       d.Bus,
		Prefixes:  prefixes,
		TTL:       d.TTL,
		Relations: relations,
		Logger:    d.Log,
	}
}

// trigger announces a mutation. A nil bus drops the announcement, matching
// the uncached configuration.
func (d Deps) trigger(ctx context.Context, prefix string, event cachequery.Event, ids ...any) {
	if d.Bus == nil {
		return
	}
	d.Bus.Trigger(ctx, prefix, event, ids...)
}

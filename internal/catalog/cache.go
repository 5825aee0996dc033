package catalog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const cachePrefix = "catalog:"

// Cache is a read-through JSON cache over redis. Every operation fails
// open: a cache outage degrades to direct reads, never to errors.
type Cache struct {
	R   *redis.Client
	TTL time.Duration
	Log zerolog.Logger
}

func (c *Cache) get(ctx context.Context, key string, dest any) bool {
	if c == nil || c.R == nil {
		return false
	}
	raw, err := c.R.Get(ctx, cachePrefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.Log.Warn().Err(err).Str("key", key).Msg("catalog cache read failed")
		}
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false
	}
	return true
}

func (c *Cache) set(ctx context.Context, key string, v any) {
	if c == nil || c.R == nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.R.Set(ctx, cachePrefix+key, raw, c.TTL).Err(); err != nil {
		c.Log.Warn().Err(err).Str("key", key).Msg("catalog cache write failed")
	}
}

// invalidate drops every cached catalog entry. Called after any admin
// mutation; the catalog is small enough that a full flush beats tracking
// which listings a product appears in.
func (c *Cache) invalidate(ctx context.Context) {
	if c == nil || c.R == nil {
		return
	}
	iter := c.R.Scan(ctx, 0, cachePrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		c.Log.Warn().Err(err).Msg("catalog cache scan failed")
		return
	}
	if len(keys) > 0 {
		if err := c.R.Del(ctx, keys...).Err(); err != nil {
			c.Log.Warn().Err(err).Msg("catalog cache invalidation failed")
		}
	}
}

package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/newsradar-io/newsradar/internal/logger"
)

// Redis is a go-redis backed Cache. Every backend failure is logged and
// swallowed: a miss on Get, a no-op on Set and Invalidate. The engine keeps
// working against providers as if the cache were simply cold.
type Redis struct {
	client redis.UniversalClient
	log    logger.Logger
}

// NewRedis wraps an existing redis client.
func NewRedis(client redis.UniversalClient, log logger.Logger) *Redis {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Redis{client: client, log: log}
}

// NewRedisFromURL connects using a redis URL (redis://host:port/db). The
// returned cache is usable even when the server is down; it just misses.
func NewRedisFromURL(rawURL string, log logger.Logger) (*Redis, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, err
	}
	return NewRedis(redis.NewClient(opt), log), nil
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			r.log.WarnObj("cache get failed, treating as miss", "cache_get_error", map[string]any{
				"key":   key,
				"error": err.Error(),
			})
		}
		return nil, false
	}
	return val, true
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		r.log.WarnObj("cache set failed, skipping", "cache_set_error", map[string]any{
			"key":   key,
			"error": err.Error(),
		})
	}
}

func (r *Redis) Invalidate(ctx context.Context, pattern string) {
	iter := r.client.Scan(ctx, 0, pattern, 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		r.log.WarnObj("cache scan failed, skipping invalidation", "cache_invalidate_error", map[string]any{
			"pattern": pattern,
			"error":   err.Error(),
		})
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		r.log.WarnObj("cache delete failed", "cache_invalidate_error", map[string]any{
			"pattern": pattern,
			"error":   err.Error(),
		})
	}
}

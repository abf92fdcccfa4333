package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/loadmap-guide/loadmap-cli/internal/model"
)

// RedisCache shares nearby-place lookups between processes. Redis errors
// degrade to cache misses.
type RedisCache struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// RedisOption configures a RedisCache.
type RedisOption func(*RedisCache)

// WithPrefix sets the key prefix. Default "loadmap:".
func WithPrefix(prefix string) RedisOption {
	return func(c *RedisCache) { c.prefix = prefix }
}

// WithTTL sets the entry TTL. Default 10 minutes.
func WithTTL(ttl time.Duration) RedisOption {
	return func(c *RedisCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// NewRedisCache wraps an existing client.
func NewRedisCache(client redis.UniversalClient, opts ...RedisOption) *RedisCache {
	c := &RedisCache{client: client, prefix: "loadmap:", ttl: 10 * time.Minute}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DialRedis parses a redis:// URL and verifies the server answers.
func DialRedis(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, eris.Wrap(err, "enrich: parse redis url")
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, eris.Wrap(err, "enrich: ping redis")
	}
	return client, nil
}

// Get implements Cache.
func (c *RedisCache) Get(ctx context.Context, key string) ([]model.RecommendedPlace, bool) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		zap.L().Warn("enrich: redis get failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	var places []model.RecommendedPlace
	if err := json.Unmarshal(data, &places); err != nil {
		zap.L().Warn("enrich: redis entry is corrupt", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return places, true
}

// Put implements Cache.
func (c *RedisCache) Put(ctx context.Context, key string, places []model.RecommendedPlace) {
	data, err := json.Marshal(places)
	if err != nil {
		zap.L().Warn("enrich: marshal cache entry", zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, c.prefix+key, data, c.ttl).Err(); err != nil {
		zap.L().Warn("enrich: redis set failed", zap.String("key", key), zap.Error(err))
	}
}

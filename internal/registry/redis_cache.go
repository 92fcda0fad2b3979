//go:build enterprise

package registry

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"council/internal/llm"
)

// RedisCache fronts a Store with a shared Redis cache so a multi-process
// deployment doesn't hammer the backing store on every GetModels call.
// Only built with the "enterprise" tag; the default build uses Registry's
// in-process cache alone.
type RedisCache struct {
	inner Store
	rdb   *redis.Client
	ttl   time.Duration
}

// NewRedisCache wraps inner with a Redis-backed cache layer.
func NewRedisCache(inner Store, rdb *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisCache{inner: inner, rdb: rdb, ttl: ttl}
}

func cacheKey(role Role) string {
	return "council:registry:" + string(role)
}

// ModelsForRole satisfies Store: read-through Redis, falling back to inner
// on a cache miss or a Redis error (treated as "no cache", not a failure).
func (c *RedisCache) ModelsForRole(ctx context.Context, role Role) ([]llm.ModelID, error) {
	if cached, err := c.rdb.Get(ctx, cacheKey(role)).Bytes(); err == nil {
		var models []llm.ModelID
		if json.Unmarshal(cached, &models) == nil && len(models) > 0 {
			return models, nil
		}
	}

	models, err := c.inner.ModelsForRole(ctx, role)
	if err != nil || len(models) == 0 {
		return models, err
	}

	if encoded, err := json.Marshal(models); err == nil {
		c.rdb.Set(ctx, cacheKey(role), encoded, c.ttl)
	}
	return models, nil
}

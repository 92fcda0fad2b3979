//go:build enterprise

package main

import (
	"context"

	"github.com/redis/go-redis/v9"

	"council/internal/config"
	"council/internal/llm"
	"council/internal/registry"
)

// emptyStore is the innermost Store of the enterprise build's registry
// chain: it never resolves a role, leaving Registry's hardcoded fallback
// table as the backstop once RedisCache's own cache misses.
type emptyStore struct{}

func (emptyStore) ModelsForRole(context.Context, registry.Role) ([]llm.ModelID, error) {
	return nil, nil
}

// buildRegistry wires the Model Registry for the enterprise build: a
// Redis-backed cache in front of emptyStore, so a multi-process deployment
// shares one registry read rather than each process loading its own
// backing-store query before falling back to the hardcoded table.
func buildRegistry(cfg config.Config) *registry.Registry {
	if !cfg.Redis.Enabled {
		return registry.NewRegistry(nil)
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	cache := registry.NewRedisCache(emptyStore{}, rdb, 0)
	return registry.NewRegistry(cache)
}

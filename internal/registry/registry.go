// Package registry implements the Model Registry (C10): resolving the
// ordered list of models for each role from a backing store, with
// hardcoded fallbacks when the store is unreachable or empty.
package registry

import (
	"context"
	"sync"

	"council/internal/llm"
)

// Role names a council participant kind.
type Role string

const (
	RoleCouncilMember  Role = "council_member"
	RoleStage2Reviewer Role = "stage2_reviewer"
	RoleChairman       Role = "chairman"
	RoleTitleGenerator Role = "title_generator"
)

// Store is the backing store (§6.3): implementation-defined, queried by
// role string, expected to be read-optimized and cacheable at startup.
type Store interface {
	ModelsForRole(ctx context.Context, role Role) ([]llm.ModelID, error)
}

// Registry is C10. It wraps a Store with the hardcoded fallback table and
// an in-process read-mostly cache, refreshed on Refresh and otherwise
// served from the last successful read — updates are copy-on-write so
// concurrent readers never observe a partial refresh (§5 shared-resources
// note).
type Registry struct {
	store Store

	mu    sync.RWMutex
	cache map[Role][]llm.ModelID
}

// NewRegistry builds a Registry around store; pass nil to operate purely
// on the hardcoded fallback table.
func NewRegistry(store Store) *Registry {
	return &Registry{store: store, cache: map[Role][]llm.ModelID{}}
}

// Refresh re-reads every known role from the backing store into the
// cache. Call at startup and on whatever schedule the deployment prefers;
// the Registry itself does not self-schedule refreshes.
func (r *Registry) Refresh(ctx context.Context) {
	if r.store == nil {
		return
	}
	next := map[Role][]llm.ModelID{}
	for _, role := range []Role{RoleCouncilMember, RoleStage2Reviewer, RoleChairman, RoleTitleGenerator} {
		models, err := r.store.ModelsForRole(ctx, role)
		if err != nil || len(models) == 0 {
			continue
		}
		next[role] = models
	}
	r.mu.Lock()
	for role, models := range next {
		r.cache[role] = models
	}
	r.mu.Unlock()
}

// GetModels returns the ordered model list for role: cached store result
// if present, else the hardcoded fallback. Never returns an error; callers
// must treat an empty result from the store as "use the fallback", not as
// a registry failure (§4.10).
func (r *Registry) GetModels(role Role) []llm.ModelID {
	r.mu.RLock()
	cached, ok := r.cache[role]
	r.mu.RUnlock()
	if ok && len(cached) > 0 {
		return cached
	}
	return fallbackModels(role)
}

// GetPrimaryModel returns the first model GetModels(role) would return.
func (r *Registry) GetPrimaryModel(role Role) llm.ModelID {
	models := r.GetModels(role)
	if len(models) == 0 {
		return ""
	}
	return models[0]
}

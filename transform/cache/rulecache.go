package cache

import (
	"context"
	"fmt"
	"time"
)

// RuleSource loads the enabled rules for a (tenant, provider) pair from
// the repository on a cache miss.
type RuleSource[T any] func(ctx context.Context, tenantID, providerID string) ([]T, error)

// RuleCache is a TTL cache of rule sets keyed by (tenant, provider);
// callers invoke Invalidate after every Create/Update/Delete of a rule so
// the cache's synchronous-invalidation contract (spec.md §4.5) holds.
type RuleCache[T any] struct {
	backend Backend
	ttl     time.Duration
	source  RuleSource[T]
}

const defaultRuleCacheTTL = 5 * time.Minute

// NewRuleCache wraps source (typically repository.Repo[*transform.Rule])
// with a TTL cache-aside decorator, the same shape as
// _examples/cvs0986-ARauth/storage/postgres/tenant_repository_cached.go's
// cachedTenantRepository.
func NewRuleCache[T any](backend Backend, ttl time.Duration, source RuleSource[T]) *RuleCache[T] {
	if ttl <= 0 {
		ttl = defaultRuleCacheTTL
	}
	return &RuleCache[T]{backend: backend, ttl: ttl, source: source}
}

func ruleCacheKey(tenantID, providerID string) string {
	return fmt.Sprintf("rules:%s:%s", tenantID, providerID)
}

// Get returns the cached rule set, loading and populating the cache from
// source on a miss.
func (c *RuleCache[T]) Get(ctx context.Context, tenantID, providerID string) ([]T, error) {
	key := ruleCacheKey(tenantID, providerID)
	if raw, ok, err := c.backend.Get(ctx, key); err == nil && ok {
		var rules []T
		if decErr := decode(raw, &rules); decErr == nil {
			return rules, nil
		}
	}

	rules, err := c.source(ctx, tenantID, providerID)
	if err != nil {
		return nil, err
	}
	if raw, encErr := encode(rules); encErr == nil {
		_ = c.backend.Set(ctx, key, raw, c.ttl)
	}
	return rules, nil
}

// Invalidate synchronously evicts the cached entry for (tenantID,
// providerID); must be called immediately after any rule mutation.
func (c *RuleCache[T]) Invalidate(ctx context.Context, tenantID, providerID string) error {
	return c.backend.Delete(ctx, ruleCacheKey(tenantID, providerID))
}

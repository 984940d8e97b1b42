// Package cache implements the two caches transform.Engine depends on:
// RuleCache (TTL, tenant+provider keyed, invalidated on mutation) and
// RegexCache (process-wide, unbounded lifetime, lazy compile under a hard
// timeout). Grounded on
// _examples/cvs0986-ARauth/storage/postgres/tenant_repository_cached.go's
// decorator-over-repository pattern and
// _examples/cvs0986-ARauth/internal/cache's CacheInterface/MemoryCache
// shape.
package cache

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"
)

// ErrCompileTimeout is returned when a regex fails to compile within the
// hard timeout spec.md §4.5/§5 mandates for admin-authored patterns.
var ErrCompileTimeout = fmt.Errorf("cache: regex compilation exceeded timeout")

// RegexCache is a process-wide, lazily populated, never-expiring cache of
// compiled patterns. Unlike the rule cache it carries no TTL: the pattern
// set is a small, admin-authored vocabulary that does not need eviction.
type RegexCache struct {
	mu      sync.RWMutex
	entries map[string]*regexp.Regexp
	timeout time.Duration
}

func NewRegexCache(timeout time.Duration) *RegexCache {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &RegexCache{entries: make(map[string]*regexp.Regexp), timeout: timeout}
}

// Compile returns the cached compiled pattern, compiling and caching it on
// first use. Compilation runs on its own goroutine so a pathological
// pattern cannot block the caller past the hard timeout.
func (c *RegexCache) Compile(pattern string) (*regexp.Regexp, error) {
	c.mu.RLock()
	if re, ok := c.entries[pattern]; ok {
		c.mu.RUnlock()
		return re, nil
	}
	c.mu.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	type result struct {
		re  *regexp.Regexp
		err error
	}
	done := make(chan result, 1)
	go func() {
		re, err := regexp.Compile(pattern)
		done <- result{re, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ErrCompileTimeout
	case r := <-done:
		if r.err != nil {
			return nil, r.err
		}
		c.mu.Lock()
		c.entries[pattern] = r.re
		c.mu.Unlock()
		return r.re, nil
	}
}

// Len reports the number of cached patterns, primarily for tests.
func (c *RegexCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

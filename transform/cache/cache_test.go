package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegexCacheCompilesAndCaches(t *testing.T) {
	c := NewRegexCache(time.Second)
	assert.Equal(t, 0, c.Len())

	re, err := c.Compile(`^foo\d+$`)
	require.NoError(t, err)
	assert.True(t, re.MatchString("foo123"))
	assert.Equal(t, 1, c.Len())

	_, err = c.Compile(`^foo\d+$`)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len(), "repeated compile of the same pattern should hit the cache")
}

func TestRegexCacheInvalidPattern(t *testing.T) {
	c := NewRegexCache(time.Second)
	_, err := c.Compile("(unterminated")
	assert.Error(t, err)
	assert.Equal(t, 0, c.Len())
}

func TestMemoryBackendSetGetDelete(t *testing.T) {
	b := NewMemoryBackend()
	defer b.Close()
	ctx := context.Background()

	_, ok, err := b.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, b.Set(ctx, "k", []byte("v"), time.Minute))
	val, ok, err := b.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v"), val)

	require.NoError(t, b.Delete(ctx, "k"))
	_, ok, err = b.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryBackendExpiry(t *testing.T) {
	b := NewMemoryBackend()
	defer b.Close()
	ctx := context.Background()

	require.NoError(t, b.Set(ctx, "k", []byte("v"), time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	_, ok, err := b.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok, "entry should be treated as expired even before the sweep runs")
}

func TestRuleCacheGetPopulatesFromSourceOnMiss(t *testing.T) {
	calls := 0
	source := func(ctx context.Context, tenantID, providerID string) ([]string, error) {
		calls++
		return []string{"rule-" + tenantID}, nil
	}

	c := NewRuleCache(NewMemoryBackend(), time.Minute, source)
	rules, err := c.Get(context.Background(), "tenant-a", "provider-a")
	require.NoError(t, err)
	assert.Equal(t, []string{"rule-tenant-a"}, rules)
	assert.Equal(t, 1, calls)

	rules2, err := c.Get(context.Background(), "tenant-a", "provider-a")
	require.NoError(t, err)
	assert.Equal(t, rules, rules2)
	assert.Equal(t, 1, calls, "second Get should be served from cache, not the source")
}

func TestRuleCacheInvalidate(t *testing.T) {
	calls := 0
	source := func(ctx context.Context, tenantID, providerID string) ([]string, error) {
		calls++
		return []string{"v"}, nil
	}

	c := NewRuleCache(NewMemoryBackend(), time.Minute, source)
	ctx := context.Background()

	_, err := c.Get(ctx, "t1", "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	require.NoError(t, c.Invalidate(ctx, "t1", "p1"))

	_, err = c.Get(ctx, "t1", "p1")
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "a Get after Invalidate must go back to the source")
}

func TestRuleCacheScopedPerTenantAndProvider(t *testing.T) {
	source := func(ctx context.Context, tenantID, providerID string) ([]string, error) {
		return []string{tenantID + "/" + providerID}, nil
	}
	c := NewRuleCache(NewMemoryBackend(), time.Minute, source)
	ctx := context.Background()

	a, err := c.Get(ctx, "t1", "p1")
	require.NoError(t, err)
	b, err := c.Get(ctx, "t1", "p2")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

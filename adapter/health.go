package adapter

import (
	"context"
	"strings"
	"sync"
	"time"
)

// HealthStatus is one adapter's result from a health sweep.
type HealthStatus struct {
	TenantID   string
	ProviderID string
	Healthy    bool
	CheckedAt  time.Time
	Error      string
}

// HealthChecker runs CheckHealth across every registered adapter,
// supplementing spec.md with the adapter health/capabilities surface
// SPEC_FULL.md §10 calls for.
type HealthChecker struct {
	registry *Registry
	timeout  time.Duration
}

func NewHealthChecker(registry *Registry, timeout time.Duration) *HealthChecker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HealthChecker{registry: registry, timeout: timeout}
}

// CheckAll concurrently health-checks every registered adapter.
func (h *HealthChecker) CheckAll(ctx context.Context) []HealthStatus {
	pairs := h.registry.List()
	results := make([]HealthStatus, len(pairs))

	var wg sync.WaitGroup
	for i, pair := range pairs {
		tenantID, providerID, ok := splitPair(pair)
		if !ok {
			continue
		}
		wg.Add(1)
		go func(i int, tenantID, providerID string) {
			defer wg.Done()
			results[i] = h.checkOne(ctx, tenantID, providerID)
		}(i, tenantID, providerID)
	}
	wg.Wait()
	return results
}

func (h *HealthChecker) checkOne(ctx context.Context, tenantID, providerID string) HealthStatus {
	status := HealthStatus{TenantID: tenantID, ProviderID: providerID, CheckedAt: time.Now()}

	a, err := h.registry.Get(tenantID, providerID)
	if err != nil {
		status.Error = err.Error()
		return status
	}

	checkCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	if err := a.CheckHealth(checkCtx); err != nil {
		status.Error = err.Error()
		return status
	}
	status.Healthy = true
	return status
}

func splitPair(pair string) (tenantID, providerID string, ok bool) {
	idx := strings.IndexByte(pair, '/')
	if idx < 0 {
		return "", "", false
	}
	return pair[:idx], pair[idx+1:], true
}

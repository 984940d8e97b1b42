package router

import (
	"context"
	"fmt"

	"github.com/marcelom97/scimgateway/audit"
	"github.com/marcelom97/scimgateway/scim"
)

// dispatchGroupChange implements spec.md §2 row H: after a group mutation
// commits, transform its display name into each registered provider's
// entitlement and push the mapping through that provider's adapter. This
// runs after the HTTP response's data is already decided (the repository
// write has already succeeded) and is itself best-effort: a transform or
// adapter failure is audited, never turned into a 5xx for a write that
// already landed in the canonical store.
func (rt *Router) dispatchGroupChange(ctx context.Context, tenantID string, group *scim.Group) {
	if rt.engine == nil || rt.adapters == nil {
		return
	}

	for _, pair := range rt.adapters.List() {
		t, providerID, ok := splitTenantProvider(pair)
		if !ok || t != tenantID {
			continue
		}
		rt.dispatchToProvider(ctx, tenantID, providerID, group)
	}
}

func (rt *Router) dispatchToProvider(ctx context.Context, tenantID, providerID string, group *scim.Group) {
	entitlements, conflict, err := rt.engine.Transform(ctx, tenantID, providerID, group.DisplayName)
	if err != nil {
		rt.audit.Write(ctx, audit.NewEntry(tenantID, audit.EntryTransformConflict,
			fmt.Sprintf("transform failed for group %q on provider %s: %v", group.DisplayName, providerID, err)))
		return
	}
	if conflict != nil {
		rt.audit.Write(ctx, audit.NewEntry(tenantID, audit.EntryTransformConflict,
			fmt.Sprintf("manual review required for group %q on provider %s", group.DisplayName, providerID)))
		return
	}

	a, err := rt.adapters.Get(tenantID, providerID)
	if err != nil {
		return
	}

	for _, ent := range entitlements {
		if err := a.MapGroupToEntitlement(ctx, tenantID, group.DisplayName, ent.ProviderEntitlementID); err != nil {
			rt.audit.Write(ctx, audit.NewEntry(tenantID, audit.EntryAdapterDispatchFail,
				fmt.Sprintf("provider %s rejected entitlement %q for group %q: %v", providerID, ent.ProviderEntitlementID, group.DisplayName, err)))
			continue
		}
		rt.audit.Write(ctx, audit.NewEntry(tenantID, audit.EntryAdapterDispatch,
			fmt.Sprintf("provider %s mapped group %q to entitlement %q", providerID, group.DisplayName, ent.ProviderEntitlementID)))
	}
}

func splitTenantProvider(pair string) (tenantID, providerID string, ok bool) {
	for i := 0; i < len(pair); i++ {
		if pair[i] == '/' {
			return pair[:i], pair[i+1:], true
		}
	}
	return "", "", false
}

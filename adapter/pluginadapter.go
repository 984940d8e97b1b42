package adapter

import (
	"context"
	"fmt"

	"github.com/marcelom97/scimgateway/scim"
	"github.com/marcelom97/scimgateway/scimerr"
)

// PluginAdapter wraps a scim.PluginGetter (the teacher's baseEntity-scoped
// backend interface) into the multi-tenant Adapter contract, passing
// tenantID through unchanged as the plugin's baseEntity. This lets every
// existing provider plugin (memory, postgres, sqlite, a custom HR system)
// serve as a downstream provider without rewriting its CRUD logic.
type PluginAdapter struct {
	name string
	p    scim.PluginGetter
	caps Capabilities
}

func NewPluginAdapter(name string, p scim.PluginGetter, caps Capabilities) *PluginAdapter {
	return &PluginAdapter{name: name, p: p, caps: caps}
}

func (a *PluginAdapter) CreateUser(ctx context.Context, tenantID string, user *scim.User) (*scim.User, error) {
	u, err := a.p.CreateUser(ctx, tenantID, user)
	return u, a.wrap(err)
}

func (a *PluginAdapter) GetUser(ctx context.Context, tenantID, id string) (*scim.User, error) {
	u, err := a.p.GetUser(ctx, tenantID, id, nil)
	return u, a.wrap(err)
}

func (a *PluginAdapter) UpdateUser(ctx context.Context, tenantID string, user *scim.User) (*scim.User, error) {
	patch := &scim.PatchOp{
		Schemas: []string{"urn:ietf:params:scim:api:messages:2.0:PatchOp"},
		Operations: []scim.PatchOperation{
			{Op: "replace", Value: user},
		},
	}
	if err := a.p.ModifyUser(ctx, tenantID, user.ID, patch); err != nil {
		return nil, a.wrap(err)
	}
	return a.GetUser(ctx, tenantID, user.ID)
}

func (a *PluginAdapter) DeleteUser(ctx context.Context, tenantID, id string) error {
	return a.wrap(a.p.DeleteUser(ctx, tenantID, id))
}

func (a *PluginAdapter) ListUsers(ctx context.Context, tenantID string, params scim.QueryParams) ([]*scim.User, error) {
	resp, err := a.p.GetUsers(ctx, tenantID, params)
	if err != nil {
		return nil, a.wrap(err)
	}
	return resp.Resources, nil
}

func (a *PluginAdapter) CreateGroup(ctx context.Context, tenantID string, group *scim.Group) (*scim.Group, error) {
	g, err := a.p.CreateGroup(ctx, tenantID, group)
	return g, a.wrap(err)
}

func (a *PluginAdapter) GetGroup(ctx context.Context, tenantID, id string) (*scim.Group, error) {
	g, err := a.p.GetGroup(ctx, tenantID, id, nil)
	return g, a.wrap(err)
}

func (a *PluginAdapter) UpdateGroup(ctx context.Context, tenantID string, group *scim.Group) (*scim.Group, error) {
	patch := &scim.PatchOp{
		Schemas: []string{"urn:ietf:params:scim:api:messages:2.0:PatchOp"},
		Operations: []scim.PatchOperation{
			{Op: "replace", Value: group},
		},
	}
	if err := a.p.ModifyGroup(ctx, tenantID, group.ID, patch); err != nil {
		return nil, a.wrap(err)
	}
	return a.GetGroup(ctx, tenantID, group.ID)
}

func (a *PluginAdapter) DeleteGroup(ctx context.Context, tenantID, id string) error {
	return a.wrap(a.p.DeleteGroup(ctx, tenantID, id))
}

// AddUserToGroup is idempotent: adding an already-present member is a
// no-op success, matching spec.md's membership set semantics.
func (a *PluginAdapter) AddUserToGroup(ctx context.Context, tenantID, groupID, userID string) error {
	group, err := a.p.GetGroup(ctx, tenantID, groupID, nil)
	if err != nil {
		return a.wrap(err)
	}
	for _, m := range group.Members {
		if m.Value == userID {
			return nil
		}
	}
	patch := &scim.PatchOp{
		Operations: []scim.PatchOperation{
			{Op: "add", Path: "members", Value: []scim.MemberRef{{Value: userID, Type: "User"}}},
		},
	}
	return a.wrap(a.p.ModifyGroup(ctx, tenantID, groupID, patch))
}

// RemoveUserFromGroup is idempotent: removing an absent member is a no-op
// success.
func (a *PluginAdapter) RemoveUserFromGroup(ctx context.Context, tenantID, groupID, userID string) error {
	group, err := a.p.GetGroup(ctx, tenantID, groupID, nil)
	if err != nil {
		return a.wrap(err)
	}
	present := false
	for _, m := range group.Members {
		if m.Value == userID {
			present = true
			break
		}
	}
	if !present {
		return nil
	}
	patch := &scim.PatchOp{
		Operations: []scim.PatchOperation{
			{Op: "remove", Path: fmt.Sprintf(`members[value eq "%s"]`, userID)},
		},
	}
	return a.wrap(a.p.ModifyGroup(ctx, tenantID, groupID, patch))
}

func (a *PluginAdapter) GetGroupMembers(ctx context.Context, tenantID, groupID string) ([]string, error) {
	group, err := a.p.GetGroup(ctx, tenantID, groupID, nil)
	if err != nil {
		return nil, a.wrap(err)
	}
	ids := make([]string, len(group.Members))
	for i, m := range group.Members {
		ids[i] = m.Value
	}
	return ids, nil
}

// MapGroupToEntitlement is not expressible against the generic
// scim.PluginGetter interface: plugins model groups/members, not
// provider-native entitlements. Adapters for entitlement-aware providers
// (e.g. a real HR/IdP SDK) should implement Adapter directly rather than
// through PluginAdapter.
func (a *PluginAdapter) MapGroupToEntitlement(ctx context.Context, tenantID, groupName, entitlementID string) error {
	return scimerr.NotImplemented(fmt.Sprintf("provider %q does not support native entitlement mapping", a.name))
}

func (a *PluginAdapter) CheckHealth(ctx context.Context) error {
	_, err := a.p.GetUsers(ctx, "__health__", scim.QueryParams{Count: 1})
	return a.wrap(err)
}

func (a *PluginAdapter) GetCapabilities() Capabilities {
	return a.caps
}

func (a *PluginAdapter) wrap(err error) error {
	if err == nil {
		return nil
	}
	return &Error{
		ProviderName:      a.name,
		ProviderErrorCode: err.Error(),
		IsRetryable:       false,
	}
}

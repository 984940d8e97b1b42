package memory

import (
	"context"

	"github.com/marcelom97/scimgateway/scim"
)

// Getter adapts Plugin's baseEntity-scoped raw-slice methods to
// scim.PluginGetter, the same ProcessListQuery bridging plugin.Adapter
// applies for its single-baseEntity Plugin interface — Plugin's own
// GetUsers/GetGroups already take baseEntity but return raw slices, one
// generation ahead of plugin.Plugin (no baseEntity at all) and one behind
// scim.PluginGetter (ListResponse already paginated).
type Getter struct {
	p *Plugin
}

func NewGetter(p *Plugin) *Getter {
	return &Getter{p: p}
}

func (g *Getter) GetUsers(ctx context.Context, baseEntity string, params scim.QueryParams) (*scim.ListResponse[*scim.User], error) {
	users, err := g.p.GetUsers(ctx, baseEntity, params)
	if err != nil {
		return nil, err
	}
	return scim.ProcessListQuery(users, params)
}

func (g *Getter) CreateUser(ctx context.Context, baseEntity string, user *scim.User) (*scim.User, error) {
	return g.p.CreateUser(ctx, baseEntity, user)
}

func (g *Getter) GetUser(ctx context.Context, baseEntity string, id string, attributes []string) (*scim.User, error) {
	return g.p.GetUser(ctx, baseEntity, id, attributes)
}

func (g *Getter) ModifyUser(ctx context.Context, baseEntity string, id string, patch *scim.PatchOp) error {
	return g.p.ModifyUser(ctx, baseEntity, id, patch)
}

func (g *Getter) DeleteUser(ctx context.Context, baseEntity string, id string) error {
	return g.p.DeleteUser(ctx, baseEntity, id)
}

func (g *Getter) GetGroups(ctx context.Context, baseEntity string, params scim.QueryParams) (*scim.ListResponse[*scim.Group], error) {
	groups, err := g.p.GetGroups(ctx, baseEntity, params)
	if err != nil {
		return nil, err
	}
	return scim.ProcessListQuery(groups, params)
}

func (g *Getter) CreateGroup(ctx context.Context, baseEntity string, group *scim.Group) (*scim.Group, error) {
	return g.p.CreateGroup(ctx, baseEntity, group)
}

func (g *Getter) GetGroup(ctx context.Context, baseEntity string, id string, attributes []string) (*scim.Group, error) {
	return g.p.GetGroup(ctx, baseEntity, id, attributes)
}

func (g *Getter) ModifyGroup(ctx context.Context, baseEntity string, id string, patch *scim.PatchOp) error {
	return g.p.ModifyGroup(ctx, baseEntity, id, patch)
}

func (g *Getter) DeleteGroup(ctx context.Context, baseEntity string, id string) error {
	return g.p.DeleteGroup(ctx, baseEntity, id)
}

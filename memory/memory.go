// Package memory provides an in-process reference implementation of a
// downstream SCIM plugin — the kind adapter.PluginAdapter (via
// memory.Getter) wraps to dispatch Group->Entitlement provisioning
// against. It exists for tests and local development; a real deployment
// wires adapter.Registry to an actual provider instead.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/marcelom97/scimgateway/scim"
)

// Plugin is a single provider's user/group store, keyed by resource ID.
// It knows nothing about tenants or baseEntity scoping beyond accepting
// the parameter — unlike repository.Repo, it trusts its caller to keep
// different baseEntities separate.
type Plugin struct {
	name string

	mu     sync.RWMutex
	users  map[string]*scim.User
	groups map[string]*scim.Group
}

func New(name string) *Plugin {
	return &Plugin{
		name:   name,
		users:  make(map[string]*scim.User),
		groups: make(map[string]*scim.Group),
	}
}

func (p *Plugin) Name() string { return p.name }

// GetUsers returns every stored user unfiltered; filtering, sorting,
// pagination, and attribute selection are the caller's job (memory.Getter
// runs them through scim.ProcessListQuery).
func (p *Plugin) GetUsers(ctx context.Context, baseEntity string, params scim.QueryParams) ([]*scim.User, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	all := make([]*scim.User, 0, len(p.users))
	for _, user := range p.users {
		all = append(all, user)
	}
	return all, nil
}

func (p *Plugin) CreateUser(ctx context.Context, baseEntity string, user *scim.User) (*scim.User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if len(user.Schemas) == 0 {
		user.Schemas = []string{scim.SchemaUser}
	}
	user.Meta = newMeta("User", user.ID)

	p.users[user.ID] = user
	return user, nil
}

// GetUser returns the stored user; attributes is accepted for parity with
// scim.PluginGetter but unused here — attribute selection happens above
// this layer, and an in-memory lookup has nothing to gain by narrowing
// early.
func (p *Plugin) GetUser(ctx context.Context, baseEntity, id string, attributes []string) (*scim.User, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	user, ok := p.users[id]
	if !ok {
		return nil, fmt.Errorf("user %q not found", id)
	}
	return user, nil
}

func (p *Plugin) ModifyUser(ctx context.Context, baseEntity, id string, patch *scim.PatchOp) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	user, ok := p.users[id]
	if !ok {
		return fmt.Errorf("user %q not found", id)
	}
	if err := scim.NewPatchProcessor().ApplyPatch(user, patch); err != nil {
		return err
	}
	touchMeta(user.Meta, id)
	return nil
}

func (p *Plugin) DeleteUser(ctx context.Context, baseEntity, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.users[id]; !ok {
		return fmt.Errorf("user %q not found", id)
	}
	delete(p.users, id)
	return nil
}

func (p *Plugin) GetGroups(ctx context.Context, baseEntity string, params scim.QueryParams) ([]*scim.Group, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	all := make([]*scim.Group, 0, len(p.groups))
	for _, group := range p.groups {
		all = append(all, group)
	}
	return all, nil
}

func (p *Plugin) CreateGroup(ctx context.Context, baseEntity string, group *scim.Group) (*scim.Group, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if group.ID == "" {
		group.ID = uuid.New().String()
	}
	if len(group.Schemas) == 0 {
		group.Schemas = []string{scim.SchemaGroup}
	}
	group.Meta = newMeta("Group", group.ID)

	p.groups[group.ID] = group
	return group, nil
}

func (p *Plugin) GetGroup(ctx context.Context, baseEntity, id string, attributes []string) (*scim.Group, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	group, ok := p.groups[id]
	if !ok {
		return nil, fmt.Errorf("group %q not found", id)
	}
	return group, nil
}

func (p *Plugin) ModifyGroup(ctx context.Context, baseEntity, id string, patch *scim.PatchOp) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	group, ok := p.groups[id]
	if !ok {
		return fmt.Errorf("group %q not found", id)
	}
	if err := scim.NewPatchProcessor().ApplyPatch(group, patch); err != nil {
		return err
	}
	touchMeta(group.Meta, id)
	return nil
}

func (p *Plugin) DeleteGroup(ctx context.Context, baseEntity, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.groups[id]; !ok {
		return fmt.Errorf("group %q not found", id)
	}
	delete(p.groups, id)
	return nil
}

func newMeta(resourceType, id string) *scim.Meta {
	now := time.Now()
	return &scim.Meta{
		ResourceType: resourceType,
		Created:      &now,
		LastModified: &now,
		Version:      fmt.Sprintf("W/%q", id),
	}
}

func touchMeta(meta *scim.Meta, id string) {
	now := time.Now()
	meta.LastModified = &now
	meta.Version = fmt.Sprintf("W/%q", fmt.Sprintf("%s-%d", id, now.Unix()))
}

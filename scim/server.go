package scim

import (
	"context"
)

// PluginGetter defines the interface for getting plugin operations
type PluginGetter interface {
	GetUsers(ctx context.Context, baseEntity string, params QueryParams) (*ListResponse[*User], error)
	CreateUser(ctx context.Context, baseEntity string, user *User) (*User, error)
	// TODO: Replace attributes with QueryParams for consistency
	GetUser(ctx context.Context, baseEntity string, id string, attributes []string) (*User, error)
	ModifyUser(ctx context.Context, baseEntity string, id string, patch *PatchOp) error
	DeleteUser(ctx context.Context, baseEntity string, id string) error
	GetGroups(ctx context.Context, baseEntity string, params QueryParams) (*ListResponse[*Group], error)
	CreateGroup(ctx context.Context, baseEntity string, group *Group) (*Group, error)
	// TODO: Replace attributes with QueryParams for consistency
	GetGroup(ctx context.Context, baseEntity string, id string, attributes []string) (*Group, error)
	ModifyGroup(ctx context.Context, baseEntity string, id string, patch *PatchOp) error
	DeleteGroup(ctx context.Context, baseEntity string, id string) error
}

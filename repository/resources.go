package repository

import (
	"github.com/marcelom97/scimgateway/scim"
	"github.com/marcelom97/scimgateway/store"
)

// NewUserRepo builds the tenant-scoped repository for scim.User.
func NewUserRepo(s store.Store) *Repo[*scim.User] {
	return New(s, store.ContainerUsers, "User", UserNaturalKey, ValidateUser, func() *scim.User { return &scim.User{} })
}

// NewGroupRepo builds the tenant-scoped repository for scim.Group.
func NewGroupRepo(s store.Store) *Repo[*scim.Group] {
	return New(s, store.ContainerGroups, "Group", GroupNaturalKey, ValidateGroup, func() *scim.Group { return &scim.Group{} })
}

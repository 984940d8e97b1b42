// Package adapter defines the downstream-provider contract and the
// registry/pool that resolve (tenant, provider) to a live adapter.
// Grounded on plugin/plugin.go's Manager (name-keyed registry behind an
// RWMutex), generalized from a single-tenant pluginName key to
// (tenantID, providerID).
package adapter

import (
	"context"
	"fmt"
	"sync"

	"github.com/marcelom97/scimgateway/scim"
)

// Error is the uniform shape every Adapter translates provider-native
// failures into, per spec.md §4.6.
type Error struct {
	ProviderName      string
	HTTPStatusCode    int
	ProviderErrorCode string
	ScimErrorType     string
	IsRetryable       bool
	RetryAfter        int
}

func (e *Error) Error() string {
	return fmt.Sprintf("adapter %s: %s (status=%d retryable=%v)", e.ProviderName, e.ProviderErrorCode, e.HTTPStatusCode, e.IsRetryable)
}

// Capabilities describes what an adapter supports. The discovery endpoints
// do not read it: ServiceProviderConfig is the same for every tenant and
// provider.
type Capabilities struct {
	SupportsPatch    bool
	SupportsGroups   bool
	MaxPageSize      int
}

// Adapter is the SCIM-shaped interface every downstream provider driver
// implements, named exactly per spec.md §4.6's method set.
type Adapter interface {
	CreateUser(ctx context.Context, tenantID string, user *scim.User) (*scim.User, error)
	GetUser(ctx context.Context, tenantID, id string) (*scim.User, error)
	UpdateUser(ctx context.Context, tenantID string, user *scim.User) (*scim.User, error)
	DeleteUser(ctx context.Context, tenantID, id string) error
	ListUsers(ctx context.Context, tenantID string, params scim.QueryParams) ([]*scim.User, error)

	CreateGroup(ctx context.Context, tenantID string, group *scim.Group) (*scim.Group, error)
	GetGroup(ctx context.Context, tenantID, id string) (*scim.Group, error)
	UpdateGroup(ctx context.Context, tenantID string, group *scim.Group) (*scim.Group, error)
	DeleteGroup(ctx context.Context, tenantID, id string) error

	AddUserToGroup(ctx context.Context, tenantID, groupID, userID string) error
	RemoveUserFromGroup(ctx context.Context, tenantID, groupID, userID string) error
	GetGroupMembers(ctx context.Context, tenantID, groupID string) ([]string, error)

	MapGroupToEntitlement(ctx context.Context, tenantID, groupName, entitlementID string) error

	CheckHealth(ctx context.Context) error
	GetCapabilities() Capabilities
}

// ErrNotFound is returned by Registry.Get for an unknown (tenant,
// provider) combination; the router maps it to HTTP 404 invalidPath per
// spec.md §4.6 ("a routing error, not a resource error").
var ErrNotFound = fmt.Errorf("adapter: no adapter registered for this tenant/provider")

type key struct {
	tenantID   string
	providerID string
}

// Registry maps (tenantID, providerID) to a registered Adapter.
type Registry struct {
	mu       sync.RWMutex
	adapters map[key]Adapter
}

func NewRegistry() *Registry {
	return &Registry{adapters: make(map[key]Adapter)}
}

func (r *Registry) Register(tenantID, providerID string, a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[key{tenantID, providerID}] = a
}

func (r *Registry) Get(tenantID, providerID string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[key{tenantID, providerID}]
	if !ok {
		return nil, ErrNotFound
	}
	return a, nil
}

// List returns every registered (tenantID, providerID) pair, primarily
// for diagnostics and the health-check sweep.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.adapters))
	for k := range r.adapters {
		out = append(out, fmt.Sprintf("%s/%s", k.tenantID, k.providerID))
	}
	return out
}

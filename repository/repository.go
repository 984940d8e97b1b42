// Package repository implements the SCIM resource contract (create, read,
// list, replace, patch, delete, membership) over a store.Store, enforcing
// tenant isolation, uniqueness, PATCH atomicity, and optimistic
// concurrency. It generalizes memory/memory.go's CRUD+versioning pattern
// and scim/server.go's mutating-op flow (generate version, check
// precondition, commit) from a single-tenant plugin to the generic,
// tenant-scoped repository.Repo[T] used by both Users and Groups.
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/marcelom97/scimgateway/scim"
	"github.com/marcelom97/scimgateway/scimerr"
	"github.com/marcelom97/scimgateway/store"
	"github.com/marcelom97/scimgateway/store/translate"
)

// Resource is the constraint every type stored through Repo[T] satisfies.
type Resource interface {
	scim.Identifiable
	scim.Tenanted
}

// NaturalKeyFunc extracts the uniqueness-scope value for a resource (e.g.
// userName, displayName).
type NaturalKeyFunc[T Resource] func(T) store.NaturalKey

// ValidateFunc re-checks a resource's invariants; called once before
// create/replace and once more, per spec.md's PATCH atomicity
// requirement, after every single PATCH operation has been applied to an
// in-memory copy.
type ValidateFunc[T Resource] func(T) error

// Repo is a generic tenant-scoped repository for one resource container.
type Repo[T Resource] struct {
	store        store.Store
	container    store.Container
	resourceType string
	naturalKey   NaturalKeyFunc[T]
	validate     ValidateFunc[T]
	newZero      func() T
}

func New[T Resource](s store.Store, container store.Container, resourceType string, key NaturalKeyFunc[T], validate ValidateFunc[T], newZero func() T) *Repo[T] {
	return &Repo[T]{
		store:        s,
		container:    container,
		resourceType: resourceType,
		naturalKey:   key,
		validate:     validate,
		newZero:      newZero,
	}
}

func (r *Repo[T]) Create(ctx context.Context, tenantID string, resource T) (T, error) {
	var zero T
	if tenantID == "" {
		return zero, scimerr.Unprocessable("tenant id is required")
	}
	resource.SetTenantID(tenantID)
	if resource.GetID() == "" {
		setID(resource, uuid.New().String())
	}
	if err := r.validate(resource); err != nil {
		return zero, err
	}

	now := time.Now()
	meta := resource.GetMeta()
	if meta == nil {
		meta = &scim.Meta{ResourceType: r.resourceType}
	}
	meta.ResourceType = r.resourceType
	meta.Created = &now
	meta.LastModified = &now
	setMeta(resource, meta)

	data, err := json.Marshal(resource)
	if err != nil {
		return zero, scimerr.ServerUnavailable(fmt.Sprintf("marshal resource: %v", err))
	}

	rec := store.Record{ID: resource.GetID(), TenantID: tenantID, Data: data}
	if err := r.store.CreateItem(ctx, r.container, rec, r.naturalKey(resource)); err != nil {
		if err == store.ErrUniqueness {
			return zero, scimerr.Uniqueness(fmt.Sprintf("%s already exists", r.resourceType))
		}
		return zero, scimerr.ServerUnavailable(fmt.Sprintf("create: %v", err))
	}

	stored, err := r.store.ReadItem(ctx, r.container, tenantID, resource.GetID())
	if err != nil {
		return zero, scimerr.ServerUnavailable(fmt.Sprintf("read back after create: %v", err))
	}
	return r.decorate(resource, stored), nil
}

func (r *Repo[T]) Read(ctx context.Context, tenantID, id string) (T, error) {
	var zero T
	rec, err := r.store.ReadItem(ctx, r.container, tenantID, id)
	if err == store.ErrNotFound {
		return zero, scimerr.NotFound(r.resourceType, id)
	}
	if err != nil {
		return zero, scimerr.ServerUnavailable(fmt.Sprintf("read: %v", err))
	}
	resource := r.newZero()
	if err := json.Unmarshal(rec.Data, &resource); err != nil {
		return zero, scimerr.ServerUnavailable(fmt.Sprintf("unmarshal: %v", err))
	}
	return r.decorate(resource, rec), nil
}

func (r *Repo[T]) List(ctx context.Context, tenantID string, pred translate.Predicate) ([]T, error) {
	recs, err := r.store.QueryItems(ctx, r.container, tenantID, pred)
	if err != nil {
		return nil, scimerr.ServerUnavailable(fmt.Sprintf("query: %v", err))
	}
	out := make([]T, 0, len(recs))
	for _, rec := range recs {
		resource := r.newZero()
		if err := json.Unmarshal(rec.Data, &resource); err != nil {
			return nil, scimerr.ServerUnavailable(fmt.Sprintf("unmarshal: %v", err))
		}
		out = append(out, r.decorate(resource, rec))
	}
	return out, nil
}

// Replace implements PUT semantics: the incoming resource's body replaces
// the stored one, identity and creation metadata preserved, version
// incremented rather than reset — unlike the teacher's delete-then-
// recreate strategy, which would lose the version history spec.md
// requires.
func (r *Repo[T]) Replace(ctx context.Context, tenantID, id string, incoming T, expectedVersion string) (T, error) {
	var zero T
	current, err := r.Read(ctx, tenantID, id)
	if err != nil {
		return zero, err
	}

	setID(incoming, id)
	incoming.SetTenantID(tenantID)
	setMeta(incoming, current.GetMeta())
	if err := r.validate(incoming); err != nil {
		return zero, err
	}

	return r.commit(ctx, tenantID, incoming, expectedVersion)
}

// Patch implements PATCH atomicity per spec.md: materialize the current
// resource, apply every operation to an in-memory copy via
// scim.PatchProcessor, re-validate invariants after every operation, and
// only once the whole batch has passed commit with the stored version as the
// concurrency precondition. A validation failure at any point discards
// the copy — nothing partial is ever written.
func (r *Repo[T]) Patch(ctx context.Context, tenantID, id string, patch *scim.PatchOp, expectedVersion string) (T, error) {
	var zero T
	current, err := r.Read(ctx, tenantID, id)
	if err != nil {
		return zero, err
	}

	if err := scim.NewValidator().ValidatePatchOp(patch); err != nil {
		return zero, scimerr.InvalidSyntax(err.Error())
	}

	working := r.newZero()
	data, err := json.Marshal(current)
	if err != nil {
		return zero, scimerr.ServerUnavailable(fmt.Sprintf("marshal for patch: %v", err))
	}
	if err := json.Unmarshal(data, &working); err != nil {
		return zero, scimerr.ServerUnavailable(fmt.Sprintf("unmarshal for patch: %v", err))
	}

	processor := scim.NewPatchProcessor()
	for _, op := range patch.Operations {
		if err := processor.ApplyPatch(working, &scim.PatchOp{Schemas: patch.Schemas, Operations: []scim.PatchOperation{op}}); err != nil {
			return zero, translatePatchError(err)
		}
		if err := r.validate(working); err != nil {
			return zero, err
		}
	}

	return r.commit(ctx, tenantID, working, expectedVersion)
}

func (r *Repo[T]) commit(ctx context.Context, tenantID string, resource T, expectedVersion string) (T, error) {
	var zero T
	now := time.Now()
	meta := resource.GetMeta()
	if meta == nil {
		meta = &scim.Meta{ResourceType: r.resourceType}
	}
	meta.LastModified = &now
	setMeta(resource, meta)

	data, err := json.Marshal(resource)
	if err != nil {
		return zero, scimerr.ServerUnavailable(fmt.Sprintf("marshal: %v", err))
	}

	rec := store.Record{ID: resource.GetID(), TenantID: tenantID, Data: data}
	updated, err := r.store.UpsertItem(ctx, r.container, rec, expectedVersion, r.naturalKey(resource))
	if err == store.ErrVersionMismatch {
		return zero, scimerr.VersionMismatch(fmt.Sprintf("%s %s has been modified since it was read", r.resourceType, resource.GetID()))
	}
	if err == store.ErrUniqueness {
		return zero, scimerr.Uniqueness(fmt.Sprintf("%s already exists", r.resourceType))
	}
	if err == store.ErrNotFound {
		return zero, scimerr.NotFound(r.resourceType, resource.GetID())
	}
	if err != nil {
		return zero, scimerr.ServerUnavailable(fmt.Sprintf("commit: %v", err))
	}
	return r.decorate(resource, updated), nil
}

func (r *Repo[T]) Delete(ctx context.Context, tenantID, id string) error {
	err := r.store.DeleteItem(ctx, r.container, tenantID, id)
	if err == store.ErrNotFound {
		return scimerr.NotFound(r.resourceType, id)
	}
	if err != nil {
		return scimerr.ServerUnavailable(fmt.Sprintf("delete: %v", err))
	}
	return nil
}

func (r *Repo[T]) decorate(resource T, rec store.Record) T {
	meta := resource.GetMeta()
	if meta == nil {
		meta = &scim.Meta{ResourceType: r.resourceType}
	}
	meta.Version = fmt.Sprintf(`W/"%s"`, rec.Version)
	created := rec.Created
	lastModified := rec.LastModified
	meta.Created = &created
	meta.LastModified = &lastModified
	setMeta(resource, meta)
	resource.SetTenantID(rec.TenantID)
	return resource
}

func setID(resource any, id string) {
	switch v := resource.(type) {
	case *scim.User:
		v.ID = id
	case *scim.Group:
		v.ID = id
	}
}

func setMeta(resource any, meta *scim.Meta) {
	switch v := resource.(type) {
	case *scim.User:
		v.Meta = meta
	case *scim.Group:
		v.Meta = meta
	}
}

// translatePatchError maps the teacher's *scim.SCIMError patch failures
// onto the gateway's fixed taxonomy.
func translatePatchError(err error) error {
	if scimErr, ok := err.(*scim.SCIMError); ok {
		switch scimErr.ScimType {
		case scim.ScimTypeNoTarget:
			return scimerr.InvalidPath(scimErr.Detail)
		case scim.ScimTypeMutability:
			return scimerr.Unprocessable(scimErr.Detail)
		default:
			return scimerr.InvalidSyntax(scimErr.Detail)
		}
	}
	return scimerr.ServerUnavailable(err.Error())
}

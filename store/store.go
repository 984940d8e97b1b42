// Package store defines the partitioned document-store contract shared by
// the in-memory and Postgres backends (store/memstore, store/pgstore).
// Every operation is tenant-scoped; a Store implementation that can write
// or read across tenants is a bug, not a feature.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/marcelom97/scimgateway/store/translate"
)

// Container names the logical document collection a Record belongs to.
type Container string

const (
	ContainerUsers        Container = "users"
	ContainerGroups       Container = "groups"
	ContainerSyncState    Container = "sync-state"
	ContainerRules        Container = "transformation-rules"
	ContainerAuditLogs    Container = "audit-logs"
)

// ErrNotFound is returned by ReadItem/DeleteItem when no record matches.
var ErrNotFound = errors.New("store: item not found")

// ErrVersionMismatch is returned by UpsertItem when the caller's expected
// version does not match the version currently stored.
var ErrVersionMismatch = errors.New("store: version mismatch")

// ErrUniqueness is returned by CreateItem/UpsertItem when a natural-key
// uniqueness constraint (e.g. userName per tenant) would be violated.
var ErrUniqueness = errors.New("store: uniqueness constraint violated")

// Record is the backend-neutral unit of storage: a JSON document plus the
// partition key, identity, and optimistic-concurrency version.
type Record struct {
	ID           string
	TenantID     string
	Data         json.RawMessage
	Version      string
	Created      time.Time
	LastModified time.Time
}

// NaturalKey identifies the uniqueness scope for a container — e.g.
// ("userName", value) for users, ("displayName", value) for groups.
type NaturalKey struct {
	Field string
	Value string
}

// Store is the contract every backend (memstore, pgstore) implements.
// Implementations MUST reject operations carrying an empty TenantID.
type Store interface {
	// CreateItem inserts a new record. NaturalKey, if non-zero, is
	// enforced unique within (tenant, container).
	CreateItem(ctx context.Context, c Container, rec Record, key NaturalKey) error

	// ReadItem fetches a single record by (tenant, id).
	ReadItem(ctx context.Context, c Container, tenantID, id string) (Record, error)

	// UpsertItem replaces an existing record's Data, enforcing that the
	// stored version equals expectedVersion. An empty expectedVersion
	// means "no concurrency check" (used for internal/system writes).
	// Returns the record with its newly minted Version.
	UpsertItem(ctx context.Context, c Container, rec Record, expectedVersion string, key NaturalKey) (Record, error)

	// DeleteItem removes a record by (tenant, id).
	DeleteItem(ctx context.Context, c Container, tenantID, id string) error

	// QueryItems returns every record in (tenant, container) matching
	// pred, unsorted and unpaginated — callers apply ordering/pagination
	// themselves so both backends share one code path for it.
	QueryItems(ctx context.Context, c Container, tenantID string, pred translate.Predicate) ([]Record, error)
}

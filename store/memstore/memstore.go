// Package memstore is the in-process Store backend used by tests and the
// in-memory example entrypoint. Grounded on memory/memory.go's map+mutex
// plugin, generalized from a single flat map per resource kind to
// map[tenant][container][id] so the same code exercises tenant isolation
// that the teacher's single-tenant plugin never had to.
package memstore

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/marcelom97/scimgateway/store"
	"github.com/marcelom97/scimgateway/store/translate"
)

type tenantData map[store.Container]map[string]store.Record

// Store is an in-memory, tenant-partitioned implementation of store.Store.
type Store struct {
	mu   sync.RWMutex
	data map[string]tenantData
}

func New() *Store {
	return &Store{data: make(map[string]tenantData)}
}

func (s *Store) container(tenantID string, c store.Container) map[string]store.Record {
	td, ok := s.data[tenantID]
	if !ok {
		td = make(tenantData)
		s.data[tenantID] = td
	}
	m, ok := td[c]
	if !ok {
		m = make(map[string]store.Record)
		td[c] = m
	}
	return m
}

func (s *Store) naturalKeyConflict(items map[string]store.Record, key store.NaturalKey, excludeID string) bool {
	if key.Field == "" {
		return false
	}
	for id, rec := range items {
		if id == excludeID {
			continue
		}
		if natural(rec.Data, key.Field) == key.Value {
			return true
		}
	}
	return false
}

// nextVersion returns the next value in the per-record monotonic version
// sequence: "1" for a brand new record (current == ""), current+1 for every
// subsequent update. The repository wraps this bare token as a weak ETag
// (W/"<n>"), so version 1 of any newly created resource renders as W/"1"
// per spec.md §4.3, and every mutation strictly increments it.
func nextVersion(current string) string {
	n, err := strconv.ParseInt(current, 10, 64)
	if err != nil {
		n = 0
	}
	return strconv.FormatInt(n+1, 10)
}

func (s *Store) CreateItem(ctx context.Context, c store.Container, rec store.Record, key store.NaturalKey) error {
	if rec.TenantID == "" {
		return fmt.Errorf("memstore: CreateItem requires a tenant id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.container(rec.TenantID, c)
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if _, exists := items[rec.ID]; exists {
		return fmt.Errorf("memstore: id %s already exists: %w", rec.ID, store.ErrUniqueness)
	}
	if s.naturalKeyConflict(items, key, "") {
		return store.ErrUniqueness
	}

	now := time.Now()
	rec.Created = now
	rec.LastModified = now
	rec.Version = nextVersion("")
	items[rec.ID] = rec
	return nil
}

func (s *Store) ReadItem(ctx context.Context, c store.Container, tenantID, id string) (store.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := s.container(tenantID, c)
	rec, ok := items[id]
	if !ok {
		return store.Record{}, store.ErrNotFound
	}
	return rec, nil
}

func (s *Store) UpsertItem(ctx context.Context, c store.Container, rec store.Record, expectedVersion string, key store.NaturalKey) (store.Record, error) {
	if rec.TenantID == "" {
		return store.Record{}, fmt.Errorf("memstore: UpsertItem requires a tenant id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.container(rec.TenantID, c)
	existing, ok := items[rec.ID]
	if !ok {
		return store.Record{}, store.ErrNotFound
	}
	if expectedVersion != "" && existing.Version != expectedVersion {
		return store.Record{}, store.ErrVersionMismatch
	}
	if s.naturalKeyConflict(items, key, rec.ID) {
		return store.Record{}, store.ErrUniqueness
	}

	now := time.Now()
	existing.Data = rec.Data
	existing.LastModified = now
	existing.Version = nextVersion(existing.Version)
	items[rec.ID] = existing
	return existing, nil
}

func (s *Store) DeleteItem(ctx context.Context, c store.Container, tenantID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.container(tenantID, c)
	if _, ok := items[id]; !ok {
		return store.ErrNotFound
	}
	delete(items, id)
	return nil
}

func (s *Store) QueryItems(ctx context.Context, c store.Container, tenantID string, pred translate.Predicate) ([]store.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := s.container(tenantID, c)
	result := make([]store.Record, 0, len(items))
	for _, rec := range items {
		var decoded any
		if pred.Filter != nil {
			decoded = decodeForMatch(rec.Data)
		}
		if pred.MatchesMem(rec.TenantID, decoded) {
			result = append(result, rec)
		}
	}
	return result, nil
}

// Package pgstore is the Postgres-backed Store implementation, grounded on
// examples/postgres/plugin.go's sqlx connection tuning and
// _examples/cvs0986-ARauth/storage/postgres/scim_repository.go's
// tenant-scoped query shape. A single JSONB table holds every container;
// the teacher's per-resource-kind table pair (users/groups) becomes one
// generic schema keyed by (tenant_id, container, id) so store/translate's
// compiled Predicate renders the same WHERE clause regardless of which
// container it targets.
package pgstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	_ "github.com/lib/pq"

	"github.com/marcelom97/scimgateway/store"
	"github.com/marcelom97/scimgateway/store/translate"
)

// Store is a Postgres-backed, tenant-partitioned store.Store.
type Store struct {
	db *sqlx.DB
}

// Config mirrors the pool tuning the teacher's postgres example applies to
// its single *sqlx.DB.
type Config struct {
	ConnString        string
	MaxOpenConns      int
	MaxIdleConns      int
	ConnMaxLifetime   time.Duration
	PingTimeout       time.Duration
}

func DefaultConfig(connString string) Config {
	return Config{
		ConnString:      connString,
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: 3 * time.Minute,
		PingTimeout:     10 * time.Second,
	}
}

func Open(cfg Config) (*Store, error) {
	db, err := sqlx.Open("postgres", cfg.ConnString)
	if err != nil {
		return nil, fmt.Errorf("pgstore: open: %w", err)
	}
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close() //nolint:errcheck
		return nil, fmt.Errorf("pgstore: ping: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close() //nolint:errcheck
		return nil, fmt.Errorf("pgstore: init schema: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS scim_documents (
			id            TEXT NOT NULL,
			tenant_id     TEXT NOT NULL,
			container     TEXT NOT NULL,
			data          JSONB NOT NULL,
			version       TEXT NOT NULL,
			created_at    TIMESTAMPTZ NOT NULL,
			updated_at    TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (tenant_id, container, id)
		)`)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_scim_documents_data ON scim_documents USING GIN(data)`)
	return err
}

type row struct {
	ID        string    `db:"id"`
	TenantID  string    `db:"tenant_id"`
	Container string    `db:"container"`
	Data      []byte    `db:"data"`
	Version   string    `db:"version"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r row) toRecord() store.Record {
	return store.Record{
		ID:           r.ID,
		TenantID:     r.TenantID,
		Data:         r.Data,
		Version:      r.Version,
		Created:      r.CreatedAt,
		LastModified: r.UpdatedAt,
	}
}

// firstVersion is the version every record is minted with on CreateItem,
// matching spec.md §4.3's `version="W/\"1\""` on the first write.
const firstVersion = "1"

func (s *Store) CreateItem(ctx context.Context, c store.Container, rec store.Record, key store.NaturalKey) error {
	if rec.TenantID == "" {
		return fmt.Errorf("pgstore: CreateItem requires a tenant id")
	}
	if key.Field != "" {
		conflict, err := s.naturalKeyExists(ctx, c, rec.TenantID, key, "")
		if err != nil {
			return err
		}
		if conflict {
			return store.ErrUniqueness
		}
	}

	now := time.Now()
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`
		INSERT INTO scim_documents (id, tenant_id, container, data, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		rec.ID, rec.TenantID, string(c), []byte(rec.Data), firstVersion, now, now)
	if err != nil {
		return fmt.Errorf("pgstore: create: %w", err)
	}
	return nil
}

func (s *Store) ReadItem(ctx context.Context, c store.Container, tenantID, id string) (store.Record, error) {
	var r row
	err := s.db.GetContext(ctx, &r, s.db.Rebind(`
		SELECT id, tenant_id, container, data, version, created_at, updated_at
		FROM scim_documents WHERE tenant_id = ? AND container = ? AND id = ?`),
		tenantID, string(c), id)
	if err == sql.ErrNoRows {
		return store.Record{}, store.ErrNotFound
	}
	if err != nil {
		return store.Record{}, fmt.Errorf("pgstore: read: %w", err)
	}
	return r.toRecord(), nil
}

func (s *Store) UpsertItem(ctx context.Context, c store.Container, rec store.Record, expectedVersion string, key store.NaturalKey) (store.Record, error) {
	if rec.TenantID == "" {
		return store.Record{}, fmt.Errorf("pgstore: UpsertItem requires a tenant id")
	}
	if key.Field != "" {
		conflict, err := s.naturalKeyExists(ctx, c, rec.TenantID, key, rec.ID)
		if err != nil {
			return store.Record{}, err
		}
		if conflict {
			return store.Record{}, store.ErrUniqueness
		}
	}

	now := time.Now()

	// version increments in SQL, not in Go, so the read-modify-write of the
	// counter is atomic under concurrent updates to the same row: the row
	// that wins the UPDATE's WHERE match is the one whose version advances.
	var newVersion string
	var err error
	if expectedVersion == "" {
		err = s.db.GetContext(ctx, &newVersion, s.db.Rebind(`
			UPDATE scim_documents SET data = ?, version = (version::bigint + 1)::text, updated_at = ?
			WHERE tenant_id = ? AND container = ? AND id = ?
			RETURNING version`),
			[]byte(rec.Data), now, rec.TenantID, string(c), rec.ID)
	} else {
		err = s.db.GetContext(ctx, &newVersion, s.db.Rebind(`
			UPDATE scim_documents SET data = ?, version = (version::bigint + 1)::text, updated_at = ?
			WHERE tenant_id = ? AND container = ? AND id = ? AND version = ?
			RETURNING version`),
			[]byte(rec.Data), now, rec.TenantID, string(c), rec.ID, expectedVersion)
	}
	if err == sql.ErrNoRows {
		existing, readErr := s.ReadItem(ctx, c, rec.TenantID, rec.ID)
		if readErr == store.ErrNotFound {
			return store.Record{}, store.ErrNotFound
		}
		if readErr == nil && expectedVersion != "" && existing.Version != expectedVersion {
			return store.Record{}, store.ErrVersionMismatch
		}
		return store.Record{}, store.ErrVersionMismatch
	}
	if err != nil {
		return store.Record{}, fmt.Errorf("pgstore: upsert: %w", err)
	}

	rec.Version = newVersion
	rec.LastModified = now
	return rec, nil
}

func (s *Store) DeleteItem(ctx context.Context, c store.Container, tenantID, id string) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`
		DELETE FROM scim_documents WHERE tenant_id = ? AND container = ? AND id = ?`),
		tenantID, string(c), id)
	if err != nil {
		return fmt.Errorf("pgstore: delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("pgstore: delete rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) QueryItems(ctx context.Context, c store.Container, tenantID string, pred translate.Predicate) ([]store.Record, error) {
	builder := translate.NewSQLBuilder("data", attrMappingFor(c))
	where, params := builder.RenderWhere(pred)
	// tenantID argument is already folded into pred by store/translate.Compile;
	// container is scoped explicitly since one table serves every container.
	query := s.db.Rebind(fmt.Sprintf(`
		SELECT id, tenant_id, container, data, version, created_at, updated_at
		FROM scim_documents WHERE container = ? AND (%s)`, where))
	args := append([]any{string(c)}, params...)

	var rows []row
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("pgstore: query: %w", err)
	}

	records := make([]store.Record, 0, len(rows))
	for _, r := range rows {
		records = append(records, r.toRecord())
	}
	return records, nil
}

// naturalKeyExists enforces the case-sensitive-equal uniqueness policy
// spec.md §3/§9 deliberately chooses for userName/displayName.
func (s *Store) naturalKeyExists(ctx context.Context, c store.Container, tenantID string, key store.NaturalKey, excludeID string) (bool, error) {
	query := s.db.Rebind(`
		SELECT COUNT(*) FROM scim_documents
		WHERE tenant_id = ? AND container = ? AND id <> ? AND data->>? = ?`)
	var count int
	if err := s.db.GetContext(ctx, &count, query, tenantID, string(c), excludeID, key.Field, key.Value); err != nil {
		return false, fmt.Errorf("pgstore: natural key check: %w", err)
	}
	return count > 0, nil
}

func attrMappingFor(c store.Container) translate.AttrMapping {
	switch c {
	case store.ContainerUsers:
		return translate.UserAttrMapping
	case store.ContainerGroups:
		return translate.GroupAttrMapping
	default:
		return translate.AttrMapping{}
	}
}

// Package router implements the gateway's HTTP surface: /scim/v2/Users
// and /scim/v2/Groups CRUD, discovery endpoints, and .search, wired to
// the repository, transform, and adapter layers. Grounded on the
// teacher's scim/server.go (Go 1.22+ net/http.ServeMux pattern routing,
// the handleX/x method-pair split, handlePluginError's error-translation
// shape) generalized from a single `{plugin}` path segment to a tenant
// carried in authctx.Context rather than the URL, per spec.md §6.
package router

import (
	"log/slog"
	"net/http"

	"github.com/marcelom97/scimgateway/adapter"
	"github.com/marcelom97/scimgateway/audit"
	"github.com/marcelom97/scimgateway/repository"
	"github.com/marcelom97/scimgateway/scim"
	"github.com/marcelom97/scimgateway/transform"
)

// Router wires the repository, transform engine, and adapter registry
// behind the SCIM HTTP surface.
type Router struct {
	users  *repository.Repo[*scim.User]
	groups *repository.Repo[*scim.Group]

	engine   *transform.Engine
	adapters *adapter.Registry

	handler *scim.Handler
	etagGen *scim.ETagGenerator
	audit   *audit.BestEffortSink
	log     *slog.Logger

	mux *http.ServeMux
}

// Config bundles Router's collaborators; every field is required except
// Logger and AuditSink, which default to a discard logger and a no-op sink.
type Config struct {
	Users     *repository.Repo[*scim.User]
	Groups    *repository.Repo[*scim.Group]
	Engine    *transform.Engine
	Adapters  *adapter.Registry
	BaseURL   string
	Logger    *slog.Logger
	AuditSink audit.Sink
}

func New(cfg Config) *Router {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(discard{}, nil))
	}
	sinkLog := &slogAdapter{cfg.Logger}
	auditSink := cfg.AuditSink
	if auditSink == nil {
		auditSink = audit.NopSink{}
	}

	rt := &Router{
		users:    cfg.Users,
		groups:   cfg.Groups,
		engine:   cfg.Engine,
		adapters: cfg.Adapters,
		handler:  scim.NewHandler(cfg.BaseURL),
		etagGen:  scim.NewETagGenerator(),
		audit:    audit.NewBestEffortSink(auditSink, sinkLog),
		log:      cfg.Logger,
		mux:      http.NewServeMux(),
	}
	rt.setupRoutes()
	return rt
}

func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rt.mux.ServeHTTP(w, r)
}

func (rt *Router) setupRoutes() {
	rt.mux.HandleFunc("GET /scim/v2/ServiceProviderConfig", rt.handleServiceProviderConfig)
	rt.mux.HandleFunc("GET /scim/v2/ResourceTypes", rt.handleResourceTypes)
	rt.mux.HandleFunc("GET /scim/v2/Schemas", rt.handleSchemas)

	rt.mux.HandleFunc("POST /scim/v2/.search", rt.handleSearch)
	rt.mux.HandleFunc("POST /scim/v2/Users/.search", rt.handleSearch)
	rt.mux.HandleFunc("POST /scim/v2/Groups/.search", rt.handleSearch)

	rt.mux.HandleFunc("GET /scim/v2/Users", rt.handleListUsers)
	rt.mux.HandleFunc("POST /scim/v2/Users", rt.handleCreateUser)
	rt.mux.HandleFunc("GET /scim/v2/Users/{id}", rt.handleGetUser)
	rt.mux.HandleFunc("PUT /scim/v2/Users/{id}", rt.handleReplaceUser)
	rt.mux.HandleFunc("PATCH /scim/v2/Users/{id}", rt.handlePatchUser)
	rt.mux.HandleFunc("DELETE /scim/v2/Users/{id}", rt.handleDeleteUser)

	rt.mux.HandleFunc("GET /scim/v2/Groups", rt.handleListGroups)
	rt.mux.HandleFunc("POST /scim/v2/Groups", rt.handleCreateGroup)
	rt.mux.HandleFunc("GET /scim/v2/Groups/{id}", rt.handleGetGroup)
	rt.mux.HandleFunc("PUT /scim/v2/Groups/{id}", rt.handleReplaceGroup)
	rt.mux.HandleFunc("PATCH /scim/v2/Groups/{id}", rt.handlePatchGroup)
	rt.mux.HandleFunc("DELETE /scim/v2/Groups/{id}", rt.handleDeleteGroup)
}

// writeError mirrors the teacher's handlePluginError: a *scimerr.Error
// carries its own status/scimType, anything else falls back to 500.
func (rt *Router) writeError(w http.ResponseWriter, err error) {
	status, scimType, detail := mapError(err)
	rt.handler.WriteError(w, status, detail, scimType)
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

type slogAdapter struct{ l *slog.Logger }

func (a *slogAdapter) Error(msg string, args ...any) { a.l.Error(msg, args...) }

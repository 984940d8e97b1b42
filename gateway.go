package scimgateway

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/marcelom97/scimgateway/adapter"
	"github.com/marcelom97/scimgateway/authctx"
	"github.com/marcelom97/scimgateway/repository"
	"github.com/marcelom97/scimgateway/router"
	"github.com/marcelom97/scimgateway/scim"
	"github.com/marcelom97/scimgateway/store"
	"github.com/marcelom97/scimgateway/store/memstore"
	"github.com/marcelom97/scimgateway/transform"
	"github.com/marcelom97/scimgateway/transform/cache"
)

// defaultTenant is the tenant ID Gateway uses for its single, implicit
// tenant — this type is a single-tenant convenience embedding surface
// over the multi-tenant router/adapter/transform stack cmd/gatewayd
// assembles explicitly for the many-tenant case.
const defaultTenant = "default"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Gateway is a single-process, single-tenant SCIM gateway embedding
// surface: register one or more downstream provider plugins by name,
// Initialize, and either take the resulting http.Handler or call Start
// to serve it directly. Generalizes the teacher's single-plugin
// Gateway/RegisterPlugin/Initialize/Start API onto the adapter.Registry
// + router.Router stack the multi-tenant gateway (cmd/gatewayd) also
// uses, so an embedder gets the same transform/audit/error-mapping
// behavior without running the full config-driven binary.
type Gateway struct {
	baseURL string
	port    int

	store     store.Store
	adapters  *adapter.Registry
	engine    *transform.Engine
	ruleStore *transform.RuleStore

	handler http.Handler
	logger  *slog.Logger
}

// New creates a Gateway listening on port, rooted at baseURL, backed by
// an in-memory store and cache. Use RegisterPlugin to attach downstream
// providers before calling Initialize or Start.
func New(baseURL string, port int) *Gateway {
	s := memstore.New()
	regexCache := cache.NewRegexCache(5 * time.Second)
	validator := transform.NewValidator(regexCache)
	ruleStore := transform.NewRuleStore(s, validator, nil)
	ruleCache := cache.NewRuleCache(cache.NewMemoryBackend(), 5*time.Minute, ruleStore.ListEnabledRules)
	ruleStore.SetCache(ruleCache)

	return &Gateway{
		baseURL:   baseURL,
		port:      port,
		store:     s,
		adapters:  adapter.NewRegistry(),
		engine:    transform.NewEngine(ruleCache, regexCache, discardLogger().Info),
		ruleStore: ruleStore,
		logger:    discardLogger(),
	}
}

// NewWithDefaults creates a Gateway with no base URL or port set, for
// embedders that only need Handler(), not Start().
func NewWithDefaults() *Gateway {
	return New("", 0)
}

// SetLogger sets the optional logger for the gateway.
// Pass nil to disable logging (default behavior).
func (g *Gateway) SetLogger(logger *slog.Logger) {
	if logger == nil {
		g.logger = discardLogger()
	} else {
		g.logger = logger
	}
}

// RegisterPlugin attaches a downstream provider plugin under name,
// wrapping it as an adapter.Adapter. p is typically a *memory.Getter or
// any other scim.PluginGetter implementation.
func (g *Gateway) RegisterPlugin(name string, p scim.PluginGetter, caps adapter.Capabilities) {
	g.adapters.Register(defaultTenant, name, adapter.NewPluginAdapter(name, p, caps))
}

// RuleStore exposes the gateway's transformation-rule persistence layer
// so an embedder can seed or manage rules before serving traffic.
func (g *Gateway) RuleStore() *transform.RuleStore {
	return g.ruleStore
}

// Initialize builds the gateway's HTTP handler (must be called before
// Start, unless Start is called directly, which does so implicitly).
func (g *Gateway) Initialize() error {
	if len(g.adapters.List()) == 0 {
		err := fmt.Errorf("no plugins registered: at least one plugin must be registered via RegisterPlugin() before initialization")
		g.logger.Error("plugin registration validation failed", "error", err)
		return err
	}

	g.logger.Info("initializing SCIM gateway", "base_url", g.baseURL, "port", g.port)

	rt := router.New(router.Config{
		Users:    repository.NewUserRepo(g.store),
		Groups:   repository.NewGroupRepo(g.store),
		Engine:   g.engine,
		Adapters: g.adapters,
		BaseURL:  g.baseURL,
		Logger:   g.logger,
	})

	var handler http.Handler = rt
	handler = LoggingMiddleware(g.logger)(handler)
	handler = authctx.Middleware(handler)
	g.handler = handler

	g.logger.Info("gateway initialized successfully", "providers", g.adapters.List())
	return nil
}

// Handler returns the HTTP handler for the gateway.
// Returns an error if the gateway has not been initialized.
func (g *Gateway) Handler() (http.Handler, error) {
	if g.handler == nil {
		return nil, fmt.Errorf("gateway not initialized - call Initialize() first")
	}
	return g.handler, nil
}

// Start starts the gateway HTTP server (blocking).
func (g *Gateway) Start() error {
	if g.handler == nil {
		if err := g.Initialize(); err != nil {
			g.logger.Error("failed to initialize gateway", "error", err)
			return err
		}
	}

	if g.port == 0 {
		return fmt.Errorf("port is required for standalone mode - use Handler() for embedded mode")
	}

	addr := fmt.Sprintf(":%d", g.port)
	g.logger.Info("starting SCIM gateway", "addr", addr)
	err := http.ListenAndServe(addr, g.handler)
	if err != nil {
		g.logger.Error("gateway server stopped", "error", err)
	}
	return err
}

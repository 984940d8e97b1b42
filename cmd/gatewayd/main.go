// Command gatewayd wires the gateway's storage, cache, transform, adapter,
// and HTTP layers together and serves them, generalizing the teacher's
// examples/postgres/main.go single-plugin wiring into a multi-tenant,
// config-driven assembly.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	scimgateway "github.com/marcelom97/scimgateway"
	"github.com/marcelom97/scimgateway/adapter"
	"github.com/marcelom97/scimgateway/audit"
	"github.com/marcelom97/scimgateway/authctx"
	"github.com/marcelom97/scimgateway/internal/config"
	"github.com/marcelom97/scimgateway/internal/logging"
	"github.com/marcelom97/scimgateway/memory"
	"github.com/marcelom97/scimgateway/repository"
	"github.com/marcelom97/scimgateway/router"
	"github.com/marcelom97/scimgateway/store"
	"github.com/marcelom97/scimgateway/store/memstore"
	"github.com/marcelom97/scimgateway/store/pgstore"
	"github.com/marcelom97/scimgateway/transform"
	"github.com/marcelom97/scimgateway/transform/cache"
)

func main() {
	configPath := flag.String("config", "", "path to gatewayd YAML config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logger, flushLogs := logging.New(logging.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		FilePath:   cfg.Logging.FilePath,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	defer flushLogs()

	resourceStore, closeStore, err := buildStore(cfg.Store)
	if err != nil {
		log.Fatalf("build store: %v", err)
	}
	defer closeStore()

	cacheBackend, err := buildCacheBackend(cfg.Cache)
	if err != nil {
		log.Fatalf("build cache backend: %v", err)
	}

	regexCache := cache.NewRegexCache(5 * time.Second)
	validator := transform.NewValidator(regexCache)

	ttl, err := time.ParseDuration(cfg.Cache.TTL)
	if err != nil {
		ttl = 5 * time.Minute
	}

	ruleStore := transform.NewRuleStore(resourceStore, validator, nil)
	ruleCache := cache.NewRuleCache(cacheBackend, ttl, ruleStore.ListEnabledRules)
	ruleStore.SetCache(ruleCache)

	engine := transform.NewEngine(ruleCache, regexCache, logger.Info)

	users := repository.NewUserRepo(resourceStore)
	groups := repository.NewGroupRepo(resourceStore)

	adapters := adapter.NewRegistry()
	registerProviders(adapters, cfg.Tenants, logger)

	rt := router.New(router.Config{
		Users:     users,
		Groups:    groups,
		Engine:    engine,
		Adapters:  adapters,
		BaseURL:   cfg.Server.BaseURL,
		Logger:    logger,
		AuditSink: audit.NopSink{},
	})

	var handler http.Handler = rt
	handler = scimgateway.LoggingMiddleware(logger)(handler)
	handler = authctx.Middleware(handler)

	addr := cfg.Server.Host + ":" + strconv.Itoa(cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting scim gateway", "addr", addr, "store", cfg.Store.Driver, "cache", cfg.Cache.Driver)
		var err error
		if cfg.Server.TLS.Enabled {
			err = srv.ListenAndServeTLS(cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			logger.Error("server stopped unexpectedly", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("shutting down")
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}

func buildStore(cfg config.StoreConfig) (store.Store, func(), error) {
	switch cfg.Driver {
	case "postgres":
		pgCfg := pgstore.DefaultConfig(cfg.DSN)
		if cfg.MaxOpenConns > 0 {
			pgCfg.MaxOpenConns = cfg.MaxOpenConns
		}
		if cfg.MaxIdleConns > 0 {
			pgCfg.MaxIdleConns = cfg.MaxIdleConns
		}
		if d, err := time.ParseDuration(cfg.ConnMaxLifetime); err == nil && d > 0 {
			pgCfg.ConnMaxLifetime = d
		}
		s, err := pgstore.Open(pgCfg)
		if err != nil {
			return nil, func() {}, err
		}
		return s, func() {}, nil
	default:
		s := memstore.New()
		return s, func() {}, nil
	}
}

func buildCacheBackend(cfg config.CacheConfig) (cache.Backend, error) {
	if cfg.Driver != "redis" {
		return cache.NewMemoryBackend(), nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return cache.NewRedisBackend(client), nil
}

// registerProviders wires every tenant's configured providers into the
// adapter registry. Only the "plugin" driver (an in-process provider
// plugin wrapped as a downstream adapter) is built here; "http"/"ldap"
// drivers are left for a concrete transport implementation to register.
func registerProviders(registry *adapter.Registry, tenants []config.TenantConfig, logger interface {
	Warn(msg string, args ...any)
}) {
	for _, t := range tenants {
		for _, p := range t.Providers {
			if p.Driver != "plugin" {
				logger.Warn("skipping provider with unimplemented driver", "tenant", t.ID, "provider", p.ID, "driver", p.Driver)
				continue
			}
			mem := memory.New(p.ID)
			pluginGetter := memory.NewGetter(mem)
			a := adapter.NewPluginAdapter(p.ID, pluginGetter, adapter.Capabilities{
				SupportsPatch:  true,
				SupportsGroups: true,
				MaxPageSize:    200,
			})
			registry.Register(t.ID, p.ID, a)
		}
	}
}

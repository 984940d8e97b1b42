// Package config loads the gateway's YAML configuration, generalizing the
// teacher's single-tenant config.Config (one GatewayConfig + []PluginConfig)
// into a multi-tenant shape: each tenant owns its own set of downstream
// provider connections and pool tuning, and store/cache backends are
// configured once at the gateway level rather than per plugin.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation error [%s]: %s", e.Field, e.Message)
}

// ValidationErrors represents multiple validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "config validation failed with %d errors:\n", len(e))
	for i, err := range e {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

// Config is the gateway's top-level configuration.
type Config struct {
	Server  ServerConfig          `yaml:"server"`
	Store   StoreConfig           `yaml:"store"`
	Cache   CacheConfig           `yaml:"cache"`
	Logging LoggingConfig         `yaml:"logging"`
	Tenants []TenantConfig        `yaml:"tenants"`
}

type ServerConfig struct {
	BaseURL string   `yaml:"baseURL"`
	Host    string   `yaml:"host"`
	Port    int      `yaml:"port"`
	TLS     TLSConfig `yaml:"tls"`
}

type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"certFile"`
	KeyFile  string `yaml:"keyFile"`
}

// StoreConfig selects and tunes the canonical resource store backend.
type StoreConfig struct {
	Driver          string `yaml:"driver"` // memory, postgres
	DSN             string `yaml:"dsn"`
	MaxOpenConns    int    `yaml:"maxOpenConns"`
	MaxIdleConns    int    `yaml:"maxIdleConns"`
	ConnMaxLifetime string `yaml:"connMaxLifetime"`
}

// CacheConfig selects and tunes the rule/regex cache backend.
type CacheConfig struct {
	Driver   string `yaml:"driver"` // memory, redis
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	TTL      string `yaml:"ttl"`
}

type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	Output     string `yaml:"output"`
	FilePath   string `yaml:"filePath"`
	MaxSizeMB  int    `yaml:"maxSizeMB"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
}

// TenantConfig configures one tenant's set of downstream providers.
type TenantConfig struct {
	ID        string           `yaml:"id"`
	Providers []ProviderConfig `yaml:"providers"`
}

// ProviderConfig configures one downstream adapter connection, generalizing
// the teacher's PluginConfig from a single global plugin to a (tenant,
// provider) pair with its own pool tuning.
type ProviderConfig struct {
	ID              string         `yaml:"id"`
	Driver          string         `yaml:"driver"` // plugin, http, ldap
	Config          map[string]any `yaml:"config"`
	PoolMaxSize     int            `yaml:"poolMaxSize"`
	PoolMaxIdle     int            `yaml:"poolMaxIdle"`
	ConnMaxLifetime string         `yaml:"connMaxLifetime"`
	Auth            *AuthConfig    `yaml:"auth"`
}

// AuthConfig configures how the gateway authenticates to a downstream
// provider (not how callers authenticate to the gateway — that's authctx).
type AuthConfig struct {
	Type   string      `yaml:"type"` // basic, bearer, none
	Basic  *BasicAuth  `yaml:"basic"`
	Bearer *BearerAuth `yaml:"bearer"`
}

type BasicAuth struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type BearerAuth struct {
	Token string `yaml:"token"`
}

func (a *AuthConfig) Validate(fieldPrefix string) error {
	var errs ValidationErrors
	validTypes := map[string]bool{"basic": true, "bearer": true, "none": true, "": true}
	if !validTypes[strings.ToLower(a.Type)] {
		errs = append(errs, ValidationError{
			Field:   fieldPrefix + ".type",
			Message: fmt.Sprintf("invalid auth type %q: must be 'basic', 'bearer', or 'none'", a.Type),
		})
	}
	switch strings.ToLower(a.Type) {
	case "basic":
		if a.Basic == nil || a.Basic.Username == "" || a.Basic.Password == "" {
			errs = append(errs, ValidationError{Field: fieldPrefix + ".basic", Message: "username and password are required for basic auth"})
		}
	case "bearer":
		if a.Bearer == nil || a.Bearer.Token == "" {
			errs = append(errs, ValidationError{Field: fieldPrefix + ".bearer", Message: "token is required for bearer auth"})
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Validate checks the whole configuration, collecting every violation
// rather than failing on the first one, matching the teacher's
// Config.Validate shape.
func (c *Config) Validate() error {
	var errs ValidationErrors

	if c.Server.BaseURL == "" {
		errs = append(errs, ValidationError{Field: "server.baseURL", Message: "baseURL cannot be empty"})
	} else if parsed, err := url.Parse(c.Server.BaseURL); err != nil {
		errs = append(errs, ValidationError{Field: "server.baseURL", Message: fmt.Sprintf("invalid URL: %v", err)})
	} else if parsed.Scheme != "http" && parsed.Scheme != "https" {
		errs = append(errs, ValidationError{Field: "server.baseURL", Message: fmt.Sprintf("invalid scheme %q: must be http or https", parsed.Scheme)})
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, ValidationError{Field: "server.port", Message: fmt.Sprintf("port %d out of range 1-65535", c.Server.Port)})
	}

	if c.Server.TLS.Enabled {
		if c.Server.TLS.CertFile == "" {
			errs = append(errs, ValidationError{Field: "server.tls.certFile", Message: "required when TLS is enabled"})
		}
		if c.Server.TLS.KeyFile == "" {
			errs = append(errs, ValidationError{Field: "server.tls.keyFile", Message: "required when TLS is enabled"})
		}
	}

	if c.Store.Driver != "memory" && c.Store.Driver != "postgres" {
		errs = append(errs, ValidationError{Field: "store.driver", Message: fmt.Sprintf("invalid store driver %q: must be 'memory' or 'postgres'", c.Store.Driver)})
	}
	if c.Store.Driver == "postgres" && c.Store.DSN == "" {
		errs = append(errs, ValidationError{Field: "store.dsn", Message: "dsn is required for postgres store"})
	}

	if c.Cache.Driver != "memory" && c.Cache.Driver != "redis" {
		errs = append(errs, ValidationError{Field: "cache.driver", Message: fmt.Sprintf("invalid cache driver %q: must be 'memory' or 'redis'", c.Cache.Driver)})
	}
	if c.Cache.Driver == "redis" && c.Cache.Addr == "" {
		errs = append(errs, ValidationError{Field: "cache.addr", Message: "addr is required for redis cache"})
	}

	tenantIDs := make(map[string]bool)
	for i, t := range c.Tenants {
		if t.ID == "" {
			errs = append(errs, ValidationError{Field: fmt.Sprintf("tenants[%d].id", i), Message: "tenant id cannot be empty"})
			continue
		}
		if tenantIDs[t.ID] {
			errs = append(errs, ValidationError{Field: fmt.Sprintf("tenants[%d].id", i), Message: fmt.Sprintf("duplicate tenant id: %s", t.ID)})
		}
		tenantIDs[t.ID] = true

		providerIDs := make(map[string]bool)
		for j, p := range t.Providers {
			if p.ID == "" {
				errs = append(errs, ValidationError{Field: fmt.Sprintf("tenants[%d].providers[%d].id", i, j), Message: "provider id cannot be empty"})
				continue
			}
			if providerIDs[p.ID] {
				errs = append(errs, ValidationError{Field: fmt.Sprintf("tenants[%d].providers[%d].id", i, j), Message: fmt.Sprintf("duplicate provider id: %s", p.ID)})
			}
			providerIDs[p.ID] = true

			if p.Auth != nil {
				if err := p.Auth.Validate(fmt.Sprintf("tenants[%d].providers[%d].auth", i, j)); err != nil {
					if verrs, ok := err.(ValidationErrors); ok {
						errs = append(errs, verrs...)
					}
				}
			}
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Default returns a single-tenant, in-memory-everything configuration
// suitable for local development, mirroring the teacher's DefaultConfig.
func Default() *Config {
	return &Config{
		Server: ServerConfig{BaseURL: "http://localhost:8880", Host: "0.0.0.0", Port: 8880},
		Store:  StoreConfig{Driver: "memory"},
		Cache:  CacheConfig{Driver: "memory", TTL: "5m"},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Tenants: []TenantConfig{
			{ID: "default"},
		},
	}
}

// Load reads YAML from path (if it exists), expands ${VAR}-style
// environment references the same way the teacher's loader does, overlays
// process environment variables, and fills in defaults for anything left
// unset.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			expanded := os.ExpandEnv(string(data))
			*cfg = Config{}
			if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
			applyDefaults(cfg)
		}
	}

	loadFromEnv(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	defaults := Default()
	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = defaults.Server.BaseURL
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = defaults.Server.Port
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = defaults.Server.Host
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = defaults.Store.Driver
	}
	if cfg.Cache.Driver == "" {
		cfg.Cache.Driver = defaults.Cache.Driver
	}
	if cfg.Cache.TTL == "" {
		cfg.Cache.TTL = defaults.Cache.TTL
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = defaults.Logging.Level
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = defaults.Logging.Format
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = defaults.Logging.Output
	}
	if len(cfg.Tenants) == 0 {
		cfg.Tenants = defaults.Tenants
	}
}

func loadFromEnv(cfg *Config) {
	if v := os.Getenv("SERVER_PORT"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Server.Port)
	}
	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("STORE_DSN"); v != "" {
		cfg.Store.DSN = v
	}
	if v := os.Getenv("CACHE_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
	if v := os.Getenv("CACHE_PASSWORD"); v != "" {
		cfg.Cache.Password = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
}

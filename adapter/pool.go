package adapter

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Conn is a leased, poolable handle to a downstream provider connection.
// Concrete adapters wrap their own client (an *sqlx.DB, an http.Client, an
// SDK session) behind this so the pool never needs to know the transport.
type Conn interface {
	// Ping is a cheap liveness check; the pool itself never calls it.
	Ping(ctx context.Context) error
	// Close releases the underlying transport resource.
	Close() error
}

// Factory constructs a new Conn for a (tenant, provider) pair, mirroring
// examples/postgres/plugin.go's NewPostgresPlugin dial-and-configure step.
type Factory func(ctx context.Context, tenantID, providerID string) (Conn, error)

// PoolConfig tunes a Pool the same way examples/postgres/plugin.go tunes
// its *sql.DB (SetMaxOpenConns/SetMaxIdleConns/SetConnMaxLifetime), lifted
// one level up to apply across arbitrary provider transports.
type PoolConfig struct {
	MaxSize         int
	MaxIdle         int
	ConnMaxLifetime time.Duration
	IdleTimeout     time.Duration
	LeaseTimeout    time.Duration
}

func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxSize:         10,
		MaxIdle:         2,
		ConnMaxLifetime: 30 * time.Minute,
		IdleTimeout:     5 * time.Minute,
		LeaseTimeout:    10 * time.Second,
	}
}

type pooledConn struct {
	conn      Conn
	createdAt time.Time
	lastUsed  time.Time
}

// Stats reports the pool's utilization, as returned by Pool.Stats; no HTTP
// route exposes it.
type Stats struct {
	Active        int
	Idle          int
	TotalRequests uint64
	PoolHits      uint64
	TotalCreated  uint64
	Recycled      uint64
}

// HitRate returns PoolHits/TotalRequests, or 0 when no request has been
// served yet.
func (s Stats) HitRate() float64 {
	if s.TotalRequests == 0 {
		return 0
	}
	return float64(s.PoolHits) / float64(s.TotalRequests)
}

// Pool is a bounded, lazily-populated connection pool keyed by a single
// (tenant, provider) pair. One Pool is created per key by the Registry's
// PoolRegistry wrapper.
type Pool struct {
	mu      sync.Mutex
	cfg     PoolConfig
	factory Factory

	tenantID   string
	providerID string

	idle   []*pooledConn
	active int

	stats Stats

	sem chan struct{}

	closed bool
	stop   chan struct{}
}

func NewPool(tenantID, providerID string, factory Factory, cfg PoolConfig) *Pool {
	if cfg.MaxSize <= 0 {
		cfg = DefaultPoolConfig()
	}
	p := &Pool{
		cfg:        cfg,
		factory:    factory,
		tenantID:   tenantID,
		providerID: providerID,
		sem:        make(chan struct{}, cfg.MaxSize),
		stop:       make(chan struct{}),
	}
	go p.sweep()
	return p
}

// Acquire leases a Conn, creating one if the pool is empty and under
// capacity, and blocking (up to cfg.LeaseTimeout, via ctx) when it is not.
func (p *Pool) Acquire(ctx context.Context) (Conn, error) {
	leaseCtx := ctx
	var cancel context.CancelFunc
	if p.cfg.LeaseTimeout > 0 {
		leaseCtx, cancel = context.WithTimeout(ctx, p.cfg.LeaseTimeout)
		defer cancel()
	}

	select {
	case p.sem <- struct{}{}:
	case <-leaseCtx.Done():
		return nil, fmt.Errorf("adapter: pool %s/%s exhausted: %w", p.tenantID, p.providerID, leaseCtx.Err())
	}

	p.mu.Lock()
	p.stats.TotalRequests++
	if n := len(p.idle); n > 0 {
		pc := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.stats.PoolHits++
		p.active++
		p.mu.Unlock()
		pc.lastUsed = time.Now()
		return pc.conn, nil
	}
	p.mu.Unlock()

	conn, err := p.factory(ctx, p.tenantID, p.providerID)
	if err != nil {
		<-p.sem
		return nil, err
	}
	p.mu.Lock()
	p.active++
	p.stats.TotalCreated++
	p.mu.Unlock()
	return conn, nil
}

// Release returns conn to the idle set, or closes it outright when the
// pool is over its MaxIdle watermark.
func (p *Pool) Release(conn Conn) {
	defer func() { <-p.sem }()

	p.mu.Lock()
	p.active--
	if p.closed || len(p.idle) >= p.cfg.MaxIdle {
		p.mu.Unlock()
		_ = conn.Close()
		return
	}
	p.idle = append(p.idle, &pooledConn{conn: conn, createdAt: time.Now(), lastUsed: time.Now()})
	p.mu.Unlock()
}

// Stats returns a snapshot of the pool's current utilization.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.stats
	s.Active = p.active
	s.Idle = len(p.idle)
	return s
}

// Close stops the idle sweep and closes every idle connection.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	idle := p.idle
	p.idle = nil
	p.mu.Unlock()

	close(p.stop)
	for _, pc := range idle {
		_ = pc.conn.Close()
	}
	return nil
}

// sweep evicts idle connections past IdleTimeout or ConnMaxLifetime, the
// same periodic-recycle role plugin.Manager's registry leaves to the
// underlying *sql.DB, made explicit here since Conn has no built-in TTL.
func (p *Pool) sweep() {
	interval := p.cfg.IdleTimeout
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			p.evictStale()
		}
	}
}

func (p *Pool) evictStale() {
	now := time.Now()
	p.mu.Lock()
	kept := p.idle[:0]
	var stale []*pooledConn
	for _, pc := range p.idle {
		expired := p.cfg.IdleTimeout > 0 && now.Sub(pc.lastUsed) > p.cfg.IdleTimeout
		aged := p.cfg.ConnMaxLifetime > 0 && now.Sub(pc.createdAt) > p.cfg.ConnMaxLifetime
		if expired || aged {
			stale = append(stale, pc)
			continue
		}
		kept = append(kept, pc)
	}
	p.idle = kept
	p.stats.Recycled += uint64(len(stale))
	p.mu.Unlock()

	for _, pc := range stale {
		_ = pc.conn.Close()
	}
}

// PoolRegistry lazily creates and caches one Pool per (tenant, provider),
// mirroring Registry's key shape but for transport-level leasing rather
// than the SCIM-shaped Adapter itself.
type PoolRegistry struct {
	mu      sync.Mutex
	factory Factory
	cfg     PoolConfig
	pools   map[key]*Pool
}

func NewPoolRegistry(factory Factory, cfg PoolConfig) *PoolRegistry {
	return &PoolRegistry{factory: factory, cfg: cfg, pools: make(map[key]*Pool)}
}

func (r *PoolRegistry) Get(tenantID, providerID string) *Pool {
	k := key{tenantID, providerID}
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.pools[k]; ok {
		return p
	}
	p := NewPool(tenantID, providerID, r.factory, r.cfg)
	r.pools[k] = p
	return p
}

// CloseAll closes every pool the registry has created, for use during
// gateway shutdown.
func (r *PoolRegistry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.pools {
		_ = p.Close()
	}
}

package database

import (
	"context"
	"database/sql"
	"sync/atomic"
	"time"

	"podocs/internal/logging"
)

// DefaultAcquireTimeout bounds the wait for a pooled connection when no
// timeout is configured.
const DefaultAcquireTimeout = 5 * time.Second

// Pool owns the process's *sql.DB. It is constructed once at startup, passed
// to every component that needs database access, and drained with Close on
// shutdown.
type Pool struct {
	db             *sql.DB
	dialect        Dialect
	acquireTimeout time.Duration
	log            *logging.Logger
	metrics        *Metrics
	closed         atomic.Bool
}

// Option configures a Pool.
type Option func(*Pool)

// WithAcquireTimeout sets the default bounded wait used by Acquire.
func WithAcquireTimeout(d time.Duration) Option {
	return func(p *Pool) {
		if d > 0 {
			p.acquireTimeout = d
		}
	}
}

// WithLogger sets the logger for pool and executor events.
func WithLogger(l *logging.Logger) Option {
	return func(p *Pool) {
		if l != nil {
			p.log = l.With("database")
		}
	}
}

// WithMetrics attaches prometheus collectors.
func WithMetrics(m *Metrics) Option {
	return func(p *Pool) { p.metrics = m }
}

// NewPool wraps an already opened handle.
func NewPool(db *sql.DB, dialect Dialect, opts ...Option) *Pool {
	p := &Pool{
		db:             db,
		dialect:        dialect,
		acquireTimeout: DefaultAcquireTimeout,
		log:            logging.Discard(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// DB exposes the underlying handle for code that manages its own connections
// (migrations, health probes).
func (p *Pool) DB() *sql.DB { return p.db }

// Dialect reports the SQL backend.
func (p *Pool) Dialect() Dialect { return p.dialect }

// Stats returns the pool's current bookkeeping.
func (p *Pool) Stats() sql.DBStats { return p.db.Stats() }

// PingContext verifies a connection can be established.
func (p *Pool) PingContext(ctx context.Context) error {
	if p.closed.Load() {
		return ErrPoolClosed
	}
	return p.db.PingContext(ctx)
}

// Close stops handing out leases and closes the handle. Connections still
// leased are closed as their leases are released.
func (p *Pool) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	p.log.Info("db_pool_close", p.saturation())
	return p.db.Close()
}

// Shutdown stops handing out leases, waits until every outstanding lease has
// been released (or ctx ends), then closes the handle.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.closed.Store(true)

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for p.db.Stats().InUse > 0 {
		select {
		case <-ctx.Done():
			p.log.Warn("db_pool_drain_incomplete", p.saturation())
			_ = p.db.Close()
			return ctx.Err()
		case <-ticker.C:
		}
	}
	p.log.Info("db_pool_drained", p.saturation())
	return p.db.Close()
}

// Health is a point-in-time view of pool connectivity.
type Health struct {
	Status         string `json:"status"`
	ResponseTimeMs int64  `json:"response_time_ms"`
	Open           int    `json:"open"`
	InUse          int    `json:"in_use"`
	Idle           int    `json:"idle"`
	Error          string `json:"error,omitempty"`
}

// Health pings the database and reports pool counts.
func (p *Pool) Health(ctx context.Context) Health {
	start := time.Now()
	err := p.PingContext(ctx)
	st := p.db.Stats()
	h := Health{
		Status:         "healthy",
		ResponseTimeMs: time.Since(start).Milliseconds(),
		Open:           st.OpenConnections,
		InUse:          st.InUse,
		Idle:           st.Idle,
	}
	if err != nil {
		h.Status = "unhealthy"
		h.Error = err.Error()
		p.log.Error("db_health_check_failed", err, nil)
	}
	return h
}

func (p *Pool) saturation() map[string]any {
	st := p.db.Stats()
	return map[string]any{
		"dialect":    string(p.dialect),
		"max_open":   st.MaxOpenConnections,
		"open":       st.OpenConnections,
		"in_use":     st.InUse,
		"idle":       st.Idle,
		"wait_count": st.WaitCount,
	}
}

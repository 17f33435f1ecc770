package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"
)

// Lease is exclusive ownership of one pooled connection. Release returns the
// connection to the pool; it never closes the physical connection.
type Lease struct {
	conn     *sql.Conn
	pool     *Pool
	acquired time.Time
	once     sync.Once
}

// Conn returns the leased connection. It must not be used after Release.
func (l *Lease) Conn() *sql.Conn { return l.conn }

// Release hands the connection back to the pool. Only the first call has any
// effect, so it is safe to defer alongside an explicit release.
func (l *Lease) Release() {
	l.once.Do(func() {
		if err := l.conn.Close(); err != nil {
			l.pool.log.Error("db_release_failed", err, map[string]any{
				"held_ms": time.Since(l.acquired).Milliseconds(),
			})
		}
	})
}

type checkout struct {
	conn *sql.Conn
	err  error
}

// Acquire leases a connection, waiting at most the pool's acquisition timeout.
func (p *Pool) Acquire(ctx context.Context) (*Lease, error) {
	return p.AcquireWithTimeout(ctx, p.acquireTimeout)
}

// AcquireWithTimeout races the pool checkout against a timer. When the timer
// wins the call fails with ErrAcquisitionTimeout; the checkout is cancelled
// and, should a connection still arrive, it goes straight back to the pool.
func (p *Pool) AcquireWithTimeout(ctx context.Context, timeout time.Duration) (*Lease, error) {
	if p.closed.Load() {
		return nil, ErrPoolClosed
	}
	if timeout <= 0 {
		timeout = DefaultAcquireTimeout
	}

	start := time.Now()
	checkoutCtx, cancel := context.WithCancel(ctx)
	results := make(chan checkout, 1)
	go func() {
		conn, err := p.db.Conn(checkoutCtx)
		results <- checkout{conn: conn, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case co := <-results:
		cancel()
		if co.err != nil {
			return nil, fmt.Errorf("acquire connection: %w", co.err)
		}
		p.metrics.observeAcquire(time.Since(start))
		return &Lease{conn: co.conn, pool: p, acquired: time.Now()}, nil

	case <-timer.C:
		cancel()
		go returnLate(results)
		p.metrics.incAcquireTimeout()
		fields := p.saturation()
		fields["timeout_ms"] = timeout.Milliseconds()
		p.log.Error("db_acquire_timeout", ErrAcquisitionTimeout, fields)
		return nil, fmt.Errorf("%w after %s", ErrAcquisitionTimeout, timeout)

	case <-ctx.Done():
		cancel()
		go returnLate(results)
		return nil, ctx.Err()
	}
}

// returnLate waits for an abandoned checkout and releases whatever it got.
func returnLate(results <-chan checkout) {
	co := <-results
	if co.conn != nil {
		_ = co.conn.Close()
	}
}

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"

	"podocs/internal/logging"
)

const (
	// DefaultMaxAttempts is how many times a statement runs before the
	// executor gives up on transient errors.
	DefaultMaxAttempts = 3
	// DefaultRetryBaseDelay is the first backoff; attempt n waits 2^n times it.
	DefaultRetryBaseDelay = 100 * time.Millisecond

	maxRetryDelay = 30 * time.Second
)

// Statement is one SQL statement and its parameters. When Scan is nil the
// statement is executed; otherwise it is queried and Scan consumes the rows.
//
// Scan may run once per attempt, so it must reset any state it accumulates.
type Statement struct {
	SQL  string
	Args []any
	Scan func(*sql.Rows) error
}

// Exec builds a statement that returns no rows.
func Exec(query string, args ...any) Statement {
	return Statement{SQL: query, Args: args}
}

// Query builds a statement whose rows are handed to scan.
func Query(query string, scan func(*sql.Rows) error, args ...any) Statement {
	return Statement{SQL: query, Args: args, Scan: scan}
}

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s Statement) run(ctx context.Context, q queryer) error {
	if s.Scan == nil {
		_, err := q.ExecContext(ctx, s.SQL, s.Args...)
		return err
	}
	rows, err := q.QueryContext(ctx, s.SQL, s.Args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	if err := s.Scan(rows); err != nil {
		// Driver errors raised mid-iteration outrank whatever the scanner made of them.
		if rerr := rows.Err(); rerr != nil {
			return rerr
		}
		return err
	}
	return rows.Err()
}

// Querier is the data-access surface repositories depend on.
type Querier interface {
	// Run executes stmt, retrying transient failures.
	Run(ctx context.Context, stmt Statement) error
	// Transact executes stmts atomically on one connection. No retries.
	Transact(ctx context.Context, stmts []Statement) error
}

// Executor runs statements against a Pool. Single statements go through the
// retry loop; transactions do not.
type Executor struct {
	pool        *Pool
	maxAttempts int
	baseDelay   time.Duration
	log         *logging.Logger
	notify      func(attempt int, err error, delay time.Duration)
}

var _ Querier = (*Executor)(nil)

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithMaxAttempts sets the default attempt budget for Run.
func WithMaxAttempts(n int) ExecutorOption {
	return func(e *Executor) {
		if n > 0 {
			e.maxAttempts = n
		}
	}
}

// WithRetryBaseDelay sets the first backoff interval.
func WithRetryBaseDelay(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		if d > 0 {
			e.baseDelay = d
		}
	}
}

// WithRetryNotify registers a callback invoked before every backoff wait.
func WithRetryNotify(fn func(attempt int, err error, delay time.Duration)) ExecutorOption {
	return func(e *Executor) { e.notify = fn }
}

// NewExecutor creates an Executor over pool.
func NewExecutor(pool *Pool, opts ...ExecutorOption) *Executor {
	e := &Executor{
		pool:        pool,
		maxAttempts: DefaultMaxAttempts,
		baseDelay:   DefaultRetryBaseDelay,
		log:         pool.log,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Pool returns the pool the executor leases from.
func (e *Executor) Pool() *Pool { return e.pool }

// Run executes stmt with the configured attempt budget.
func (e *Executor) Run(ctx context.Context, stmt Statement) error {
	return e.RunWithAttempts(ctx, stmt, e.maxAttempts)
}

// RunWithAttempts executes stmt, leasing a fresh connection per attempt.
// Transient errors are retried after 2^attempt * base delay; any other error
// returns immediately. When every attempt fails transiently the last error is
// returned wrapped in ErrRetriesExhausted.
func (e *Executor) RunWithAttempts(ctx context.Context, stmt Statement, maxAttempts int) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	policy := &backoff.ExponentialBackOff{
		InitialInterval:     e.baseDelay,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         maxRetryDelay,
	}

	attempts := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempts++
		err := e.attempt(ctx, stmt)
		if err == nil {
			return struct{}{}, nil
		}
		if Classify(err) == CategoryTransient {
			return struct{}{}, fmt.Errorf("%w: %w", ErrTransient, err)
		}
		return struct{}{}, backoff.Permanent(annotate(err))
	},
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(uint(maxAttempts)),
		backoff.WithNotify(func(err error, delay time.Duration) {
			e.pool.metrics.incRetry()
			e.log.Warn("db_retry", map[string]any{
				"attempt":       attempts,
				"max_attempts":  maxAttempts,
				"delay_ms":      delay.Milliseconds(),
				"error_message": err.Error(),
			})
			if e.notify != nil {
				e.notify(attempts, err, delay)
			}
		}),
	)
	if err == nil {
		return nil
	}

	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		return permanent.Unwrap()
	}
	if errors.Is(err, ErrTransient) {
		return fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempts, err)
	}
	return err
}

// attempt leases a connection for exactly one execution of stmt.
func (e *Executor) attempt(ctx context.Context, stmt Statement) error {
	lease, err := e.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer lease.Release()

	return stmt.run(ctx, lease.conn)
}

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Transact runs stmts in order inside one transaction on one leased
// connection. Any failure rolls back every statement; the error wraps
// ErrTransactionFailed around the original cause. Transactions are never
// retried here: re-running one is the caller's decision.
func (e *Executor) Transact(ctx context.Context, stmts []Statement) error {
	return e.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		for i, stmt := range stmts {
			if err := stmt.run(ctx, tx); err != nil {
				return fmt.Errorf("statement %d of %d: %w", i+1, len(stmts), annotate(err))
			}
		}
		return nil
	})
}

// WithTx begins a transaction on a leased connection, passes it to fn and
// commits when fn returns nil. Errors and panics roll back. The lease is
// released on every path.
func (e *Executor) WithTx(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) (err error) {
	lease, err := e.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer lease.Release()

	tx, err := lease.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", ErrTransactionFailed, err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			e.pool.metrics.incTransaction("rolled_back")
			panic(p)
		}
	}()

	if fnErr := fn(ctx, tx); fnErr != nil {
		e.pool.metrics.incTransaction("rolled_back")
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			e.log.Error("db_rollback_failed", rbErr, map[string]any{"cause": fnErr.Error()})
			return fmt.Errorf("%w: %w (rollback: %w)", ErrTransactionFailed, fnErr, rbErr)
		}
		return fmt.Errorf("%w: %w", ErrTransactionFailed, fnErr)
	}

	if err := tx.Commit(); err != nil {
		e.pool.metrics.incTransaction("commit_failed")
		return fmt.Errorf("%w: commit: %w", ErrTransactionFailed, annotate(err))
	}
	e.pool.metrics.incTransaction("committed")
	return nil
}

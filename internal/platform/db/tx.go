package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// uniqueViolation is the SQLSTATE reported for a unique index conflict.
const uniqueViolation = "23505"

// TxOptions bounds a transaction. Zero durations disable the respective limit.
type TxOptions struct {
	IsoLevel pgx.TxIsoLevel
	// MaxWait bounds how long to wait for a pooled connection.
	MaxWait time.Duration
	// Timeout bounds the lifetime of the transaction once started.
	Timeout time.Duration
}

// ErrTxTimeout indicates the transaction or connection acquisition ran out of time.
var ErrTxTimeout = errors.New("platform/db: transaction timed out")

// WithTxOptions runs fn inside a transaction bounded by opts. The context handed to fn
// carries the transaction deadline.
func WithTxOptions(ctx context.Context, pool *pgxpool.Pool, opts TxOptions, fn func(context.Context, pgx.Tx) error) error {
	acquireCtx := ctx
	if opts.MaxWait > 0 {
		var cancel context.CancelFunc
		acquireCtx, cancel = context.WithTimeout(ctx, opts.MaxWait)
		defer cancel()
	}
	conn, err := pool.Acquire(acquireCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("platform/db: acquire conn: %w", ErrTxTimeout)
		}
		return fmt.Errorf("platform/db: acquire conn: %w", err)
	}
	defer conn.Release()

	txCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		txCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	tx, err := conn.BeginTx(txCtx, pgx.TxOptions{IsoLevel: opts.IsoLevel})
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}

	defer func() {
		// Rollback must not use txCtx: it may already be expired.
		_ = tx.Rollback(context.WithoutCancel(ctx))
	}()

	if err := fn(txCtx, tx); err != nil {
		if txCtx.Err() != nil && errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %w", ErrTxTimeout, err)
		}
		return err
	}

	if err := tx.Commit(txCtx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("platform/db: commit tx: %w", ErrTxTimeout)
		}
		return fmt.Errorf("platform/db: commit tx: %w", err)
	}

	return nil
}

// IsUniqueViolation reports whether err is a unique constraint violation. When constraint is
// non-empty the violated constraint name must match as well.
func IsUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	if pgErr.Code != uniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres SQLSTATE codes the repositories classify.
const (
	CodeUniqueViolation      = "23505"
	CodeForeignKeyViolation  = "23503"
	CodeSerializationFailure = "40001"
	CodeDeadlockDetected     = "40P01"
)

// Querier is the subset of pgx shared by *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type txKey struct{}

// Conn returns the transaction bound to ctx, or pool when there is none.
func Conn(ctx context.Context, pool *pgxpool.Pool) Querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok && tx != nil {
		return tx
	}
	return pool
}

// TxFromContext retrieves the transaction started by TxRunner.InTx.
func TxFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(txKey{}).(pgx.Tx)
	return tx
}

// TxRunner runs a unit of work in a single transaction at a fixed isolation
// level, retrying when Postgres aborts it with a serialization failure.
type TxRunner struct {
	pool       *pgxpool.Pool
	isoLevel   pgx.TxIsoLevel
	maxRetries int
	onRetry    func()
}

// NewSerializableRunner returns a TxRunner using SERIALIZABLE isolation.
func NewSerializableRunner(pool *pgxpool.Pool, maxRetries int) *TxRunner {
	return &TxRunner{pool: pool, isoLevel: pgx.Serializable, maxRetries: maxRetries}
}

// OnRetry registers a callback invoked before each re-run of a transaction.
func (r *TxRunner) OnRetry(fn func()) *TxRunner {
	r.onRetry = fn
	return r
}

// InTx calls fn with a context carrying the transaction. fn may run more than
// once; it must not have side effects outside the transaction. Nested calls
// reuse the outer transaction.
func (r *TxRunner) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if TxFromContext(ctx) != nil {
		return fn(ctx)
	}

	var err error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 && r.onRetry != nil {
			r.onRetry()
		}
		err = r.run(ctx, fn)
		if !IsRetryable(err) {
			return err
		}
	}
	return err
}

func (r *TxRunner) run(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: r.isoLevel})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// ErrorCode returns the SQLSTATE of a Postgres error, or "".
func ErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// ConstraintName returns the violated constraint of a Postgres error, or "".
func ConstraintName(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName
	}
	return ""
}

func IsUniqueViolation(err error) bool {
	return ErrorCode(err) == CodeUniqueViolation
}

func IsForeignKeyViolation(err error) bool {
	return ErrorCode(err) == CodeForeignKeyViolation
}

// IsRetryable reports whether the transaction lost a race and may be re-run.
func IsRetryable(err error) bool {
	code := ErrorCode(err)
	return code == CodeSerializationFailure || code == CodeDeadlockDetected
}

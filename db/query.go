package db

import (
	"context"
	"database/sql"
	"time"
)

// Execer runs exec statements with context.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Queryer runs queries with context.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// QueryRower runs row queries with context.
type QueryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// QueryDB groups the query interfaces; *sql.Tx satisfies it.
type QueryDB interface {
	Execer
	Queryer
	QueryRower
}

// Exec runs an exec statement with timeout.
func Exec(ctx context.Context, timeout time.Duration, db Execer, query string, args ...any) (sql.Result, error) {
	ctx, cancel := WithTimeout(ctx, timeout)
	defer cancel()
	return db.ExecContext(ctx, query, args...)
}

// QueryRow runs a row query with timeout. The caller scans the row and then
// calls cancel.
func QueryRow(ctx context.Context, timeout time.Duration, db QueryRower, query string, args ...any) (*sql.Row, context.CancelFunc) {
	ctx, cancel := WithTimeout(ctx, timeout)
	return db.QueryRowContext(ctx, query, args...), cancel
}

// WithTimeout returns a context with timeout when provided.
func WithTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

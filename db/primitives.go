package db

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Table addresses one table with a dialect and a per-statement timeout.
type Table struct {
	Name    string
	Dialect Dialect
	Timeout time.Duration
}

// FindOptField reads a single column from the first row matching condition.
// found is false when no row matches.
func FindOptField[T any](ctx context.Context, q QueryRower, t Table, field, condition string, args ...any) (value T, found bool, err error) {
	query, queryArgs, err := Select(field).From(t.Name).Where(condition, args...).Limit(1).Dialect(t.Dialect).Build()
	if err != nil {
		return value, false, err
	}

	row, cancel := QueryRow(ctx, t.Timeout, q, query, queryArgs...)
	defer cancel()
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return value, false, nil
		}
		return value, false, err
	}
	return value, true, nil
}

// UpdateField sets one column on every row matching condition and returns
// the number of rows changed.
func UpdateField(ctx context.Context, e Execer, t Table, field string, value any, condition string, args ...any) (int64, error) {
	query, queryArgs, err := Update(t.Name).Set(field, value).Where(condition, args...).Dialect(t.Dialect).Build()
	if err != nil {
		return 0, err
	}
	return affected(Exec(ctx, t.Timeout, e, query, queryArgs...))
}

// DeleteWhere removes every row matching condition and returns the count.
func DeleteWhere(ctx context.Context, e Execer, t Table, condition string, args ...any) (int64, error) {
	query, queryArgs, err := Delete(t.Name).Where(condition, args...).Dialect(t.Dialect).Build()
	if err != nil {
		return 0, err
	}
	return affected(Exec(ctx, t.Timeout, e, query, queryArgs...))
}

// InsertRow inserts one row.
func InsertRow(ctx context.Context, e Execer, t Table, columns []string, values ...any) error {
	query, queryArgs, err := Insert(t.Name).Columns(columns...).Values(values...).Dialect(t.Dialect).Build()
	if err != nil {
		return err
	}
	_, err = Exec(ctx, t.Timeout, e, query, queryArgs...)
	return err
}

func affected(result sql.Result, err error) (int64, error) {
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

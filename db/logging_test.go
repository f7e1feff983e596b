package db

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"
)

// sessionTable fails its statements on demand.
type sessionTable struct {
	execErr  error
	queryErr error
}

type touchedResult struct{}

func (touchedResult) LastInsertId() (int64, error) { return 0, nil }
func (touchedResult) RowsAffected() (int64, error) { return 1, nil }

func (s *sessionTable) ExecContext(context.Context, string, ...any) (sql.Result, error) {
	return touchedResult{}, s.execErr
}

func (s *sessionTable) QueryContext(context.Context, string, ...any) (*sql.Rows, error) {
	return nil, s.queryErr
}

func (s *sessionTable) QueryRowContext(context.Context, string, ...any) *sql.Row {
	return &sql.Row{}
}

type hookCall struct {
	query string
	args  []any
	err   error
}

func recordHook(calls *[]hookCall) QueryHook {
	return func(_ context.Context, query string, args []any, _ time.Duration, err error) {
		*calls = append(*calls, hookCall{query: query, args: args, err: err})
	}
}

func TestLoggedDBReportsExtend(t *testing.T) {
	var calls []hookCall
	logged := WithQueryHook(&sessionTable{}, recordHook(&calls))

	const extend = "UPDATE sessions SET expires = ? WHERE code = ?"
	if _, err := logged.ExecContext(context.Background(), extend, int64(1100), "abc"); err != nil {
		t.Fatalf("exec: %v", err)
	}
	if len(calls) != 1 {
		t.Fatalf("expected one hook call, got %d", len(calls))
	}
	if calls[0].query != extend || len(calls[0].args) != 2 || calls[0].args[1] != "abc" || calls[0].err != nil {
		t.Fatalf("unexpected hook call %+v", calls[0])
	}
}

func TestLoggedDBReportsFailures(t *testing.T) {
	locked := errors.New("database is locked")
	var calls []hookCall
	logged := WithQueryHook(&sessionTable{execErr: locked, queryErr: locked}, recordHook(&calls))

	if _, err := logged.ExecContext(context.Background(), "DELETE FROM sessions WHERE code = ?", "abc"); !errors.Is(err, locked) {
		t.Fatalf("expected exec error passed through, got %v", err)
	}
	if _, err := logged.QueryContext(context.Background(), "SELECT code FROM sessions WHERE expires <= ?", int64(1000)); !errors.Is(err, locked) {
		t.Fatalf("expected query error passed through, got %v", err)
	}
	if len(calls) != 2 || !errors.Is(calls[0].err, locked) || !errors.Is(calls[1].err, locked) {
		t.Fatalf("expected both failures reported, got %+v", calls)
	}
}

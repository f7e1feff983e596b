package db

import (
	"context"
	"database/sql"
	"testing"
	"time"
)

const deleteExpiredSessions = "DELETE FROM sessions WHERE expires <= ?"

type recordingExecer struct {
	ctx   context.Context
	query string
	args  []any
}

type sweptResult int64

func (sweptResult) LastInsertId() (int64, error) { return 0, nil }
func (r sweptResult) RowsAffected() (int64, error) { return int64(r), nil }

func (r *recordingExecer) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	r.ctx, r.query, r.args = ctx, query, args
	return sweptResult(3), nil
}

func TestWithTimeoutZeroKeepsContext(t *testing.T) {
	ctx, cancel := WithTimeout(context.Background(), 0)
	defer cancel()
	if _, ok := ctx.Deadline(); ok {
		t.Fatal("expected no deadline")
	}
}

func TestExecSweepsWithDeadline(t *testing.T) {
	execer := &recordingExecer{}
	result, err := Exec(context.Background(), 50*time.Millisecond, execer, deleteExpiredSessions, int64(1000))
	if err != nil {
		t.Fatalf("exec: %v", err)
	}
	if _, ok := execer.ctx.Deadline(); !ok {
		t.Fatal("expected statement deadline")
	}
	if execer.query != deleteExpiredSessions || len(execer.args) != 1 || execer.args[0] != int64(1000) {
		t.Fatalf("unexpected statement %q %v", execer.query, execer.args)
	}
	if swept, _ := result.RowsAffected(); swept != 3 {
		t.Fatalf("expected 3 swept sessions, got %d", swept)
	}
}

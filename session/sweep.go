package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/devmarvs/bear/clock"
	"github.com/devmarvs/bear/tasks"
	"github.com/devmarvs/bear/txn"
)

// Sweep deletes sessions expired at now in a transaction of its own and
// returns how many were removed.
func Sweep(ctx context.Context, database txn.Beginner, store *SQLStore, now clock.Instant) (int64, error) {
	acc := txn.NewStandalone(database, nil)
	tx, err := acc.Get(ctx)
	if err != nil {
		return 0, err
	}
	pruned, err := store.Prune(ctx, tx, now)
	if err != nil {
		_ = acc.Rollback()
		return 0, err
	}
	if err := acc.Commit(); err != nil {
		return 0, err
	}
	return pruned, nil
}

// SweepJob wraps Sweep as a background job.
func SweepJob(database txn.Beginner, store *SQLStore, clk clock.Clock, logger *slog.Logger) tasks.Job {
	return tasks.Job{
		Name:    "sessions.sweep",
		Timeout: 30 * time.Second,
		Handler: func(ctx context.Context) error {
			pruned, err := Sweep(ctx, database, store, clk.Now())
			if err != nil {
				return err
			}
			if pruned > 0 {
				logger.Info("expired sessions pruned", slog.Int64("count", pruned))
			}
			return nil
		},
	}
}

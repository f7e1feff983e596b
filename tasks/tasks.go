// Package tasks runs background maintenance jobs, such as pruning expired
// sessions, on a small worker pool with retries.
package tasks

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrRunnerClosed indicates the runner is shutting down.
var ErrRunnerClosed = errors.New("task runner is closed")

// ErrHandlerMissing indicates a job handler was not provided.
var ErrHandlerMissing = errors.New("task handler is required")

// Handler executes a background job.
type Handler func(context.Context) error

// BackoffFunc returns the backoff duration for a retry attempt.
type BackoffFunc func(attempt int) time.Duration

// RetryPolicy defines retry behavior.
type RetryPolicy struct {
	MaxRetries int
	Backoff    BackoffFunc
	RetryIf    func(error) bool
}

// Job describes a background task.
type Job struct {
	Name    string
	Handler Handler
	Timeout time.Duration
}

// DeadLetter captures a job that failed permanently.
type DeadLetter struct {
	Name     string
	Attempts int
	Err      error
}

// Options configures a Runner.
type Options struct {
	Workers      int
	QueueSize    int
	Retry        *RetryPolicy
	Logger       *slog.Logger
	OnDeadLetter func(DeadLetter)
}

// DefaultRetryPolicy retries twice with exponential backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 2,
		Backoff:    ExponentialBackoff(100*time.Millisecond, 2*time.Second),
		RetryIf:    DefaultRetryDecider,
	}
}

// Runner manages background jobs.
type Runner struct {
	workers      int
	retry        RetryPolicy
	logger       *slog.Logger
	onDeadLetter func(DeadLetter)

	queue     chan Job
	startOnce sync.Once
	closeOnce sync.Once
	mu        sync.Mutex
	closed    bool
	wg        sync.WaitGroup
}

// New creates a new Runner.
func New(options Options) *Runner {
	if options.Workers <= 0 {
		options.Workers = 1
	}
	if options.QueueSize <= 0 {
		options.QueueSize = 16
	}
	retry := DefaultRetryPolicy()
	if options.Retry != nil {
		retry = *options.Retry
		if retry.MaxRetries < 0 {
			retry.MaxRetries = 0
		}
		if retry.Backoff == nil {
			retry.Backoff = DefaultRetryPolicy().Backoff
		}
		if retry.RetryIf == nil {
			retry.RetryIf = DefaultRetryDecider
		}
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		workers:      options.Workers,
		retry:        retry,
		logger:       logger,
		onDeadLetter: options.OnDeadLetter,
		queue:        make(chan Job, options.QueueSize),
	}
}

// Start launches worker goroutines.
func (r *Runner) Start(ctx context.Context) {
	r.startOnce.Do(func() {
		for i := 0; i < r.workers; i++ {
			r.wg.Add(1)
			go r.worker(ctx)
		}
	})
}

// Enqueue schedules a job, honoring ctx while the queue is full.
func (r *Runner) Enqueue(ctx context.Context, job Job) error {
	if job.Handler == nil {
		return ErrHandlerMissing
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRunnerClosed
	}
	select {
	case r.queue <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Every enqueues job once per interval until ctx is done. It blocks; run it
// in its own goroutine. A tick that finds the queue full is skipped.
func (r *Runner) Every(ctx context.Context, interval time.Duration, job Job) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tickCtx, cancel := context.WithTimeout(ctx, interval)
			err := r.Enqueue(tickCtx, job)
			cancel()
			if errors.Is(err, ErrRunnerClosed) {
				return
			}
			if err != nil {
				r.logger.Warn("task skipped", slog.String("task", job.Name), slog.String("error", err.Error()))
			}
		}
	}
}

// Shutdown stops accepting new jobs and waits for workers to finish.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		close(r.queue)
		r.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) worker(ctx context.Context) {
	defer r.wg.Done()
	for job := range r.queue {
		r.run(ctx, job)
	}
}

func (r *Runner) run(ctx context.Context, job Job) {
	for attempt := 1; ; attempt++ {
		runCtx, cancel := ctx, context.CancelFunc(func() {})
		if job.Timeout > 0 {
			runCtx, cancel = context.WithTimeout(ctx, job.Timeout)
		}
		err := job.Handler(runCtx)
		cancel()
		if err == nil {
			return
		}

		if !r.retry.RetryIf(err) || attempt > r.retry.MaxRetries {
			r.logger.Error("task failed",
				slog.String("task", job.Name),
				slog.Int("attempts", attempt),
				slog.String("error", err.Error()),
			)
			if r.onDeadLetter != nil {
				r.onDeadLetter(DeadLetter{Name: job.Name, Attempts: attempt, Err: err})
			}
			return
		}

		delay := r.retry.Backoff(attempt)
		r.logger.Warn("task retry",
			slog.String("task", job.Name),
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.String("error", err.Error()),
		)
		if err := sleep(ctx, delay); err != nil {
			return
		}
	}
}

// ExponentialBackoff returns a backoff function with exponential growth.
func ExponentialBackoff(base, max time.Duration) BackoffFunc {
	return func(attempt int) time.Duration {
		if attempt <= 0 {
			return base
		}
		delay := base << (attempt - 1)
		if delay > max || delay <= 0 {
			return max
		}
		return delay
	}
}

// DefaultRetryDecider retries unless the error is from context cancellation.
func DefaultRetryDecider(err error) bool {
	return err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

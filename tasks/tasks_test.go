package tasks

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/devmarvs/bear/logging"
)

func TestRunnerExecutesJob(t *testing.T) {
	runner := New(Options{QueueSize: 1, Logger: logging.Discard()})
	runner.Start(context.Background())

	done := make(chan struct{})
	job := Job{
		Name: "example",
		Handler: func(ctx context.Context) error {
			close(done)
			return nil
		},
	}

	if err := runner.Enqueue(context.Background(), job); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("job did not run")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := runner.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestRunnerRetriesAndDeadLetter(t *testing.T) {
	retry := RetryPolicy{
		MaxRetries: 2,
		Backoff:    func(int) time.Duration { return 0 },
	}
	attempts := int64(0)
	dead := make(chan DeadLetter, 1)

	runner := New(Options{
		QueueSize:    1,
		Retry:        &retry,
		Logger:       logging.Discard(),
		OnDeadLetter: func(letter DeadLetter) { dead <- letter },
	})
	runner.Start(context.Background())

	err := runner.Enqueue(context.Background(), Job{
		Name: "flaky",
		Handler: func(ctx context.Context) error {
			atomic.AddInt64(&attempts, 1)
			return errors.New("boom")
		},
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	select {
	case letter := <-dead:
		if letter.Name != "flaky" || letter.Attempts != 3 {
			t.Fatalf("unexpected dead letter %+v", letter)
		}
	case <-time.After(time.Second):
		t.Fatal("expected dead letter")
	}
	if got := atomic.LoadInt64(&attempts); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
	_ = runner.Shutdown(context.Background())
}

func TestEnqueueGuards(t *testing.T) {
	runner := New(Options{Logger: logging.Discard()})
	if err := runner.Enqueue(context.Background(), Job{Name: "empty"}); !errors.Is(err, ErrHandlerMissing) {
		t.Fatalf("expected missing handler, got %v", err)
	}

	_ = runner.Shutdown(context.Background())
	err := runner.Enqueue(context.Background(), Job{Handler: func(context.Context) error { return nil }})
	if !errors.Is(err, ErrRunnerClosed) {
		t.Fatalf("expected closed runner, got %v", err)
	}
}

func TestEvery(t *testing.T) {
	runner := New(Options{Logger: logging.Discard()})
	runner.Start(context.Background())

	runs := make(chan struct{}, 4)
	ctx, cancel := context.WithCancel(context.Background())
	go runner.Every(ctx, 5*time.Millisecond, Job{
		Name: "tick",
		Handler: func(context.Context) error {
			select {
			case runs <- struct{}{}:
			default:
			}
			return nil
		},
	})

	for i := 0; i < 2; i++ {
		select {
		case <-runs:
		case <-time.After(time.Second):
			t.Fatal("expected periodic run")
		}
	}
	cancel()
	_ = runner.Shutdown(context.Background())
}

func TestExponentialBackoff(t *testing.T) {
	backoff := ExponentialBackoff(10*time.Millisecond, 50*time.Millisecond)
	if backoff(1) != 10*time.Millisecond || backoff(2) != 20*time.Millisecond || backoff(5) != 50*time.Millisecond {
		t.Fatal("unexpected backoff sequence")
	}
}

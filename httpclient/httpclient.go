// Package httpclient builds the outbound client used to talk to the identity
// provider. Idempotent requests such as discovery and key set fetches are
// retried on transient failures; the token exchange POST is sent once.
package httpclient

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

// ErrBodyNotReplayable indicates a request body cannot be retried.
var ErrBodyNotReplayable = errors.New("request body is not replayable")

// BackoffFunc returns the wait before retry attempt n (1-based).
type BackoffFunc func(attempt int) time.Duration

// RetryDecider decides whether a request should be retried.
type RetryDecider func(req *http.Request, resp *http.Response, err error) bool

// RetryOptions configures retry behavior.
type RetryOptions struct {
	MaxRetries int
	Backoff    BackoffFunc
	RetryIf    RetryDecider
	Logger     *slog.Logger
}

// DefaultRetryOptions retries twice, starting at 200ms.
func DefaultRetryOptions() RetryOptions {
	return RetryOptions{
		MaxRetries: 2,
		Backoff:    ExponentialBackoff(200*time.Millisecond, 2*time.Second),
		RetryIf:    DefaultRetryDecider,
	}
}

// Transport retries requests according to Options.
type Transport struct {
	Base    http.RoundTripper
	Options RetryOptions
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	opts := t.Options
	if opts.Backoff == nil {
		opts.Backoff = DefaultRetryOptions().Backoff
	}
	if opts.RetryIf == nil {
		opts.RetryIf = DefaultRetryDecider
	}

	for attempt := 0; ; attempt++ {
		current, err := replay(req, attempt)
		if err != nil {
			return nil, err
		}

		resp, err := base.RoundTrip(current)
		if attempt >= opts.MaxRetries || !opts.RetryIf(req, resp, err) {
			return resp, err
		}
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}

		wait := opts.Backoff(attempt + 1)
		if opts.Logger != nil {
			attrs := []any{
				slog.String("host", req.URL.Host),
				slog.Int("attempt", attempt+1),
				slog.Duration("wait", wait),
			}
			if err != nil {
				attrs = append(attrs, slog.String("error", err.Error()))
			} else {
				attrs = append(attrs, slog.Int("status", resp.StatusCode))
			}
			opts.Logger.Warn("retrying identity provider request", attrs...)
		}
		if err := sleep(req.Context(), wait); err != nil {
			return nil, err
		}
	}
}

// ExponentialBackoff doubles from base up to max.
func ExponentialBackoff(base, max time.Duration) BackoffFunc {
	return func(attempt int) time.Duration {
		if attempt <= 1 {
			return base
		}
		delay := base << (attempt - 1)
		if delay > max || delay <= 0 {
			return max
		}
		return delay
	}
}

// DefaultRetryDecider retries idempotent methods on network errors, 429 and
// 5xx responses.
func DefaultRetryDecider(req *http.Request, resp *http.Response, err error) bool {
	if !idempotent(req.Method) {
		return false
	}
	if err != nil {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	return resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError
}

// Options configures New.
type Options struct {
	Timeout   time.Duration
	Transport http.RoundTripper
	Retry     RetryOptions
}

// New builds an http.Client. A zero MaxRetries disables retries.
func New(options Options) *http.Client {
	transport := options.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	if options.Retry.MaxRetries > 0 {
		transport = &Transport{Base: transport, Options: options.Retry}
	}
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &http.Client{Transport: transport, Timeout: timeout}
}

func replay(req *http.Request, attempt int) (*http.Request, error) {
	if attempt == 0 {
		return req, nil
	}
	clone := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return clone, nil
	}
	if req.GetBody == nil {
		return nil, ErrBodyNotReplayable
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	clone.Body = body
	return clone, nil
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

func idempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}

// Package health serves liveness and readiness reports.
package health

import (
	"context"
	"encoding/json"
	"maps"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/devmarvs/bear"
)

// CheckFunc runs a health or readiness check.
type CheckFunc func(context.Context) error

// CheckResult reports a single check.
type CheckResult struct {
	Name       string `json:"name"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// Report describes health status.
type Report struct {
	Status      string        `json:"status"`
	Checks      []CheckResult `json:"checks"`
	DurationMS  int64         `json:"duration_ms"`
	CheckedAt   time.Time     `json:"checked_at"`
	ChecksReady bool          `json:"ready"`
}

// Option configures a Registry.
type Option func(*Registry)

// WithTimeout sets a timeout for all checks.
func WithTimeout(timeout time.Duration) Option {
	return func(r *Registry) {
		r.timeout = timeout
	}
}

// Registry stores health and readiness checks.
type Registry struct {
	mu      sync.RWMutex
	checks  map[string]CheckFunc
	ready   map[string]CheckFunc
	timeout time.Duration
}

// DefaultTimeout bounds each check unless WithTimeout overrides it.
const DefaultTimeout = 2 * time.Second

// New creates a Registry.
func New(options ...Option) *Registry {
	registry := &Registry{
		checks:  make(map[string]CheckFunc),
		ready:   make(map[string]CheckFunc),
		timeout: DefaultTimeout,
	}
	for _, opt := range options {
		opt(registry)
	}
	return registry
}

// Add registers a liveness check.
func (r *Registry) Add(name string, check CheckFunc) {
	r.mu.Lock()
	r.checks[name] = check
	r.mu.Unlock()
}

// AddReady registers a readiness check.
func (r *Registry) AddReady(name string, check CheckFunc) {
	r.mu.Lock()
	r.ready[name] = check
	r.mu.Unlock()
}

// Pinger checks a connection pool; *db.Main satisfies it.
type Pinger interface {
	PingWriter(ctx context.Context) error
	PingReader(ctx context.Context) error
}

// WithDatabase registers the writer pool as a liveness check and both pools
// as readiness checks. The writer pool has a single connection, so its check
// waits behind an in-flight request transaction and is bounded by the
// registry timeout.
func WithDatabase(database Pinger) Option {
	return func(r *Registry) {
		r.checks["db.writer"] = database.PingWriter
		r.ready["db.writer"] = database.PingWriter
		r.ready["db.reader"] = database.PingReader
	}
}

// Mount serves the liveness report on /health and readiness on /ready,
// outside the request middleware.
func (r *Registry) Mount(app *bear.App) {
	app.Mount("GET /health", r.Handler())
	app.Mount("GET /ready", r.ReadyHandler())
}

// Handler returns a handler for liveness checks.
func (r *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		report, status := r.report(req.Context(), r.snapshot(r.checks), false)
		writeReport(w, report, status)
	})
}

// ReadyHandler returns a handler for readiness checks.
func (r *Registry) ReadyHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		report, status := r.report(req.Context(), r.snapshot(r.ready), true)
		writeReport(w, report, status)
	})
}

func (r *Registry) report(ctx context.Context, checks map[string]CheckFunc, ready bool) (Report, int) {
	start := time.Now()
	results := make([]CheckResult, 0, len(checks))

	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	for _, name := range names {
		check := checks[name]
		result := runCheck(ctx, check, r.timeout)
		result.Name = name
		results = append(results, result)
		if result.Status != "ok" {
			status = http.StatusServiceUnavailable
		}
	}

	report := Report{
		Status:      statusLabel(status),
		Checks:      results,
		DurationMS:  time.Since(start).Milliseconds(),
		CheckedAt:   time.Now().UTC(),
		ChecksReady: ready,
	}
	return report, status
}

func runCheck(ctx context.Context, check CheckFunc, timeout time.Duration) CheckResult {
	if check == nil {
		return CheckResult{Status: "ok"}
	}

	checkCtx := ctx
	cancel := func() {}
	if timeout > 0 {
		checkCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	start := time.Now()
	err := check(checkCtx)
	result := CheckResult{DurationMS: time.Since(start).Milliseconds()}
	if err != nil {
		result.Status = "fail"
		result.Error = err.Error()
		return result
	}
	result.Status = "ok"
	return result
}

func (r *Registry) snapshot(source map[string]CheckFunc) map[string]CheckFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return maps.Clone(source)
}

func statusLabel(code int) string {
	if code >= http.StatusBadRequest {
		return "fail"
	}
	return "ok"
}

func writeReport(w http.ResponseWriter, report Report, status int) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(report)
}

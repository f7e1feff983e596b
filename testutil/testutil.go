package testutil

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/devmarvs/bear"
	"github.com/devmarvs/bear/apperr"
	"github.com/devmarvs/bear/config"
	"github.com/devmarvs/bear/db"
	"github.com/devmarvs/bear/logging"
	"github.com/devmarvs/bear/migrate"
)

// Do executes a request against a handler.
func Do(t *testing.T, handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

// MustStatus asserts the response status code.
func MustStatus(t *testing.T, rec *httptest.ResponseRecorder, status int) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("expected status %d, got %d: %s", status, rec.Code, rec.Body.String())
	}
}

// DecodeJSON decodes a JSON response into dst.
func DecodeJSON(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(dst); err != nil {
		t.Fatalf("decode json: %v", err)
	}
}

// MustErrCode asserts err carries an application error with code and, when
// message is not empty, that message.
func MustErrCode(t *testing.T, err error, code, message string) {
	t.Helper()
	appErr := apperr.As(err)
	if appErr == nil {
		t.Fatalf("expected %s error, got %v", code, err)
	}
	if appErr.Code != code {
		t.Fatalf("expected code %s, got %s (%v)", code, appErr.Code, err)
	}
	if message != "" && appErr.Message != message {
		t.Fatalf("expected message %q, got %q", message, appErr.Message)
	}
}

// NewApp returns an app that discards its logs.
func NewApp() *bear.App {
	return bear.New(bear.WithLogger(logging.Discard()))
}

// RunMiddleware executes middleware with a handler and request and returns
// the request context for inspection.
func RunMiddleware(t *testing.T, middleware []bear.Middleware, handler bear.Handler, req *http.Request) (*httptest.ResponseRecorder, *bear.Context, error) {
	t.Helper()
	if req == nil {
		req = httptest.NewRequest(http.MethodGet, "/", nil)
	}

	rec := httptest.NewRecorder()
	ctx := bear.NewContext(rec, req, NewApp())

	h := handler
	if h == nil {
		h = func(*bear.Context) error { return nil }
	}
	for i := len(middleware) - 1; i >= 0; i-- {
		h = middleware[i](h)
	}

	err := h(ctx)
	return rec, ctx, err
}

// OpenDB opens a migrated sqlite database in a temporary directory.
func OpenDB(t testing.TB) *db.Main {
	t.Helper()
	main, err := db.New(config.Database{
		Driver:    "sqlite3",
		WriterDSN: "file:" + filepath.Join(t.TempDir(), "bear.db"),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = main.Close() })

	if _, err := migrate.Apply(context.Background(), main); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return main
}

// CounterHas reports whether the named counter has a positive sample carrying
// label=value.
func CounterHas(t *testing.T, gatherer prometheus.Gatherer, name, label, value string) bool {
	t.Helper()
	families, err := gatherer.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, pair := range metric.GetLabel() {
				if pair.GetName() == label && pair.GetValue() == value && metric.GetCounter().GetValue() > 0 {
					return true
				}
			}
		}
	}
	return false
}

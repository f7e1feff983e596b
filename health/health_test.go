package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/devmarvs/bear"
	"github.com/devmarvs/bear/logging"
	"github.com/devmarvs/bear/testutil"
)

func TestRegistryHandlerOK(t *testing.T) {
	reg := New()
	reg.Add("db", func(ctx context.Context) error {
		return nil
	})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	reg.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
}

func TestRegistryReadyFail(t *testing.T) {
	reg := New(WithTimeout(10 * time.Millisecond))
	reg.AddReady("cache", func(ctx context.Context) error {
		return errors.New("down")
	})

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()

	reg.ReadyHandler().ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status %d, got %d", http.StatusServiceUnavailable, rec.Code)
	}
}

type fakePinger struct {
	reader error
}

func (f fakePinger) PingWriter(context.Context) error { return nil }
func (f fakePinger) PingReader(context.Context) error { return f.reader }

func TestWithDatabase(t *testing.T) {
	reg := New(WithDatabase(fakePinger{reader: errors.New("reader down")}))
	app := bear.New(bear.WithLogger(logging.Discard()))
	reg.Mount(app)

	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected live writer, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected unready reader, got %d", rec.Code)
	}

	var report Report
	if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(report.Checks) != 2 || report.Checks[0].Name != "db.reader" || report.Checks[0].Status != "fail" {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestWithRealDatabase(t *testing.T) {
	reg := New(WithDatabase(testutil.OpenDB(t)))
	rec := httptest.NewRecorder()
	reg.ReadyHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected ready, got %d: %s", rec.Code, rec.Body.String())
	}
}

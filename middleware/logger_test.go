package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/devmarvs/bear"
	"github.com/devmarvs/bear/apperr"
)

type captureHandler struct {
	mu     sync.Mutex
	levels []slog.Level
}

func (c *captureHandler) Enabled(context.Context, slog.Level) bool {
	return true
}

func (c *captureHandler) Handle(_ context.Context, record slog.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.levels = append(c.levels, record.Level)
	return nil
}

func (c *captureHandler) WithAttrs([]slog.Attr) slog.Handler {
	return c
}

func (c *captureHandler) WithGroup(string) slog.Handler {
	return c
}

func (c *captureHandler) Levels() []slog.Level {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]slog.Level{}, c.levels...)
}

func newLoggedApp(handler slog.Handler, options LoggerOptions) *bear.App {
	app := bear.New(
		bear.WithLogger(slog.New(handler)),
		bear.WithErrorHandler(func(*bear.Context, error) {}),
	)
	app.Use(LoggerWithOptions(options))
	return app
}

func TestLoggerLevels(t *testing.T) {
	handler := &captureHandler{}
	app := newLoggedApp(handler, LoggerOptions{Fields: []LogField{LogStatus()}, ErrorLevel: true})
	app.GET("/boom", func(ctx *bear.Context) error {
		return apperr.Internal("boom", nil)
	})
	app.GET("/expired", func(ctx *bear.Context) error {
		return apperr.Expired(nil)
	})
	app.GET("/ok", func(ctx *bear.Context) error {
		return ctx.NoContent(http.StatusNoContent)
	})

	for _, path := range []string{"/boom", "/expired", "/ok"} {
		app.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	levels := handler.Levels()
	want := []slog.Level{slog.LevelError, slog.LevelWarn, slog.LevelInfo}
	if len(levels) != len(want) {
		t.Fatalf("expected %d entries, got %v", len(want), levels)
	}
	for i := range want {
		if levels[i] != want[i] {
			t.Fatalf("entry %d: expected %v, got %v", i, want[i], levels[i])
		}
	}
}

func TestLoggerSkipsProbes(t *testing.T) {
	handler := &captureHandler{}
	app := newLoggedApp(handler, DefaultLoggerOptions())
	app.GET("/health", func(ctx *bear.Context) error {
		return ctx.Text(http.StatusOK, "ok")
	})

	app.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	if len(handler.Levels()) != 0 {
		t.Fatal("expected no logs for probe path")
	}

	app = newLoggedApp(handler, LoggerOptions{SkipPaths: []string{"/debug/*"}})
	app.GET("/debug/{name}", func(ctx *bear.Context) error {
		return ctx.Text(http.StatusOK, "ok")
	})
	app.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/debug/pprof", nil))
	if len(handler.Levels()) != 0 {
		t.Fatal("expected wildcard skip")
	}
}

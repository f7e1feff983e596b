package bear

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/devmarvs/bear/apperr"
	"github.com/devmarvs/bear/logging"
)

func newTestApp() *App {
	return New(WithLogger(logging.Discard()))
}

func TestRouteParams(t *testing.T) {
	app := newTestApp()
	app.GET("/users/{id}", func(ctx *Context) error {
		return ctx.Text(http.StatusOK, ctx.Param("id"))
	})

	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users/42", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "42" {
		t.Fatalf("expected 200 42, got %d %q", rec.Code, rec.Body.String())
	}
}

func TestNotFoundRunsMiddleware(t *testing.T) {
	app := newTestApp()
	ran := false
	app.Use(func(next Handler) Handler {
		return func(ctx *Context) error {
			ran = true
			return next(ctx)
		}
	})

	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if !ran {
		t.Fatal("expected global middleware to run for unmatched routes")
	}
}

func TestErrorRendering(t *testing.T) {
	app := newTestApp()
	app.GET("/expired", func(ctx *Context) error {
		return apperr.Expired(errors.New("stale"))
	})
	app.GET("/boom", func(ctx *Context) error {
		return errors.New("database exploded")
	})

	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/expired", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.Code != apperr.CodeExpired || body.Error.Message != "session.expired" {
		t.Fatalf("unexpected error body %+v", body)
	}

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	req.Header.Set("Accept", "text/plain")
	rec = httptest.NewRecorder()
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "exploded") {
		t.Fatalf("internal error leaked: %q", rec.Body.String())
	}
}

func TestMountBypassesMiddleware(t *testing.T) {
	app := newTestApp()
	app.Use(func(Handler) Handler {
		return func(*Context) error { return apperr.Forbidden("blocked", nil) }
	})
	app.Mount("GET /raw", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/raw", nil))
	if rec.Code != http.StatusTeapot {
		t.Fatalf("expected mounted handler, got %d", rec.Code)
	}
}

func TestBindJSON(t *testing.T) {
	app := newTestApp()
	app.POST("/items", func(ctx *Context) error {
		var payload struct {
			Name string `json:"name"`
		}
		if err := ctx.BindJSON(&payload); err != nil {
			return err
		}
		return ctx.JSON(http.StatusCreated, payload)
	})

	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/items", strings.NewReader(`{"name":"a"}`)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/items", strings.NewReader(`{"other":1}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", rec.Code)
	}
}

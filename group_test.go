package bear

import (
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
)

func TestJoinPaths(t *testing.T) {
	cases := []struct {
		base string
		path string
		want string
	}{
		{"", "/users", "/users"},
		{"/api", "/v1", "/api/v1"},
		{"/api/", "v1", "/api/v1"},
		{"/", "/health", "/health"},
		{"/api", "/", "/api"},
		{"api", "v1/users", "/api/v1/users"},
	}

	for _, tc := range cases {
		if got := joinPaths(tc.base, tc.path); got != tc.want {
			t.Fatalf("joinPaths(%q, %q) = %q, want %q", tc.base, tc.path, got, tc.want)
		}
	}
}

func TestGroupMiddlewareOrder(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next Handler) Handler {
			return func(ctx *Context) error {
				order = append(order, name)
				return next(ctx)
			}
		}
	}

	app := newTestApp()
	app.Use(mark("global"))
	api := app.Group("/api", mark("group"))
	admin := api.Group("/admin", mark("nested"))
	admin.GET("/users", func(ctx *Context) error {
		order = append(order, "handler")
		return ctx.NoContent(http.StatusNoContent)
	}, mark("route"))

	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/admin/users", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	want := []string{"global", "group", "nested", "route", "handler"}
	if !reflect.DeepEqual(order, want) {
		t.Fatalf("expected %v, got %v", want, order)
	}
}

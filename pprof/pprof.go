// Package pprof exposes the runtime profiler to signed-in administrators.
package pprof

import (
	"net/http"
	netpprof "net/http/pprof"

	"github.com/devmarvs/bear"
)

// Prefix is where the profiler is mounted.
const Prefix = "/debug/pprof"

// Mount registers the profiler routes behind the given middleware, which must
// attach an OIDC principal. Every route consumes that principal.
func Mount(app *bear.App, middleware ...bear.Middleware) {
	group := app.Group(Prefix, middleware...)

	group.GET("/", adminOnly(netpprof.Index))
	group.GET("/cmdline", adminOnly(netpprof.Cmdline))
	group.GET("/profile", adminOnly(netpprof.Profile))
	group.GET("/symbol", adminOnly(netpprof.Symbol))
	group.POST("/symbol", adminOnly(netpprof.Symbol))
	group.GET("/trace", adminOnly(netpprof.Trace))
	group.GET("/{profile}", func(ctx *bear.Context) error {
		if _, err := bear.OidcPrincipalFrom(ctx); err != nil {
			return err
		}
		netpprof.Handler(ctx.Param("profile")).ServeHTTP(ctx.ResponseWriter, ctx.Request)
		return nil
	})
}

func adminOnly(handler http.HandlerFunc) bear.Handler {
	return func(ctx *bear.Context) error {
		if _, err := bear.OidcPrincipalFrom(ctx); err != nil {
			return err
		}
		handler(ctx.ResponseWriter, ctx.Request)
		return nil
	}
}

package middleware

import (
	"github.com/devmarvs/bear"
	"github.com/devmarvs/bear/metrics"
)

// MetricsOptions configures request metrics.
type MetricsOptions struct {
	Registry  *metrics.Registry
	SkipPaths []string
}

// Metrics records request metrics into the registry.
func Metrics(registry *metrics.Registry) bear.Middleware {
	return MetricsWithOptions(MetricsOptions{
		Registry:  registry,
		SkipPaths: []string{"/metrics"},
	})
}

// MetricsWithOptions records request metrics with options.
func MetricsWithOptions(options MetricsOptions) bear.Middleware {
	skip := newSkipList(options.SkipPaths)
	return func(next bear.Handler) bear.Handler {
		return func(ctx *bear.Context) error {
			registry := options.Registry
			if registry == nil || skip.matches(ctx.Request.URL.Path) {
				return next(ctx)
			}

			start := registry.Start()
			recorder := newResponseRecorder(ctx.ResponseWriter)
			ctx.ResponseWriter = recorder

			err := next(ctx)
			ctx.ResponseWriter = recorder.writer

			registry.End(start, statusOf(recorder, err))
			return err
		}
	}
}

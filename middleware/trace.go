package middleware

import (
	"context"

	"github.com/devmarvs/bear"
)

// Tracer starts spans for incoming requests.
type Tracer interface {
	Start(*bear.Context) (context.Context, func(status int, err error))
}

// Trace records request spans using the provided tracer.
func Trace(tracer Tracer) bear.Middleware {
	return TraceWithOptions(DefaultTraceOptions(tracer))
}

// TraceOptions configures tracing middleware.
type TraceOptions struct {
	Tracer    Tracer
	SkipPaths []string
}

// DefaultTraceOptions returns default tracing options.
func DefaultTraceOptions(tracer Tracer) TraceOptions {
	return TraceOptions{
		Tracer:    tracer,
		SkipPaths: []string{"/metrics", "/health", "/ready"},
	}
}

// TraceWithOptions records request spans with options. The span context
// replaces the request context, so transaction recorders built later in the
// chain can annotate the span.
func TraceWithOptions(options TraceOptions) bear.Middleware {
	skip := newSkipList(options.SkipPaths)
	return func(next bear.Handler) bear.Handler {
		return func(ctx *bear.Context) error {
			if options.Tracer == nil || skip.matches(ctx.Request.URL.Path) {
				return next(ctx)
			}

			recorder := newResponseRecorder(ctx.ResponseWriter)
			ctx.ResponseWriter = recorder

			traceCtx, finish := options.Tracer.Start(ctx)
			if traceCtx != nil {
				ctx.Request = ctx.Request.WithContext(traceCtx)
			}

			err := next(ctx)
			ctx.ResponseWriter = recorder.writer

			if finish != nil {
				finish(statusOf(recorder, err), err)
			}
			return err
		}
	}
}

// Package otel adapts OpenTelemetry tracing to the request middleware.
package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/devmarvs/bear"
	"github.com/devmarvs/bear/txn"
)

// Tracer adapts OpenTelemetry tracing to middleware.Trace.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a tracer from the global provider.
func NewTracer(name string) *Tracer {
	return NewTracerWithProvider(otel.GetTracerProvider(), name)
}

// NewTracerWithProvider creates a tracer from provider.
func NewTracerWithProvider(provider trace.TracerProvider, name string) *Tracer {
	if name == "" {
		name = "bear"
	}
	return &Tracer{tracer: provider.Tracer(name)}
}

// Start starts a span for the request.
func (t *Tracer) Start(ctx *bear.Context) (context.Context, func(status int, err error)) {
	if t == nil || ctx == nil {
		return context.Background(), nil
	}

	req := ctx.Request
	spanCtx, span := t.tracer.Start(req.Context(), req.Method+" "+req.URL.Path)

	attrs := []attribute.KeyValue{
		attribute.String("http.method", req.Method),
		attribute.String("http.target", req.URL.Path),
	}
	if req.Host != "" {
		attrs = append(attrs, attribute.String("http.host", req.Host))
	}
	if id := ctx.RequestID(); id != "" {
		attrs = append(attrs, attribute.String("bear.request_id", id))
	}
	span.SetAttributes(attrs...)

	return spanCtx, func(status int, err error) {
		span.SetAttributes(attribute.Int("http.status_code", status))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}
}

// TxnEvents records transaction lifecycle events on the request span.
func TxnEvents(ctx *bear.Context) txn.Recorder {
	span := trace.SpanFromContext(ctx.Request.Context())
	return txn.RecorderFunc(func(state txn.State) {
		span.AddEvent("txn."+state.String())
	})
}

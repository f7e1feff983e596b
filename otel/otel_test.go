package otel

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/devmarvs/bear"
	"github.com/devmarvs/bear/logging"
	"github.com/devmarvs/bear/txn"
)

type eventSpan struct {
	trace.Span
	events []string
}

func (s *eventSpan) AddEvent(name string, _ ...trace.EventOption) {
	s.events = append(s.events, name)
}

func TestTxnEvents(t *testing.T) {
	span := &eventSpan{Span: trace.SpanFromContext(t.Context())}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(trace.ContextWithSpan(req.Context(), span))
	ctx := bear.NewContext(httptest.NewRecorder(), req, bear.New(bear.WithLogger(logging.Discard())))

	recorder := TxnEvents(ctx)
	recorder.Record(txn.Nonexistent)
	recorder.Record(txn.Started)
	recorder.Record(txn.Committed)

	want := []string{"txn." + txn.Nonexistent.String(), "txn." + txn.Started.String(), "txn." + txn.Committed.String()}
	if !reflect.DeepEqual(span.events, want) {
		t.Fatalf("expected %v, got %v", want, span.events)
	}
}

func TestTracerStart(t *testing.T) {
	tracer := NewTracerWithProvider(noop.NewTracerProvider(), "")
	req := httptest.NewRequest(http.MethodPost, "/api/logout", nil)
	ctx := bear.NewContext(httptest.NewRecorder(), req, bear.New(bear.WithLogger(logging.Discard())))

	spanCtx, finish := tracer.Start(ctx)
	if spanCtx == nil || finish == nil {
		t.Fatal("expected span context and finish func")
	}
	finish(http.StatusUnauthorized, errors.New("session.not.found"))

	var nilTracer *Tracer
	if _, finish := nilTracer.Start(ctx); finish != nil {
		t.Fatal("expected nil tracer to be inert")
	}
}

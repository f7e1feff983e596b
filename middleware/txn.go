package middleware

import (
	"bytes"
	"log/slog"
	"net/http"

	"github.com/devmarvs/bear"
	"github.com/devmarvs/bear/apperr"
	"github.com/devmarvs/bear/metrics"
	"github.com/devmarvs/bear/txn"
)

// UnitOfWorkOptions configures UnitOfWork.
type UnitOfWorkOptions struct {
	// Recorder observes every request's transaction events.
	Recorder txn.Recorder
	// RequestRecorder builds an additional per-request recorder, for example
	// one that annotates the request span.
	RequestRecorder func(*bear.Context) txn.Recorder
	Metrics         *metrics.Registry
}

// UnitOfWorkOption customizes UnitOfWork.
type UnitOfWorkOption func(*UnitOfWorkOptions)

// WithTxnRecorder observes transaction events.
func WithTxnRecorder(recorder txn.Recorder) UnitOfWorkOption {
	return func(o *UnitOfWorkOptions) {
		o.Recorder = recorder
	}
}

// WithRequestTxnRecorder observes transaction events with a recorder built
// for each request.
func WithRequestTxnRecorder(build func(*bear.Context) txn.Recorder) UnitOfWorkOption {
	return func(o *UnitOfWorkOptions) {
		o.RequestRecorder = build
	}
}

// WithTxnMetrics counts transaction events.
func WithTxnMetrics(registry *metrics.Registry) UnitOfWorkOption {
	return func(o *UnitOfWorkOptions) {
		o.Metrics = registry
	}
}

// UnitOfWork gives each request one lazily started transaction. When the
// handler returns, a started transaction is rolled back if the handler
// failed or the response status is 400 or above, and committed otherwise.
// The response is held back until the transaction is finalized, so a
// failed commit still yields an error response.
func UnitOfWork(database txn.Beginner, options ...UnitOfWorkOption) bear.Middleware {
	var opts UnitOfWorkOptions
	for _, opt := range options {
		opt(&opts)
	}

	return func(next bear.Handler) bear.Handler {
		return func(ctx *bear.Context) (err error) {
			recorder := requestRecorder(ctx, opts)
			store := txn.NewStore()
			txn.Install(ctx, store, database, recorder)
			recorder.Record(txn.Nonexistent)

			original := ctx.ResponseWriter
			writer := newBufferedWriter(original)
			ctx.ResponseWriter = writer

			defer func() {
				if rec := recover(); rec != nil {
					ctx.ResponseWriter = original
					tx, _ := store.Reclaim()
					_ = txn.Finalize(tx, false, recorder)
					panic(rec)
				}
			}()

			err = next(ctx)
			ctx.ResponseWriter = original

			status := writer.Status()
			if err != nil {
				status = http.StatusInternalServerError
				if appErr := apperr.As(err); appErr != nil {
					status = appErr.Status
				}
			}

			commit := err == nil && status < http.StatusBadRequest
			tx, onLoan := store.Reclaim()
			if onLoan {
				ctx.Logger().Warn("transaction accessor not released")
			}
			if finalizeErr := txn.Finalize(tx, commit, recorder); finalizeErr != nil {
				if err != nil {
					ctx.Logger().Error("transaction finalize failed after request error",
						slog.String("error", err.Error()),
						slog.String("finalize_error", finalizeErr.Error()),
					)
				} else {
					ctx.Logger().Error("transaction finalize failed", slog.String("error", finalizeErr.Error()))
				}
				return finalizeErr
			}
			if err != nil {
				return err
			}

			writer.flush()
			return nil
		}
	}
}

func requestRecorder(ctx *bear.Context, opts UnitOfWorkOptions) txn.Recorder {
	recorders := []txn.Recorder{opts.Recorder}
	if opts.RequestRecorder != nil {
		recorders = append(recorders, opts.RequestRecorder(ctx))
	}
	if opts.Metrics != nil {
		registry := opts.Metrics
		recorders = append(recorders, txn.RecorderFunc(func(state txn.State) {
			registry.Txn(state.String())
		}))
	}
	return txn.Multi(recorders...)
}

// bufferedWriter holds the status, headers and body until flush.
type bufferedWriter struct {
	w      http.ResponseWriter
	header http.Header
	buffer bytes.Buffer
	code   int
}

func newBufferedWriter(w http.ResponseWriter) *bufferedWriter {
	return &bufferedWriter{w: w, header: make(http.Header)}
}

func (bw *bufferedWriter) Header() http.Header {
	return bw.header
}

func (bw *bufferedWriter) WriteHeader(code int) {
	if bw.code == 0 {
		bw.code = code
	}
}

func (bw *bufferedWriter) Write(p []byte) (int, error) {
	if bw.code == 0 {
		bw.code = http.StatusOK
	}
	return bw.buffer.Write(p)
}

// Status returns the status the handler chose, defaulting to 200.
func (bw *bufferedWriter) Status() int {
	if bw.code == 0 {
		return http.StatusOK
	}
	return bw.code
}

func (bw *bufferedWriter) flush() {
	for key, values := range bw.header {
		for _, value := range values {
			bw.w.Header().Add(key, value)
		}
	}
	if bw.code != 0 {
		bw.w.WriteHeader(bw.code)
	}
	if bw.buffer.Len() > 0 {
		_, _ = bw.w.Write(bw.buffer.Bytes())
	}
}

func (bw *bufferedWriter) Unwrap() http.ResponseWriter {
	return bw.w
}

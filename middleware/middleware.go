package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/devmarvs/bear"
	"github.com/devmarvs/bear/apperr"
)

// RequestID ensures a request id header is present on the request and the
// response.
func RequestID() bear.Middleware {
	return func(next bear.Handler) bear.Handler {
		return func(ctx *bear.Context) error {
			requestID := ctx.RequestID()
			if requestID == "" {
				requestID = bear.NewRequestID()
				ctx.Request.Header.Set(bear.RequestIDHeader, requestID)
			}
			ctx.ResponseWriter.Header().Set(bear.RequestIDHeader, requestID)
			return next(ctx)
		}
	}
}

// Recover converts panics into internal errors.
func Recover() bear.Middleware {
	return func(next bear.Handler) bear.Handler {
		return func(ctx *bear.Context) (err error) {
			defer func() {
				if rec := recover(); rec != nil {
					err = apperr.Internal("panic", fmt.Errorf("%v", rec))
				}
			}()
			return next(ctx)
		}
	}
}

// Logger logs request/response details.
func Logger() bear.Middleware {
	return LoggerWithOptions(DefaultLoggerOptions())
}

// LoggerOptions configures access logging.
type LoggerOptions struct {
	Fields     []LogField
	Message    string
	SkipPaths  []string
	// ErrorLevel logs 5xx responses at error and other failed requests,
	// such as rejected credentials, at warn.
	ErrorLevel bool
}

// DefaultLoggerOptions returns default logging options.
func DefaultLoggerOptions() LoggerOptions {
	return LoggerOptions{
		Fields:     DefaultLogFields(),
		Message:    "request completed",
		SkipPaths:  []string{"/metrics", "/health", "/ready"},
		ErrorLevel: true,
	}
}

// LoggerWithOptions logs requests using the provided options.
func LoggerWithOptions(options LoggerOptions) bear.Middleware {
	skip := newSkipList(options.SkipPaths)
	if len(options.Fields) == 0 {
		options.Fields = DefaultLogFields()
	}
	if options.Message == "" {
		options.Message = "request completed"
	}

	return func(next bear.Handler) bear.Handler {
		return func(ctx *bear.Context) error {
			if skip.matches(ctx.Request.URL.Path) {
				return next(ctx)
			}

			start := time.Now()
			recorder := newResponseRecorder(ctx.ResponseWriter)
			ctx.ResponseWriter = recorder

			err := next(ctx)
			ctx.ResponseWriter = recorder.writer

			if recorder.status == 0 {
				recorder.status = statusOf(recorder, err)
			}

			duration := time.Since(start)
			attrs := make([]slog.Attr, 0, len(options.Fields))
			for _, field := range options.Fields {
				attrs = append(attrs, field(ctx, recorder, duration))
			}

			switch {
			case options.ErrorLevel && recorder.status >= http.StatusInternalServerError:
				ctx.Logger().Error(options.Message, attrs...)
			case options.ErrorLevel && err != nil:
				ctx.Logger().Warn(options.Message, attrs...)
			default:
				ctx.Logger().Info(options.Message, attrs...)
			}
			return err
		}
	}
}

// statusOf returns the status a request ends with once the error handler has
// rendered err.
func statusOf(recorder *responseRecorder, err error) int {
	if err == nil {
		return recorder.Status()
	}
	if appErr := apperr.As(err); appErr != nil {
		return appErr.Status
	}
	return http.StatusInternalServerError
}

// responseRecorder captures status and response size.
type responseRecorder struct {
	writer http.ResponseWriter
	status int
	bytes  int
}

func newResponseRecorder(w http.ResponseWriter) *responseRecorder {
	return &responseRecorder{writer: w}
}

func (r *responseRecorder) Header() http.Header {
	return r.writer.Header()
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.writer.WriteHeader(status)
}

func (r *responseRecorder) Write(p []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.writer.Write(p)
	r.bytes += n
	return n, err
}

func (r *responseRecorder) Status() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

func (r *responseRecorder) Bytes() int {
	return r.bytes
}

func (r *responseRecorder) Unwrap() http.ResponseWriter {
	return r.writer
}

package middleware

import (
	"log/slog"
	"time"

	"github.com/devmarvs/bear"
)

// LogField builds a structured log attribute.
type LogField func(*bear.Context, *responseRecorder, time.Duration) slog.Attr

// DefaultLogFields returns the standard access log fields.
func DefaultLogFields() []LogField {
	return []LogField{
		LogMethod(),
		LogPath(),
		LogStatus(),
		LogDuration(),
		LogBytes(),
		LogPrincipal(),
	}
}

// LogMethod logs the HTTP method.
func LogMethod() LogField {
	return func(ctx *bear.Context, _ *responseRecorder, _ time.Duration) slog.Attr {
		return slog.String("method", ctx.Request.Method)
	}
}

// LogPath logs the request path.
func LogPath() LogField {
	return func(ctx *bear.Context, _ *responseRecorder, _ time.Duration) slog.Attr {
		return slog.String("path", ctx.Request.URL.Path)
	}
}

// LogStatus logs the response status.
func LogStatus() LogField {
	return func(_ *bear.Context, recorder *responseRecorder, _ time.Duration) slog.Attr {
		return slog.Int("status", recorder.Status())
	}
}

// LogDuration logs request latency.
func LogDuration() LogField {
	return func(_ *bear.Context, _ *responseRecorder, duration time.Duration) slog.Attr {
		return slog.Duration("duration", duration)
	}
}

// LogBytes logs response size in bytes.
func LogBytes() LogField {
	return func(_ *bear.Context, recorder *responseRecorder, _ time.Duration) slog.Attr {
		return slog.Int("bytes", recorder.Bytes())
	}
}

// LogPrincipal logs the kind and subject of the attached principal, if any.
// Logging does not count as consuming it.
func LogPrincipal() LogField {
	return func(ctx *bear.Context, _ *responseRecorder, _ time.Duration) slog.Attr {
		principal, ok := bear.AttachedPrincipal(ctx)
		if !ok {
			return slog.Group("principal")
		}
		return slog.Group("principal",
			slog.String("kind", principal.Kind),
			slog.String("subject", principal.Subject),
		)
	}
}

package bear

import "log/slog"

// Logger wraps slog.Logger with request context.
type Logger struct {
	logger    *slog.Logger
	requestID string
}

// Info logs an info message.
func (l Logger) Info(msg string, attrs ...slog.Attr) {
	l.logger.Info(msg, l.withRequestID(attrs)...)
}

// Warn logs a warning message.
func (l Logger) Warn(msg string, attrs ...slog.Attr) {
	l.logger.Warn(msg, l.withRequestID(attrs)...)
}

// Error logs an error message.
func (l Logger) Error(msg string, attrs ...slog.Attr) {
	l.logger.Error(msg, l.withRequestID(attrs)...)
}

// Debug logs a debug message.
func (l Logger) Debug(msg string, attrs ...slog.Attr) {
	l.logger.Debug(msg, l.withRequestID(attrs)...)
}

// Slog returns the underlying logger.
func (l Logger) Slog() *slog.Logger {
	return l.logger
}

func (l Logger) withRequestID(attrs []slog.Attr) []any {
	out := make([]any, 0, len(attrs)+1)
	for _, attr := range attrs {
		out = append(out, attr)
	}
	if l.requestID != "" {
		out = append(out, slog.String("request_id", l.requestID))
	}
	return out
}

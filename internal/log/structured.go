package log

import (
	"context"
	"log/slog"
	"net/http"
)

// StructuredLogger writes the fixed-shape records other components rely on:
// request completion, ledger mutations and failures.
type StructuredLogger struct {
	logger *Logger
}

func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{logger: logger}
}

// statusLevel maps 4xx to warn and 5xx to error.
func statusLevel(statusCode int) slog.Level {
	switch {
	case statusCode >= 500:
		return slog.LevelError
	case statusCode >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// LogHTTPEnd records a finished request.
func (sl *StructuredLogger) LogHTTPEnd(ctx context.Context, r *http.Request, statusCode int, durationMs int64, clientIP string) {
	fields := NewFields().
		WithRoute(r.Method, r.URL.Path).
		WithStatus(statusCode, durationMs).
		WithClientIP(clientIP)
	sl.logger.WithComponent(ComponentHTTP).Log(ctx, statusLevel(statusCode), "HTTP request completed", fields...)
}

// LogTransaction records an entry added to or removed from a session ledger.
func (sl *StructuredLogger) LogTransaction(ctx context.Context, op, sessionID string, id int64, desc, amount, kind string) {
	fields := NewFields().
		WithOperation(op).
		WithSession(sessionID).
		WithTransaction(id, desc, amount, kind)
	sl.logger.WithComponent(ComponentTracker).InfoContext(ctx, "Ledger updated", fields...)
}

// LogError records err under component. extra may be nil.
func (sl *StructuredLogger) LogError(ctx context.Context, msg string, err error, component, op string, extra Fields) {
	fields := append(NewFields().WithOperation(op).WithError(err), extra...)
	sl.logger.WithComponent(component).ErrorContext(ctx, msg, fields...)
}

package log

import (
	"context"
	"log/slog"
	"time"
)

type contextKey struct{}

// WithContext returns a copy of ctx carrying logger.
func WithContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext extracts the logger stored by WithContext, or a logger on
// slog's default handler.
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(contextKey{}).(*Logger); ok {
		return logger
	}
	return &Logger{
		Logger:    slog.Default(),
		component: "unknown",
	}
}

// StructuredLogger logs the lifecycle of facade operations in one shape.
type StructuredLogger struct {
	logger *Logger
}

func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{logger: logger}
}

// LogOperation logs the outcome of one unit of work. Failures are logged at
// warn for caller mistakes and error for everything else.
func (sl *StructuredLogger) LogOperation(ctx context.Context, op string, started time.Time, err error, fields LogFields) {
	if fields == nil {
		fields = NewFields()
	}
	fields = fields.
		WithOperation(op).
		WithDuration(time.Since(started).Milliseconds(), err == nil).
		WithError(err)

	switch {
	case err == nil:
		sl.logger.DebugContext(ctx, "Operation completed", fields.ToSlice()...)
	case ErrorType(err) == ErrorTypeValidation || ErrorType(err) == ErrorTypeNotFound:
		sl.logger.WarnContext(ctx, "Operation rejected", fields.ToSlice()...)
	default:
		sl.logger.ErrorContext(ctx, "Operation failed", fields.ToSlice()...)
	}
}

// LogPropagation logs one finished cascade.
func (sl *StructuredLogger) LogPropagation(ctx context.Context, anchor, lastWritten string, days int, err error) {
	fields := NewFields().
		WithOperation(OpPropagate).
		WithError(err)
	fields[FieldAnchor] = anchor
	fields[FieldLastWritten] = lastWritten
	fields[FieldDays] = days

	if err != nil {
		sl.logger.ErrorContext(ctx, "Balance propagation failed", fields.ToSlice()...)
		return
	}
	sl.logger.InfoContext(ctx, "Balances propagated", fields.ToSlice()...)
}

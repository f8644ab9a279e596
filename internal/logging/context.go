package logging

import (
	"context"
	"log/slog"

	"summify/internal/services"
)

// Keys shared by every component so log filters and the event stream can
// rely on them.
const (
	FieldComponent     = "component"
	FieldFileID        = "file_id"
	FieldJobID         = "job_id"
	FieldStep          = "step"
	FieldChunkIndex    = "chunk_index"
	FieldCorrelationID = "correlation_id"
	// FieldEventType classifies a line for filtering: step_start, job_failed.
	FieldEventType = "event_type"
	// FieldErrorHint carries a short operator-facing next step.
	FieldErrorHint = "error_hint"
	FieldErrorCode = "error_code"
)

// ContextFields turns the work scope on ctx into log attributes.
func ContextFields(ctx context.Context) []slog.Attr {
	scope := services.ScopeOf(ctx)
	fields := make([]slog.Attr, 0, 4)
	for _, f := range []struct{ key, value string }{
		{FieldFileID, scope.FileID},
		{FieldJobID, scope.JobID},
		{FieldStep, scope.Step},
		{FieldCorrelationID, scope.RequestID},
	} {
		if f.value != "" {
			fields = append(fields, slog.String(f.key, f.value))
		}
	}
	return fields
}

// WithContext returns logger with the scope of ctx attached.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	if fields := ContextFields(ctx); len(fields) > 0 {
		return logger.With(Args(fields...)...)
	}
	return logger
}

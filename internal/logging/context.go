package logging

import (
	"context"
	"log/slog"
)

type contextKey int

const (
	projectIDKey contextKey = iota
	stageKey
	requestIDKey
)

// WithProject records a project identifier on the context for log enrichment.
func WithProject(ctx context.Context, projectID string) context.Context {
	return context.WithValue(ctx, projectIDKey, projectID)
}

// WithStage records the active pipeline stage on the context.
func WithStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, stageKey, stage)
}

// WithRequestID records a request correlation identifier on the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if id, ok := ctx.Value(projectIDKey).(string); ok && id != "" {
		fields = append(fields, slog.String(FieldProjectID, id))
	}
	if stage, ok := ctx.Value(stageKey).(string); ok && stage != "" {
		fields = append(fields, slog.String(FieldStage, stage))
	}
	if rid, ok := ctx.Value(requestIDKey).(string); ok && rid != "" {
		fields = append(fields, slog.String(FieldRequestID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from
// the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}

package logging

import (
	"context"
	"log/slog"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldProvider is the standardized key for content provider names.
	FieldProvider = "provider"
	// FieldGID is the standardized key for provider-scoped gallery identifiers.
	FieldGID = "gid"
	// FieldJobID is the standardized key for web queue job identifiers.
	FieldJobID = "job_id"
	// FieldDownloader is the standardized key for downloader types.
	FieldDownloader = "downloader"
	// FieldEventType classifies a log line for filtering and alerting.
	FieldEventType = "event_type"
	// FieldErrorHint tells the operator what to check next.
	FieldErrorHint = "error_hint"
	// FieldCorrelationID is the standardized key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
)

type contextKey int

const (
	jobIDKey contextKey = iota
	providerKey
	requestIDKey
)

// ContextWithJobID tags ctx with a web queue job id.
func ContextWithJobID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, jobIDKey, id)
}

// ContextWithProvider tags ctx with the provider being processed.
func ContextWithProvider(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, providerKey, name)
}

// ContextWithRequestID tags ctx with an API request id.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

func stringFromContext(ctx context.Context, key contextKey) (string, bool) {
	value, ok := ctx.Value(key).(string)
	return value, ok && value != ""
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if id, ok := stringFromContext(ctx, jobIDKey); ok {
		fields = append(fields, slog.String(FieldJobID, id))
	}
	if name, ok := stringFromContext(ctx, providerKey); ok {
		fields = append(fields, slog.String(FieldProvider, name))
	}
	if rid, ok := stringFromContext(ctx, requestIDKey); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
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

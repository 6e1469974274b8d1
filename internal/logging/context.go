package logging

import (
	"context"
	"log/slog"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldItemID is the standardized structured logging key for queue item identifiers.
	FieldItemID = "item_id"
	// FieldPlatform is the standardized structured logging key for destination platform names.
	FieldPlatform = "platform"
	// FieldCycleID is the standardized structured logging key for processing-cycle correlation identifiers.
	FieldCycleID = "cycle_id"
	// FieldEventType is the standardized structured logging key for machine-readable event names.
	FieldEventType = "event_type"
	// FieldErrorHint is the standardized structured logging key for operator next-step hints.
	FieldErrorHint = "error_hint"
	// FieldAlert flags warnings or anomalies that should stand out in structured logs.
	FieldAlert = "alert"
)

type contextKey string

const (
	ctxKeyItemID  contextKey = "item_id"
	ctxKeyCycleID contextKey = "cycle_id"
)

// WithItemID stores a queue item identifier on the context for later log enrichment.
func WithItemID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyItemID, id)
}

// WithCycleID stores a processing-cycle correlation identifier on the context.
func WithCycleID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyCycleID, id)
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	var fields []slog.Attr
	if id, ok := ctx.Value(ctxKeyItemID).(string); ok && id != "" {
		fields = append(fields, slog.String(FieldItemID, id))
	}
	if id, ok := ctx.Value(ctxKeyCycleID).(string); ok && id != "" {
		fields = append(fields, slog.String(FieldCycleID, id))
	}
	return fields
}

// WithContext returns a logger enriched with any standardized fields carried on ctx.
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

package logging

import (
	"context"
	"log/slog"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldDemo names the demonstration directory being processed.
	FieldDemo = "demo"
	// FieldPrompt names the object prompt being tracked.
	FieldPrompt = "prompt"
	// FieldFrame is the zero-based frame index.
	FieldFrame = "frame"
	// FieldCamera names the camera stream.
	FieldCamera = "camera"
	// FieldRunID identifies one CLI invocation across all of its log lines.
	FieldRunID = "run_id"
	// FieldEventType tags log lines with a stable machine-readable event.
	FieldEventType = "event_type"
	// FieldErrorHint suggests the next step for an operator.
	FieldErrorHint = "error_hint"
	// FieldImpact is the standardized key for user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldDecisionType names the decision recorded by DecisionAttrs.
	FieldDecisionType = "decision_type"
)

type contextKey int

const (
	demoKey contextKey = iota
	promptKey
)

// WithDemo records the demonstration name on ctx for WithContext.
func WithDemo(ctx context.Context, demo string) context.Context {
	return context.WithValue(ctx, demoKey, demo)
}

// WithPrompt records the object prompt on ctx for WithContext.
func WithPrompt(ctx context.Context, prompt string) context.Context {
	return context.WithValue(ctx, promptKey, prompt)
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 2)
	if demo, ok := ctx.Value(demoKey).(string); ok && demo != "" {
		fields = append(fields, slog.String(FieldDemo, demo))
	}
	if prompt, ok := ctx.Value(promptKey).(string); ok && prompt != "" {
		fields = append(fields, slog.String(FieldPrompt, prompt))
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

package logging

import (
	"context"
	"log/slog"
)

type contextKey string

const (
	contextKeyLogger    contextKey = "logger"
	contextKeyMessageID contextKey = "message_id"
	contextKeyStage     contextKey = "stage"
)

// ContextWithMessageID returns a new context carrying the broker message ID
func ContextWithMessageID(ctx context.Context, messageID string) context.Context {
	return context.WithValue(ctx, contextKeyMessageID, messageID)
}

// MessageIDFromContext returns the broker message ID from context
func MessageIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(contextKeyMessageID).(string); ok {
		return v
	}
	return ""
}

// ContextWithStage returns a new context carrying the stage name
func ContextWithStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, contextKeyStage, stage)
}

// StageFromContext returns the stage name from context
func StageFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(contextKeyStage).(string); ok {
		return v
	}
	return ""
}

// EnrichLogger enriches logger with context values
func EnrichLogger(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = GetLogger()
	}

	if messageID := MessageIDFromContext(ctx); messageID != "" {
		logger = logger.With("message_id", messageID)
	}
	if stage := StageFromContext(ctx); stage != "" {
		logger = logger.With("stage", stage)
	}

	return logger
}

// ContextWithLogger returns a new context with an enriched logger
func ContextWithLogger(ctx context.Context, base *slog.Logger, args ...any) context.Context {
	logger := EnrichLogger(ctx, base)
	if len(args) > 0 {
		logger = logger.With(args...)
	}
	return context.WithValue(ctx, contextKeyLogger, logger)
}

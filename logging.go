package tgfetch

import (
	"context"

	"go.uber.org/zap"
)

type loggerContextKey struct{}

// WithLogger attaches a logger to the context.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey{}, logger)
}

// Logger returns the logger attached to the context, falling back to the
// global logger.
func Logger(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(loggerContextKey{}).(*zap.Logger); ok {
		return logger
	}
	return zap.L()
}

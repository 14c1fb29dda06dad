// Package logger configures the process-wide slog JSON logger and
// carries per-order log attributes through context.Context, so every
// line a pipeline emits can be correlated by order and pair.
package logger

import (
	"context"
	"log/slog"
	"os"
)

type ctxKey string

const (
	orderIDKey ctxKey = "order_id"
	pairKey    ctxKey = "pair"
)

// Init installs a JSON handler tagged with the service name as the
// process default logger and returns it.
func Init(service string, level slog.Level) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})).
		With(slog.String("service", service))
	slog.SetDefault(logger)
	return logger
}

// WithOrderID tags the context with the order a log line belongs to.
func WithOrderID(ctx context.Context, orderID string) context.Context {
	return context.WithValue(ctx, orderIDKey, orderID)
}

// WithPair tags the context with the order's token pair.
func WithPair(ctx context.Context, tokenIn, tokenOut string) context.Context {
	return context.WithValue(ctx, pairKey, tokenIn+"/"+tokenOut)
}

// OrderID extracts the order ID from context. Returns "" if not set.
func OrderID(ctx context.Context) string {
	if v, ok := ctx.Value(orderIDKey).(string); ok {
		return v
	}
	return ""
}

// Attrs returns the log attributes accumulated on ctx.
// Usage: slog.Info("msg", logger.Attrs(ctx)...)
func Attrs(ctx context.Context) []any {
	var attrs []any
	if id := OrderID(ctx); id != "" {
		attrs = append(attrs, slog.String("order_id", id))
	}
	if p, ok := ctx.Value(pairKey).(string); ok && p != "" {
		attrs = append(attrs, slog.String("pair", p))
	}
	return attrs
}

package logger

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// New builds the process-wide JSON logger. Local and dev environments log at
// debug; everything else stays at info. Every line carries the service name
// so aggregated streams stay attributable.
func New(appEnv string) *slog.Logger {
	level := slog.LevelInfo
	if appEnv == "local" || appEnv == "dev" {
		level = slog.LevelDebug
	}

	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(h).With("service", "payments-api")
}

type ctxKey struct{}

// With stores a logger in the context.
func With(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// From returns the context's logger, falling back to slog.Default().
func From(ctx context.Context) *slog.Logger {
	if v := ctx.Value(ctxKey{}); v != nil {
		if l, ok := v.(*slog.Logger); ok && l != nil {
			return l
		}
	}
	return slog.Default()
}

// ShutdownFlush flushes buffered log output on shutdown. The JSON handler
// writes through, so today this is a no-op.
func ShutdownFlush(_ context.Context, _ time.Duration) error { return nil }

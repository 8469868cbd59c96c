package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// New returns the console's structured JSON logger.
// local and dev environments log at debug level.
func New(appEnv string) *slog.Logger {
	return NewWriter(os.Stdout, appEnv)
}

// NewWriter is New with an explicit sink, used by the CLI to keep stdout for exports.
func NewWriter(w io.Writer, appEnv string) *slog.Logger {
	level := slog.LevelInfo
	if appEnv == "local" || appEnv == "dev" {
		level = slog.LevelDebug
	}

	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(h)
}

// Component tags l with the emitting component, falling back to slog.Default().
func Component(l *slog.Logger, name string) *slog.Logger {
	if l == nil {
		l = slog.Default()
	}
	return l.With("component", name)
}

type ctxKey struct{}

// With stores a logger in context.
func With(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// From gets a logger from context, falling back to slog.Default().
func From(ctx context.Context) *slog.Logger {
	if v := ctx.Value(ctxKey{}); v != nil {
		if l, ok := v.(*slog.Logger); ok && l != nil {
			return l
		}
	}
	return slog.Default()
}

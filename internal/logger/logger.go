// Package logger wires slog for all services: time, level and msg at the
// root of each record, everything else under a top-level `data` group.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

type Config struct {
	Level   string
	Format  string
	Service string
	Env     string
	Output  string
}

type ctxKey struct{}

var (
	levelVar      slog.LevelVar
	defaultLogger *slog.Logger
)

// Default returns the logger installed by Init, or slog's fallback before
// Init has run.
func Default() *slog.Logger {
	if defaultLogger != nil {
		return defaultLogger
	}
	return slog.Default()
}

// Init builds the process-wide logger and installs it as slog's default.
func Init(cfg Config) *slog.Logger {
	levelVar.Set(parseLevel(cfg.Level))

	w := resolveWriter(cfg.Output)
	opts := &slog.HandlerOptions{Level: &levelVar}

	var h slog.Handler
	if strings.EqualFold(strings.TrimSpace(cfg.Format), "text") {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}

	service := strings.TrimSpace(cfg.Service)
	if service == "" {
		service = filepath.Base(os.Args[0])
	}

	base := slog.New(h).WithGroup("data").With("service", service)
	if env := strings.TrimSpace(cfg.Env); env != "" {
		base = base.With("env", env)
	}

	defaultLogger = base
	slog.SetDefault(defaultLogger)
	return defaultLogger
}

// IntoContext attaches a request-scoped logger to ctx.
func IntoContext(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the logger attached to ctx, falling back to Default.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && l != nil {
			return l
		}
	}
	return Default()
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func resolveWriter(output string) io.Writer {
	switch strings.ToLower(strings.TrimSpace(output)) {
	case "", "stdout":
		return os.Stdout
	case "stderr":
		return os.Stderr
	default:
		f, err := os.OpenFile(output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return os.Stdout
		}
		return f
	}
}

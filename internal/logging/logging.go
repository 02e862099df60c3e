// Package logging builds the process slog.Logger and carries request-scoped
// loggers through contexts.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// Config holds logger configuration
type Config struct {
	Level        string `mapstructure:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Format       string `mapstructure:"format" validate:"omitempty,oneof=console json"`
	Output       string `mapstructure:"output"` // stdout, stderr, or file path
	EnableSource bool   `mapstructure:"source"`
	TimeFormat   string `mapstructure:"time_format"`
	NoColor      bool   `mapstructure:"no_color"`
}

// New creates a logger writing to cfg.Output. File outputs are opened for
// append; the returned close func releases them and is a no-op otherwise.
func New(cfg Config) (*slog.Logger, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Output {
	case "stdout", "":
		return NewWithWriter(cfg, os.Stdout), noop, nil
	case "stderr":
		return NewWithWriter(cfg, os.Stderr), noop, nil
	}

	f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, noop, fmt.Errorf("failed to open log file %s: %w", cfg.Output, err)
	}
	// Files never get color codes.
	cfg.NoColor = true
	return NewWithWriter(cfg, f), f.Close, nil
}

// NewWithWriter creates a logger writing to w.
func NewWithWriter(cfg Config, w io.Writer) *slog.Logger {
	level := ParseLevel(cfg.Level)

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:     level,
			AddSource: cfg.EnableSource,
		})
	default:
		timeFormat := cfg.TimeFormat
		if timeFormat == "" {
			timeFormat = time.TimeOnly
		}
		handler = tint.NewHandler(w, &tint.Options{
			Level:      level,
			AddSource:  cfg.EnableSource,
			TimeFormat: timeFormat,
			NoColor:    cfg.NoColor,
		})
	}
	return slog.New(handler)
}

// ParseLevel converts a level name to slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

type ctxKey struct{}

// WithLogger returns a copy of ctx carrying logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext returns the logger stored in ctx, or slog.Default().
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && logger != nil {
		return logger
	}
	return slog.Default()
}

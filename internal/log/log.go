// Package log builds the application's structured loggers.
//
// Loggers are injected via constructors, never pulled from globals, so
// components can attach context with logger.With(). Output goes to stderr
// to keep stdout clean for command output.
package log

import (
	"io"
	"log/slog"
	"os"
)

// Config defines logger options.
type Config struct {
	Level     slog.Level // minimum level, default Info
	JSON      bool       // JSON output instead of text
	AddSource bool       // include source file positions
}

// New creates a logger writing to stderr.
func New(cfg Config) *slog.Logger {
	return NewWithWriter(os.Stderr, cfg)
}

// NewWithWriter creates a logger writing to w. Tests can pass a buffer to
// inspect output.
func NewWithWriter(w io.Writer, cfg Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     cfg.Level,
		AddSource: cfg.AddSource,
	}
	if cfg.JSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Package log provides the logging infrastructure for the portfolio assistant.
//
// Loggers are injected through constructors rather than accessed as globals:
// every component receives a log.Logger and may narrow it with With().
//
//	logger := log.New(log.Config{Level: slog.LevelDebug})
//	docs := store.New(cfg, embedder, logger.With("component", "store"))
package log

import (
	"io"
	"log/slog"
	"os"
)

// Logger is a type alias for *slog.Logger so components depend on the
// standard library type directly and keep access to With().
type Logger = *slog.Logger

// Config defines logger configuration options.
type Config struct {
	// Level sets the minimum log level. Default: slog.LevelInfo
	Level slog.Level

	// JSON enables JSON format output. Default: false (text format)
	JSON bool

	// AddSource adds source file information to log entries.
	AddSource bool
}

// New creates a logger writing to os.Stderr.
func New(cfg Config) Logger {
	return NewWithWriter(os.Stderr, cfg)
}

// NewWithWriter creates a logger that writes to the given writer.
// Useful for tests that want to inspect log output.
func NewWithWriter(w io.Writer, cfg Config) Logger {
	opts := &slog.HandlerOptions{
		Level:     cfg.Level,
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler
	if cfg.JSON {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// NewNop creates a logger that discards all output. Tests only.
func NewNop() Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

var Log *slog.Logger

func init() {
	// Safe defaults for tests and tools, main calls Initialize from config
	Initialize("info", false)
}

// Initialize sets up the global logger with the specified level and format
func Initialize(level string, useJSON bool) {
	Log = New(os.Stdout, level, useJSON)
	slog.SetDefault(Log)
}

// New builds a logger writing to w. Records carry the service name and the
// source line.
func New(w io.Writer, level string, useJSON bool) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     parseLevel(level),
		AddSource: true,
	}

	var handler slog.Handler
	if useJSON {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler).With("service", "staffhub")
}

// With returns the global logger tagged with a component name.
func With(component string) *slog.Logger {
	return Log.With("component", component)
}

// parseLevel converts string log level to slog.Level, falling back to info
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

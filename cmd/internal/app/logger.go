package app

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger is the app-wide logger type (slog).
type Logger = *slog.Logger

// NewLogger creates a structured logger writing to stdout and installs it as the slog default.
// format "pretty" selects the human-oriented handler; anything else is JSON.
func NewLogger(level, format string) *slog.Logger {
	log := slog.New(newHandler(os.Stdout, level, format))
	slog.SetDefault(log)
	return log
}

func newHandler(w io.Writer, level, format string) slog.Handler {
	opts := &slog.HandlerOptions{
		Level:     parseLogLevel(level),
		AddSource: true,
	}
	if strings.EqualFold(strings.TrimSpace(format), "pretty") {
		return newPrettyHandler(w, opts, colorEnabled())
	}
	return slog.NewJSONHandler(w, opts)
}

func parseLogLevel(level string) slog.Level {
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

// colorEnabled honours the NO_COLOR convention and STL_LOG_COLOR=false.
func colorEnabled() bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(os.Getenv("STL_LOG_COLOR"))) {
	case "0", "false", "no", "off":
		return false
	}
	return true
}

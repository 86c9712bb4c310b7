package cli

import (
	"io"
	"log/slog"
	"strings"
)

// setupLogger builds the process logger. Logs go to w (stderr) so that
// command output on stdout stays machine-readable.
func setupLogger(level, format string, w io.Writer) *slog.Logger {
	var handler slog.Handler

	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl == slog.LevelDebug,
	}

	switch strings.ToLower(format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler).With("app", "papersearch")
}

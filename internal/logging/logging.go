// Package logging owns the process-wide logger. Diagnostics go to stderr so
// query output on stdout stays clean; the level comes from LOG_LEVEL and
// defaults to warn.
package logging

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	logger *slog.Logger
	once   sync.Once
)

// Logger returns the singleton slog logger.
func Logger() *slog.Logger {
	once.Do(func() {
		level := slog.LevelWarn
		switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
		case "debug":
			level = slog.LevelDebug
		case "info":
			level = slog.LevelInfo
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
		handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
		logger = slog.New(handler)
	})
	return logger
}

// Corrupt reports a violated durable-store invariant: a wrongly-typed column,
// a dangling reference, a malformed row. These are logged distinctively so
// they stand out from ordinary skipped-node noise, but they never crash the
// process on their own.
func Corrupt(msg string, args ...any) {
	Logger().Error(msg, append([]any{slog.Bool("corrupt", true)}, args...)...)
}

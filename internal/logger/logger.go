package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	slogmulti "github.com/samber/slog-multi"
)

var levelVar = new(slog.LevelVar)

var L = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: levelVar}))

// SetLevel configures the global log level (debug, info, warn, error).
func SetLevel(lvl string) {
	levelVar.Set(ParseLevel(lvl))
}

// ParseLevel maps a level name to a slog.Level, defaulting to info.
func ParseLevel(lvl string) slog.Level {
	switch strings.ToLower(lvl) {
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

// Setup replaces L with a logger writing text to stderr and JSON to logFile.
// With quiet set, stderr is skipped: the terminal UI owns the screen.
// The returned func closes the log file.
func Setup(logFile string, quiet bool) func() error {
	stderrHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: levelVar})

	if logFile == "" {
		if quiet {
			L = slog.New(slog.NewJSONHandler(io.Discard, nil))
		} else {
			L = slog.New(stderrHandler)
		}
		return func() error { return nil }
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		L = slog.New(stderrHandler)
		L.Error("failed to open log file, using stderr only", "error", err, "file", logFile)
		return func() error { return nil }
	}

	fileHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: levelVar})
	if quiet {
		L = slog.New(fileHandler)
	} else {
		L = slog.New(slogmulti.Fanout(stderrHandler, fileHandler))
	}
	return file.Close
}

// SetupWithWriters is Setup for tests: text to stderr, JSON to file.
func SetupWithWriters(stderr, file io.Writer) {
	L = slog.New(slogmulti.Fanout(
		slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: levelVar}),
		slog.NewJSONHandler(file, &slog.HandlerOptions{Level: levelVar}),
	))
}

// Package config loads wikidesk settings and sets up logging.
package config

import (
	"io"
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"
)

// SetupLogger creates the CLI logger: text on stderr at level, JSON at debug
// level in logFile so every request can be traced after the fact.
// Returns the logger and a cleanup function that closes the file.
func SetupLogger(logFile string, level slog.Level) (*slog.Logger, func() error) {
	stderrHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		logger := slog.New(stderrHandler)
		logger.Debug("log file unavailable, using stderr only", "error", err, "file", logFile)
		return logger, func() error { return nil }
	}

	return NewLogger(os.Stderr, file, level), file.Close
}

// NewLogger fans out to a text handler on console (at level) and a JSON
// handler on file (always debug).
func NewLogger(console, file io.Writer, level slog.Level) *slog.Logger {
	consoleHandler := slog.NewTextHandler(console, &slog.HandlerOptions{Level: level})
	fileHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(slogmulti.Fanout(consoleHandler, fileHandler))
}

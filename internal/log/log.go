// Package log provides structured logging for go-drowsy.
// It wraps slog: text output while developing, JSON when GO_ENV=production
// or LOG_FORMAT=json.
package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	logger *slog.Logger
	level  = new(slog.LevelVar)
	once   sync.Once
)

// ParseLevel maps "debug", "info", "warn" and "error" to a slog level.
// Anything else is info.
func ParseLevel(level string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// Init initializes the global logger and sets its level. The handler is
// built once; later calls only change the level, so logging before Init
// does not pin the default.
func Init(lvl string) {
	level.Set(ParseLevel(lvl))
	setup()
}

func setup() {
	once.Do(func() {
		logger = newLogger(os.Stdout, level, jsonOutput())
		slog.SetDefault(logger)
	})
}

func jsonOutput() bool {
	return os.Getenv("GO_ENV") == "production" || os.Getenv("LOG_FORMAT") == "json"
}

func newLogger(w io.Writer, lvl slog.Leveler, json bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: lvl}
	if json {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// L returns the global logger instance.
func L() *slog.Logger {
	setup()
	return logger
}

// Debug logs at debug level.
func Debug(msg string, args ...any) {
	L().Debug(msg, args...)
}

// Info logs at info level.
func Info(msg string, args ...any) {
	L().Info(msg, args...)
}

// Warn logs at warn level.
func Warn(msg string, args ...any) {
	L().Warn(msg, args...)
}

// Error logs at error level.
func Error(msg string, args ...any) {
	L().Error(msg, args...)
}

// With returns a logger with the given attributes.
func With(args ...any) *slog.Logger {
	return L().With(args...)
}

// Package logging configures the process-wide slog loggers: structured
// JSON on stdout, human-readable text on stderr, plus rotating per-service
// file loggers.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/FMassin/scdlpicker/internal/conf"
	"gopkg.in/natefinch/lumberjack.v2"
)

var structuredLogger *slog.Logger
var humanReadableLogger *slog.Logger

// Init initializes the default loggers. Debug mode lowers the text
// handler threshold to debug.
func Init(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	structuredLogger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	humanReadableLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(structuredLogger)
}

// SetOutput redirects both loggers, used by tests to capture output.
func SetOutput(structured, humanReadable io.Writer) {
	structuredLogger = slog.New(slog.NewJSONHandler(structured, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	humanReadableLogger = slog.New(slog.NewTextHandler(humanReadable, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(structuredLogger)
}

// Structured returns the JSON logger, or nil before Init.
func Structured() *slog.Logger { return structuredLogger }

// HumanReadable returns the text logger, or nil before Init.
func HumanReadable() *slog.Logger { return humanReadableLogger }

// ForService returns the structured logger tagged with a service name.
func ForService(serviceName string) *slog.Logger {
	if structuredLogger == nil {
		Init(false)
	}
	return structuredLogger.With("service", serviceName)
}

// NewFileLogger creates a JSON logger writing to filePath with lumberjack
// rotation per the log settings. Returns the logger and a close function.
func NewFileLogger(filePath, serviceName string, settings *conf.LogSettings) (*slog.Logger, func() error, error) {
	logDir := filepath.Dir(filePath)
	if logDir != "." {
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory %s: %w", logDir, err)
		}
	}

	logWriter := &lumberjack.Logger{
		Filename:   filePath,
		MaxSize:    settings.MaxSizeMB,
		MaxBackups: settings.MaxBackups,
		MaxAge:     settings.MaxAgeDays,
	}

	handler := slog.NewJSONHandler(logWriter, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})
	logger := slog.New(handler).With("service", serviceName)

	return logger, logWriter.Close, nil
}

package logging

import (
	"log/slog"
	"os"
	"strings"
)

type LoggingService struct {
	Logger *slog.Logger
}

var DefaultLoggingService *LoggingService

// InitLogger initializes the global logger instance
func InitLogger(logDir string) {
	setGlobal(SetupLogger(logDir))
}

// InitLoggerWithLevel initializes the global logger with a minimum level
// and a log retention window in weeks
func InitLoggerWithLevel(logDir string, retentionWeeks int, level slog.Level) {
	setGlobal(SetupLoggerWithLevel(logDir, retentionWeeks, level))
}

// InitLoggerWithOptions initializes the global logger with every file knob
// exposed: directory, retention, per-file size cap and minimum level
func InitLoggerWithOptions(logDir string, retentionWeeks int, maxFileSize int64, level slog.Level) {
	setGlobal(SetupLoggerWithOptions(logDir, retentionWeeks, maxFileSize, level))
}

func setGlobal(logger *slog.Logger) {
	DefaultLoggingService = &LoggingService{Logger: logger}
	slog.SetDefault(logger)
}

// ParseLevel converts a configured level name to its slog level. Unknown
// names fall back to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
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

// fallbackLogger covers calls made before InitLogger, such as config failures
// during startup. Those go to stderr so they are never silently dropped.
func fallbackLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

func initialized() bool {
	return DefaultLoggingService != nil && DefaultLoggingService.Logger != nil
}

// Package-level functions for direct access

func Info(msg string, args ...any) {
	if !initialized() {
		fallbackLogger(slog.LevelInfo).Info(msg, args...)
		return
	}
	DefaultLoggingService.Logger.Info(msg, args...)
}

func Error(msg string, args ...any) {
	if !initialized() {
		fallbackLogger(slog.LevelError).Error(msg, args...)
		return
	}
	DefaultLoggingService.Logger.Error(msg, args...)
}

func Warn(msg string, args ...any) {
	if !initialized() {
		fallbackLogger(slog.LevelWarn).Warn(msg, args...)
		return
	}
	DefaultLoggingService.Logger.Warn(msg, args...)
}

func Debug(msg string, args ...any) {
	if !initialized() {
		fallbackLogger(slog.LevelDebug).Debug(msg, args...)
		return
	}
	DefaultLoggingService.Logger.Debug(msg, args...)
}

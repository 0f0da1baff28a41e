// Package logger holds the process-wide structured logger. Output goes to a
// rotating file under the config directory, mirrored to stderr in debug mode.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/mesh-intelligence/daybook/internal/paths"
)

// Logger is the global logger. Nil until Init; the helpers below are no-ops
// while it is nil.
var Logger *log.Logger

// FileName is the log file created inside the logs directory.
const FileName = "daybook.log"

// Config holds logger configuration.
type Config struct {
	Debug     bool
	ConfigDir string
	Level     string // "debug", "info", "warn" or "error"; empty means warn
}

// Init initializes the global logger.
func Init(cfg Config) error {
	logDir := paths.LogDir(cfg.ConfigDir)
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return fmt.Errorf("creating log directory: %w", err)
	}

	fileWriter := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, FileName),
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}

	level := log.WarnLevel
	if cfg.Level != "" {
		parsed, err := log.ParseLevel(cfg.Level)
		if err != nil {
			return fmt.Errorf("log level %q: %w", cfg.Level, err)
		}
		level = parsed
	}
	if cfg.Debug {
		level = log.DebugLevel
	}

	var writer io.Writer = fileWriter
	if cfg.Debug {
		writer = io.MultiWriter(os.Stderr, fileWriter)
	}

	Logger = log.NewWithOptions(writer, log.Options{
		ReportCaller:    cfg.Debug,
		ReportTimestamp: true,
		Level:           level,
		Prefix:          "daybook",
	})
	return nil
}

// Discard installs a logger that drops everything. Used by tests and by
// commands that run before the config directory is known.
func Discard() {
	Logger = log.New(io.Discard)
}

// Debug logs a debug message.
func Debug(msg string, keyvals ...interface{}) {
	if Logger != nil {
		Logger.Debug(msg, keyvals...)
	}
}

// Info logs an info message.
func Info(msg string, keyvals ...interface{}) {
	if Logger != nil {
		Logger.Info(msg, keyvals...)
	}
}

// Warn logs a warning message.
func Warn(msg string, keyvals ...interface{}) {
	if Logger != nil {
		Logger.Warn(msg, keyvals...)
	}
}

// Error logs an error message.
func Error(msg string, keyvals ...interface{}) {
	if Logger != nil {
		Logger.Error(msg, keyvals...)
	}
}

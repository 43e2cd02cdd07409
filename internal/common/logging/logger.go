package logging

import (
	"fmt"
	"os"
	"sync"
	"time"
)

// NewDefaultLogger creates an INFO level zap logger writing to stderr.
func NewDefaultLogger() Logger {
	logger, err := NewZapLogger(LogConfig{Level: InfoLevel, Output: os.Stderr})
	if err != nil {
		panic(fmt.Sprintf("failed to initialize default zap logger: %v", err))
	}
	return logger
}

// newGlobalLogger builds the logger installed by InitGlobalLogger.
var newGlobalLogger = NewZapLogger

// logFileMu guards logFile, the file behind the current global logger.
var (
	logFileMu sync.Mutex
	logFile   *os.File
)

// InitGlobalLogger replaces the global logger with one at the given level.
// An empty path keeps output on stderr so stdout stays free for command
// results. A log file opened by a previous call is closed once the new
// logger is installed.
func InitGlobalLogger(level, path string) error {
	config := LogConfig{
		Level:  ParseLevel(level),
		Output: os.Stderr,
	}

	var file *os.File
	if path != "" {
		var err error
		file, err = os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file %s: %w", path, err)
		}
		config.Output = file
	}

	logger, err := newGlobalLogger(config)
	if err != nil {
		if file != nil {
			_ = file.Close()
		}
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	SetGlobalLogger(logger)

	logFileMu.Lock()
	previous := logFile
	logFile = file
	logFileMu.Unlock()
	if previous != nil {
		_ = previous.Close()
	}

	logger.Debug("Logger initialized",
		String("level", config.Level.String()),
		String("log_file", path),
	)
	return nil
}

// MustSync flushes any buffered log entries for zap loggers
func MustSync() {
	if zapLogger, ok := GetGlobalLogger().(*ZapAdapter); ok {
		_ = zapLogger.Sync()
	}
}

// String creates a string field
func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

// Int creates an int field
func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

// Bool creates a bool field
func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

// Duration creates a duration field
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value}
}

// Err creates an error field with key "error"
func Err(err error) Field {
	return Field{Key: "error", Value: err}
}

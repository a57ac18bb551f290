package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogCategory represents different log categories
type LogCategory string

const (
	CategoryDownload LogCategory = "download" // Raw downloader output (plain text)
	CategoryEvents   LogCategory = "events"   // Progress events (JSON)
	CategoryScan     LogCategory = "scan"     // Scanner passes (JSON)
	CategoryError    LogCategory = "error"    // Application errors (JSON)
)

// Categories lists every category the log API can serve
var Categories = []LogCategory{CategoryDownload, CategoryEvents, CategoryScan, CategoryError}

// IsValidCategory reports whether c is a known category
func IsValidCategory(c LogCategory) bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// MultiLogger provides categorized logging with separate output files.
// Note: raw download output (stdout/stderr from N_m3u8DL-RE/ffmpeg) is
// appended by the downloader itself, not through this logger.
type MultiLogger struct {
	loggers     map[LogCategory]*zap.Logger
	files       map[LogCategory]*os.File
	general     *zap.Logger
	config      MultiLoggerConfig
	mu          sync.RWMutex
	currentDate string // Track current date for log rotation
}

// MultiLoggerConfig contains configuration for multi-output logging
type MultiLoggerConfig struct {
	Level   string // debug, info, warn, error
	LogsDir string // Directory for log files
}

// NewMultiLogger creates a new multi-output logger. general receives a copy
// of errors and is returned by General; it may be nil.
func NewMultiLogger(config MultiLoggerConfig, general *zap.Logger) (*MultiLogger, error) {
	if config.LogsDir == "" {
		return nil, fmt.Errorf("logs_dir must be specified")
	}

	// Ensure logs directory exists
	if err := os.MkdirAll(config.LogsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create logs directory: %w", err)
	}

	if general == nil {
		general = zap.NewNop()
	}

	ml := &MultiLogger{
		general: general,
		config:  config,
	}
	if err := ml.open(time.Now().Format("20060102")); err != nil {
		return nil, err
	}
	return ml, nil
}

// open creates the structured loggers for a date, closing the previous files
func (ml *MultiLogger) open(date string) error {
	level, err := zapcore.ParseLevel(ml.config.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	levels := map[LogCategory]zapcore.Level{
		CategoryEvents: level,
		CategoryScan:   level,
		CategoryError:  zapcore.ErrorLevel,
	}

	loggers := make(map[LogCategory]*zap.Logger, len(levels))
	files := make(map[LogCategory]*os.File, len(levels))
	for category, lvl := range levels {
		logger, file, err := ml.createStructuredLogger(category, date, lvl)
		if err != nil {
			for _, f := range files {
				f.Close()
			}
			return fmt.Errorf("failed to create %s logger: %w", category, err)
		}
		loggers[category] = logger
		files[category] = file
	}

	for category, logger := range ml.loggers {
		logger.Sync()
		ml.files[category].Close()
	}
	ml.loggers = loggers
	ml.files = files
	ml.currentDate = date
	return nil
}

// createStructuredLogger creates a JSON-formatted logger for a category
func (ml *MultiLogger) createStructuredLogger(category LogCategory, date string, level zapcore.Level) (*zap.Logger, *os.File, error) {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.MessageKey = "message"
	encoderConfig.LevelKey = "level"
	encoderConfig.CallerKey = "" // Don't include caller for cleaner logs

	encoder := zapcore.NewJSONEncoder(encoderConfig)

	logPath := filepath.Join(ml.config.LogsDir, fmt.Sprintf("%s-%s.log", category, date))
	file, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, err
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(file), level)
	return zap.New(core), file, nil
}

// rotate reopens the category files when the day changed
func (ml *MultiLogger) rotate() {
	today := time.Now().Format("20060102")

	ml.mu.RLock()
	current := ml.currentDate
	ml.mu.RUnlock()
	if current == today {
		return
	}

	ml.mu.Lock()
	defer ml.mu.Unlock()
	if ml.currentDate == today {
		return
	}
	if err := ml.open(today); err != nil {
		ml.general.Error("Failed to rotate logs", zap.Error(err))
	}
}

// GetLogsDir returns the logs directory path
func (ml *MultiLogger) GetLogsDir() string {
	return ml.config.LogsDir
}

// GetLogger returns the structured logger for a specific category
func (ml *MultiLogger) GetLogger(category LogCategory) *zap.Logger {
	ml.rotate()

	ml.mu.RLock()
	defer ml.mu.RUnlock()

	if logger, ok := ml.loggers[category]; ok {
		return logger
	}

	// Return error logger as fallback
	if logger, ok := ml.loggers[CategoryError]; ok {
		return logger
	}
	return zap.NewNop()
}

// Events returns the progress event logger
func (ml *MultiLogger) Events() *zap.Logger {
	return ml.GetLogger(CategoryEvents)
}

// Scan returns the scanner logger
func (ml *MultiLogger) Scan() *zap.Logger {
	return ml.GetLogger(CategoryScan)
}

// Error returns the error logger
func (ml *MultiLogger) Error() *zap.Logger {
	return ml.GetLogger(CategoryError)
}

// General returns the console logger the multi-logger was built with
func (ml *MultiLogger) General() *zap.Logger {
	return ml.general
}

// LogAppError logs an application-level error to the error file and the
// general logger
func (ml *MultiLogger) LogAppError(msg string, fields ...zap.Field) {
	ml.Error().Error(msg, fields...)
	ml.general.Error(msg, fields...)
}

// LogScanEvent logs a scanner lifecycle event with structured data
func (ml *MultiLogger) LogScanEvent(event string, fields ...zap.Field) {
	ml.Scan().Info(event, fields...)
}

// LogProgressEvent logs a download progress event with structured data
func (ml *MultiLogger) LogProgressEvent(event string, fields ...zap.Field) {
	ml.Events().Info(event, fields...)
}

// Sync flushes all loggers
func (ml *MultiLogger) Sync() error {
	ml.mu.RLock()
	defer ml.mu.RUnlock()

	var lastErr error

	for _, logger := range ml.loggers {
		if err := logger.Sync(); err != nil {
			lastErr = err
		}
	}

	return lastErr
}

// Close flushes and closes all category files
func (ml *MultiLogger) Close() error {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	var lastErr error

	for category, logger := range ml.loggers {
		if err := logger.Sync(); err != nil {
			lastErr = err
		}
		if err := ml.files[category].Close(); err != nil {
			lastErr = err
		}
	}
	ml.loggers = map[LogCategory]*zap.Logger{}
	ml.files = map[LogCategory]*os.File{}

	return lastErr
}

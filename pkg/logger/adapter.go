package logger

import (
	"go.uber.org/zap"
)

// LoggerAdapter provides a unified interface for both single and multi-logger
type LoggerAdapter struct {
	multiLogger  *MultiLogger
	singleLogger *zap.Logger
	useMulti     bool
}

// NewLoggerAdapter creates a new logger adapter
func NewLoggerAdapter(multiLogger *MultiLogger) *LoggerAdapter {
	return &LoggerAdapter{
		multiLogger: multiLogger,
		useMulti:    true,
	}
}

// NewSingleLoggerAdapter routes every category to one logger. Used by the
// CLI and by tests.
func NewSingleLoggerAdapter(logger *zap.Logger) *LoggerAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoggerAdapter{
		singleLogger: logger,
		useMulti:     false,
	}
}

// Events returns the progress event logger
func (la *LoggerAdapter) Events() *zap.Logger {
	if la.useMulti {
		return la.multiLogger.Events()
	}
	return la.singleLogger
}

// Scan returns the scanner logger
func (la *LoggerAdapter) Scan() *zap.Logger {
	if la.useMulti {
		return la.multiLogger.Scan()
	}
	return la.singleLogger
}

// Error returns the error logger
func (la *LoggerAdapter) Error() *zap.Logger {
	if la.useMulti {
		return la.multiLogger.Error()
	}
	return la.singleLogger
}

// General returns the general logger
func (la *LoggerAdapter) General() *zap.Logger {
	if la.useMulti {
		return la.multiLogger.General()
	}
	return la.singleLogger
}

// LogError logs an error to the error category and the general logger
func (la *LoggerAdapter) LogError(msg string, fields ...zap.Field) {
	if la.useMulti {
		la.multiLogger.LogAppError(msg, fields...)
	} else {
		la.singleLogger.Error(msg, fields...)
	}
}

// LogsDir returns where category files live, empty for a single logger
func (la *LoggerAdapter) LogsDir() string {
	if la.useMulti {
		return la.multiLogger.GetLogsDir()
	}
	return ""
}

// Sync flushes all loggers
func (la *LoggerAdapter) Sync() error {
	if la.useMulti {
		la.multiLogger.General().Sync()
		return la.multiLogger.Sync()
	}
	return la.singleLogger.Sync()
}

// Package log provides the leveled diagnostic sink used across ipcap.
package log

import "sync"

// Logger is the diagnostic interface consumed by the reader and filter.
// Trace is the "verbose" level: per-block details that are too chatty
// even for debug runs.
type Logger interface {
	Trace(args ...interface{})
	Tracef(format string, args ...interface{})

	Debug(args ...interface{})
	Debugf(format string, args ...interface{})

	Info(args ...interface{})
	Infof(format string, args ...interface{})

	Warn(args ...interface{})
	Warnf(format string, args ...interface{})

	Error(args ...interface{})
	Errorf(format string, args ...interface{})

	WithField(field string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
	WithError(err error) Logger

	IsTraceEnabled() bool
	IsDebugEnabled() bool
}

var (
	once   sync.Once
	logger Logger = newLogrusLogger(defaultConfig())
)

// GetLogger returns the process-wide logger.
func GetLogger() Logger {
	return logger
}

// Init configures the global logger. Only the first call takes effect.
func Init(cfg Config) {
	once.Do(func() {
		logger = newLogrusLogger(cfg)
	})
}

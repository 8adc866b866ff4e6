package log

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls the global logger output.
type Config struct {
	Level string     `mapstructure:"level" yaml:"level"`
	File  FileOutput `mapstructure:"file" yaml:"file"`
}

// FileOutput enables an additional rotating log file next to stderr.
type FileOutput struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
	Path       string `mapstructure:"path" yaml:"path"`
	MaxSizeMB  int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age" yaml:"max_age"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

func defaultConfig() Config {
	return Config{Level: "info"}
}

type logrusLogger struct {
	ent *logrus.Entry
}

func newLogrusLogger(cfg Config) *logrusLogger {
	l := logrus.New()
	l.SetLevel(parseLevel(cfg.Level))
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})

	out := io.Writer(os.Stderr)
	if cfg.File.Enabled && cfg.File.Path != "" {
		out = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   cfg.File.Path,
			MaxSize:    cfg.File.MaxSizeMB,  // megabytes
			MaxBackups: cfg.File.MaxBackups, // number of backups
			MaxAge:     cfg.File.MaxAgeDays, // days
			Compress:   cfg.File.Compress,
		})
	}
	l.SetOutput(out)

	return &logrusLogger{ent: logrus.NewEntry(l)}
}

func parseLevel(s string) logrus.Level {
	switch strings.ToLower(s) {
	case "trace", "verbose":
		return logrus.TraceLevel
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

func (l *logrusLogger) Trace(args ...interface{}) { l.ent.Trace(args...) }
func (l *logrusLogger) Tracef(format string, args ...interface{}) {
	l.ent.Tracef(format, args...)
}

func (l *logrusLogger) Debug(args ...interface{}) { l.ent.Debug(args...) }
func (l *logrusLogger) Debugf(format string, args ...interface{}) {
	l.ent.Debugf(format, args...)
}

func (l *logrusLogger) Info(args ...interface{}) { l.ent.Info(args...) }
func (l *logrusLogger) Infof(format string, args ...interface{}) {
	l.ent.Infof(format, args...)
}

func (l *logrusLogger) Warn(args ...interface{}) { l.ent.Warn(args...) }
func (l *logrusLogger) Warnf(format string, args ...interface{}) {
	l.ent.Warnf(format, args...)
}

func (l *logrusLogger) Error(args ...interface{}) { l.ent.Error(args...) }
func (l *logrusLogger) Errorf(format string, args ...interface{}) {
	l.ent.Errorf(format, args...)
}

func (l *logrusLogger) WithField(field string, value interface{}) Logger {
	return &logrusLogger{ent: l.ent.WithField(field, value)}
}

func (l *logrusLogger) WithFields(fields map[string]interface{}) Logger {
	return &logrusLogger{ent: l.ent.WithFields(logrus.Fields(fields))}
}

func (l *logrusLogger) WithError(err error) Logger {
	return &logrusLogger{ent: l.ent.WithError(err)}
}

func (l *logrusLogger) IsTraceEnabled() bool {
	return l.ent.Logger.IsLevelEnabled(logrus.TraceLevel)
}

func (l *logrusLogger) IsDebugEnabled() bool {
	return l.ent.Logger.IsLevelEnabled(logrus.DebugLevel)
}

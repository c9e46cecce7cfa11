package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// LogrusAdapter is the Logger backed by a logrus entry. Derived loggers share
// the same underlying logrus.Logger.
type LogrusAdapter struct {
	entry *logrus.Entry
}

// NewLogrusAdapter creates a logger writing to stderr, so that ledgers
// written to stdout stay clean. format is "json" or "text"; an unknown level
// falls back to info.
func NewLogrusAdapter(level, format string) Logger {
	return NewLogrusAdapterTo(os.Stderr, level, format)
}

// NewLogrusAdapterTo is NewLogrusAdapter with an explicit destination.
func NewLogrusAdapterTo(out io.Writer, level, format string) Logger {
	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetFormatter(formatterFor(format))

	lvl, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		logger.Warnf("Invalid log level '%s', using 'info'", level)
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)

	return &LogrusAdapter{entry: logrus.NewEntry(logger)}
}

func formatterFor(format string) logrus.Formatter {
	if strings.EqualFold(format, "json") {
		return &logrus.JSONFormatter{}
	}
	return &logrus.TextFormatter{FullTimestamp: true}
}

func newDiscardAdapter() *LogrusAdapter {
	l := logrus.New()
	l.SetOutput(io.Discard)
	l.SetLevel(logrus.PanicLevel)
	return &LogrusAdapter{entry: logrus.NewEntry(l)}
}

func (l *LogrusAdapter) Debug(msg string, fields ...Field) { l.log(logrus.DebugLevel, msg, fields) }
func (l *LogrusAdapter) Info(msg string, fields ...Field)  { l.log(logrus.InfoLevel, msg, fields) }
func (l *LogrusAdapter) Warn(msg string, fields ...Field)  { l.log(logrus.WarnLevel, msg, fields) }
func (l *LogrusAdapter) Error(msg string, fields ...Field) { l.log(logrus.ErrorLevel, msg, fields) }

func (l *LogrusAdapter) log(level logrus.Level, msg string, fields []Field) {
	if !l.entry.Logger.IsLevelEnabled(level) {
		return
	}
	entry := l.entry
	if len(fields) > 0 {
		entry = entry.WithFields(toLogrusFields(fields))
	}
	entry.Log(level, msg)
}

// WithError returns a new logger with an error field attached
func (l *LogrusAdapter) WithError(err error) Logger {
	return &LogrusAdapter{entry: l.entry.WithError(err)}
}

// WithField returns a new logger with a single field attached
func (l *LogrusAdapter) WithField(key string, value interface{}) Logger {
	return &LogrusAdapter{entry: l.entry.WithField(key, value)}
}

// WithFields returns a new logger with multiple fields attached
func (l *LogrusAdapter) WithFields(fields ...Field) Logger {
	return &LogrusAdapter{entry: l.entry.WithFields(toLogrusFields(fields))}
}

func toLogrusFields(fields []Field) logrus.Fields {
	out := make(logrus.Fields, len(fields))
	for _, f := range fields {
		out[f.Key] = f.Value
	}
	return out
}

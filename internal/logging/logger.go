// Package logging provides the structured logging abstraction used by every
// pipeline stage, the CLI and the HTTP server. Components receive a Logger
// through their constructor and never reach for a global logger.
package logging

// Logger defines the interface for structured logging throughout the application.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	// WithError returns a new logger with an error field attached
	WithError(err error) Logger

	// WithField returns a new logger with a single field attached
	WithField(key string, value interface{}) Logger

	// WithFields returns a new logger with multiple fields attached
	WithFields(fields ...Field) Logger
}

// Field represents a key-value pair for structured logging.
type Field struct {
	Key   string
	Value interface{}
}

// F is a shorthand constructor for Field.
func F(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// Nop returns a Logger that discards everything.
func Nop() Logger {
	return newDiscardAdapter()
}

// For scopes logger to a pipeline component. A nil logger yields Nop.
func For(logger Logger, component string) Logger {
	if logger == nil {
		logger = Nop()
	}
	return logger.WithField(FieldComponent, component)
}

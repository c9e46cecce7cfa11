// Package parsererror defines the error taxonomy of the statement pipeline.
// Loader failures are fatal and abort processing; everything else is recorded
// against the ledger and processing continues.
package parsererror

import (
	"errors"
	"fmt"
)

// Sentinel errors, matched with errors.Is.
var (
	ErrUnsupportedFormat     = errors.New("unsupported format")
	ErrCorruptFile           = errors.New("corrupt file")
	ErrResourceLimitExceeded = errors.New("resource limit exceeded")
	ErrCancelled             = errors.New("processing cancelled")
	ErrNoTable               = errors.New("no transaction table found")
)

// ParseError represents a field that could not be parsed from a row.
type ParseError struct {
	Parser string
	Field  string
	Value  string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: failed to parse %s='%s': %v",
		e.Parser, e.Field, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// UnsupportedFormatError is returned when the declared or sniffed format has no loader.
type UnsupportedFormatError struct {
	Declared string
}

func (e *UnsupportedFormatError) Error() string {
	if e.Declared == "" {
		return "unsupported format: no format declared"
	}
	return fmt.Sprintf("unsupported format: %s", e.Declared)
}

func (e *UnsupportedFormatError) Unwrap() error {
	return ErrUnsupportedFormat
}

// CorruptFileError is returned when the bytes cannot be decoded as the declared format.
type CorruptFileError struct {
	Format string
	Reason string
	Err    error
}

func (e *CorruptFileError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("corrupt %s file: %s: %v", e.Format, e.Reason, e.Err)
	}
	return fmt.Sprintf("corrupt %s file: %s", e.Format, e.Reason)
}

// Unwrap allows matching both ErrCorruptFile and the underlying cause.
func (e *CorruptFileError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrCorruptFile, e.Err}
	}
	return []error{ErrCorruptFile}
}

// ResourceLimitError is returned when a document exceeds a configured bound.
type ResourceLimitError struct {
	Resource string
	Limit    int64
	Actual   int64
}

func (e *ResourceLimitError) Error() string {
	if e.Actual > 0 {
		return fmt.Sprintf("resource limit exceeded: %s %d > %d", e.Resource, e.Actual, e.Limit)
	}
	return fmt.Sprintf("resource limit exceeded: %s (limit %d)", e.Resource, e.Limit)
}

func (e *ResourceLimitError) Unwrap() error {
	return ErrResourceLimitExceeded
}

// ValidationError represents an invalid layout template definition.
type ValidationError struct {
	FilePath string
	Reason   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.FilePath, e.Reason)
}

// DataExtractionError represents a document whose format is valid but from
// which no transaction table could be extracted.
type DataExtractionError struct {
	Stage  string
	Reason string
}

func (e *DataExtractionError) Error() string {
	return fmt.Sprintf("data extraction failed during %s: %s", e.Stage, e.Reason)
}

func (e *DataExtractionError) Unwrap() error {
	return ErrNoTable
}

// IsLoaderError reports whether err belongs to the fatal loader class.
func IsLoaderError(err error) bool {
	return errors.Is(err, ErrUnsupportedFormat) ||
		errors.Is(err, ErrCorruptFile) ||
		errors.Is(err, ErrResourceLimitExceeded)
}

// Kind returns a short label for metrics and API responses.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnsupportedFormat):
		return "unsupported_format"
	case errors.Is(err, ErrCorruptFile):
		return "corrupt_file"
	case errors.Is(err, ErrResourceLimitExceeded):
		return "resource_limit_exceeded"
	case errors.Is(err, ErrCancelled):
		return "cancelled"
	case errors.Is(err, ErrNoTable):
		return "no_table"
	default:
		return "internal"
	}
}

// Package loader turns uploaded statement bytes into an immutable
// models.Document. Loader failures are the only fatal errors of the pipeline.
package loader

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"fjacquet/statement-ledger/internal/logging"
	"fjacquet/statement-ledger/internal/models"
	"fjacquet/statement-ledger/internal/parsererror"

	"golang.org/x/net/html/charset"
)

// Options bounds the work done for one document.
type Options struct {
	MaxBytes int64
	MaxPages int
}

// DefaultOptions returns the limits used when none are configured.
func DefaultOptions() Options {
	return Options{MaxBytes: 20 * 1024 * 1024, MaxPages: 200}
}

// Loader decodes PDF, CSV, plain text and camt.053 XML statements.
type Loader struct {
	opts   Options
	logger logging.Logger
}

// New creates a Loader. A nil logger discards output.
func New(opts Options, logger logging.Logger) *Loader {
	return &Loader{opts: opts, logger: logging.For(logger, "loader")}
}

// Load decodes data according to declaredMIME, sniffing the format when the
// declaration is empty. It fails with UnsupportedFormatError, CorruptFileError
// or ResourceLimitError, or with the context error when ctx ends first.
func (l *Loader) Load(ctx context.Context, data []byte, declaredMIME string) (*models.Document, error) {
	if len(data) == 0 {
		return nil, &parsererror.CorruptFileError{Format: formatLabel(declaredMIME), Reason: "empty input"}
	}
	if l.opts.MaxBytes > 0 && int64(len(data)) > l.opts.MaxBytes {
		return nil, &parsererror.ResourceLimitError{Resource: "bytes", Limit: l.opts.MaxBytes, Actual: int64(len(data))}
	}

	format, label, err := resolveFormat(data, declaredMIME)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}

	var pages []models.Page
	switch format {
	case models.FormatPDF:
		pages, err = l.loadPDF(ctx, data)
	case models.FormatCSV:
		pages, err = l.loadCSV(ctx, data, label)
	case models.FormatText:
		pages, err = l.loadText(ctx, data, label)
	case models.FormatXML:
		pages, err = l.loadXML(ctx, data)
	default:
		err = &parsererror.UnsupportedFormatError{Declared: declaredMIME}
	}
	if err != nil {
		return nil, err
	}

	if l.opts.MaxPages > 0 && len(pages) > l.opts.MaxPages {
		return nil, &parsererror.ResourceLimitError{Resource: "pages", Limit: int64(l.opts.MaxPages), Actual: int64(len(pages))}
	}

	doc := models.NewDocument(data, format, pages)
	l.logger.Debug("Loaded document",
		logging.F(logging.FieldFormat, string(format)),
		logging.F(logging.FieldBytes, len(data)),
		logging.F(logging.FieldCount, doc.PageCount()))
	return doc, nil
}

func (l *Loader) checkPages(n int) error {
	if l.opts.MaxPages > 0 && n > l.opts.MaxPages {
		return &parsererror.ResourceLimitError{Resource: "pages", Limit: int64(l.opts.MaxPages), Actual: int64(n)}
	}
	return nil
}

func formatLabel(declared string) string {
	if f, _, ok := models.ParseFormat(declared); ok {
		return string(f)
	}
	if declared == "" {
		return "unknown"
	}
	return declared
}

// resolveFormat returns the format and the charset label to decode with.
func resolveFormat(data []byte, declared string) (models.Format, string, error) {
	trimmed := strings.TrimSpace(declared)
	if trimmed == "" || strings.HasPrefix(strings.ToLower(trimmed), "application/octet-stream") {
		format, err := Sniff(data)
		return format, "", err
	}
	format, label, ok := models.ParseFormat(trimmed)
	if !ok {
		return "", "", &parsererror.UnsupportedFormatError{Declared: declared}
	}
	return format, label, nil
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Sniff guesses the format from the content: a PDF header, an XML prolog or
// camt Document root, a consistently delimited table, or plain text.
// Binary content is unsupported.
func Sniff(data []byte) (models.Format, error) {
	head := bytes.TrimLeft(bytes.TrimPrefix(data, utf8BOM), " \t\r\n")
	switch {
	case bytes.HasPrefix(head, []byte("%PDF-")):
		return models.FormatPDF, nil
	case bytes.HasPrefix(head, []byte("<?xml")), bytes.HasPrefix(head, []byte("<Document")):
		return models.FormatXML, nil
	}

	sample := head
	if len(sample) > 4096 {
		sample = sample[:4096]
	}
	if bytes.IndexByte(sample, 0) >= 0 {
		return "", &parsererror.UnsupportedFormatError{Declared: "binary content"}
	}
	if _, ok := SniffDelimiter(string(sample)); ok {
		return models.FormatCSV, nil
	}
	return models.FormatText, nil
}

// decodeText converts data to UTF-8. label is the declared charset; without
// one the encoding is determined from the BOM, then UTF-8 validity.
func decodeText(data []byte, label string) (string, error) {
	if label != "" {
		if enc, _ := charset.Lookup(label); enc != nil {
			out, err := enc.NewDecoder().Bytes(data)
			if err != nil {
				return "", &parsererror.CorruptFileError{Format: "text", Reason: "cannot decode " + label, Err: err}
			}
			return strings.TrimPrefix(string(out), "\ufeff"), nil
		}
	}
	if utf8.Valid(data) {
		return strings.TrimPrefix(string(data), "\ufeff"), nil
	}
	enc, name, _ := charset.DetermineEncoding(data, "text/plain")
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", &parsererror.CorruptFileError{Format: "text", Reason: "cannot decode " + name, Err: err}
	}
	return strings.TrimPrefix(string(out), "\ufeff"), nil
}

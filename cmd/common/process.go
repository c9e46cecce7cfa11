// Package common contains shared functionality for command handlers
package common

import (
	"context"
	"fmt"
	"io"

	"fjacquet/statement-ledger/internal/container"
	"fjacquet/statement-ledger/internal/fileutils"
	"fjacquet/statement-ledger/internal/logging"
	"fjacquet/statement-ledger/internal/models"
	"fjacquet/statement-ledger/internal/parsererror"
	"fjacquet/statement-ledger/internal/validation"
	"fjacquet/statement-ledger/internal/writer"
)

// ReadStatement validates and reads inputFile, returning its bytes and the
// declared MIME type: mime when set, else the one implied by the extension.
func ReadStatement(inputFile, mime string, maxBytes int64) ([]byte, string, error) {
	if err := validation.IsValidInputFile(inputFile); err != nil {
		return nil, "", err
	}
	data, err := fileutils.ReadFileLimited(inputFile, maxBytes)
	if err != nil {
		return nil, "", err
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, "", &parsererror.ResourceLimitError{Resource: "bytes", Limit: maxBytes, Actual: int64(len(data))}
	}
	if mime == "" {
		mime = fileutils.MimeForPath(inputFile)
	}
	return data, mime, nil
}

// ProcessFile runs inputFile through the pipeline, forcing template when set.
func ProcessFile(ctx context.Context, c *container.Container, inputFile, mime, template string) (*models.Ledger, error) {
	data, mime, err := ReadStatement(inputFile, mime, c.GetConfig().Limits.MaxBytes)
	if err != nil {
		return nil, err
	}

	log := c.GetLogger()
	log.Info("Processing statement",
		logging.F(logging.FieldInputFile, inputFile),
		logging.F(logging.FieldBytes, len(data)))

	engine := c.GetEngine()
	if template != "" {
		return engine.ProcessWithTemplate(ctx, data, mime, template)
	}
	return engine.Process(ctx, data, mime)
}

// WriteLedger writes ledger to outputFile, or to stdout when outputFile is empty.
func WriteLedger(c *container.Container, ledger *models.Ledger, outputFile, format string, stdout io.Writer) error {
	if err := validation.IsValidOutputFormat(format); err != nil {
		return err
	}
	if outputFile == "" {
		return writer.Write(stdout, format, ledger, c.WriterOptions())
	}
	return writer.WriteFile(outputFile, format, ledger, c.WriterOptions(), c.GetLogger())
}

// Summary is the one-paragraph account of a processed ledger.
func Summary(ledger *models.Ledger) string {
	template := ledger.Template
	if template == "" {
		template = "none"
	}
	return fmt.Sprintf("Template: %s (%s, confidence %.2f)\nTransactions: %d\nDefective rows: %d\nStatus: %s\n",
		template,
		ledger.Detection.Source,
		ledger.Detection.Confidence,
		ledger.Count(),
		len(ledger.Defective),
		ledger.Report.Status)
}

// Package validation checks command-line inputs before any work is done.
package validation

import (
	"fmt"
	"os"

	"fjacquet/statement-ledger/internal/report"
	"fjacquet/statement-ledger/internal/writer"
)

// IsValidInputFile checks that path exists and is a regular file.
func IsValidInputFile(path string) error {
	if path == "" {
		return fmt.Errorf("input file is required")
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return fmt.Errorf("path does not exist: %s", path)
	}
	if err != nil {
		return fmt.Errorf("error checking path %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("path %s is not a regular file", path)
	}
	return nil
}

// IsValidInputDir checks that path exists and is a directory.
func IsValidInputDir(path string) error {
	if path == "" {
		return fmt.Errorf("input directory is required")
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return fmt.Errorf("path does not exist: %s", path)
	}
	if err != nil {
		return fmt.Errorf("error checking path %s: %w", path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path %s is not a directory", path)
	}
	return nil
}

// IsValidOutputFormat checks if the given ledger format is supported.
func IsValidOutputFormat(format string) error {
	switch format {
	case writer.FormatCSV, writer.FormatJSON:
		return nil
	default:
		return fmt.Errorf("unsupported output format: %s. Supported formats are 'csv', 'json'", format)
	}
}

// IsValidReportFormat checks if the given report format is supported.
func IsValidReportFormat(format string) error {
	switch format {
	case report.FormatJSON, report.FormatXML, report.FormatText:
		return nil
	default:
		return fmt.Errorf("unsupported report format: %s. Supported formats are 'json', 'xml', 'text'", format)
	}
}

// IsValidFilePermissions checks that a file holding secrets is not readable
// by others.
func IsValidFilePermissions(mode os.FileMode) error {
	if mode&0007 != 0 {
		return fmt.Errorf("file permissions are too permissive: %s. Recommended 0600 or 0640", mode.String())
	}
	return nil
}

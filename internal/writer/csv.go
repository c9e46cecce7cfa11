// Package writer serializes ledgers to CSV and JSON.
package writer

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"fjacquet/statement-ledger/internal/dateutils"
	"fjacquet/statement-ledger/internal/logging"
	"fjacquet/statement-ledger/internal/models"

	"github.com/gocarina/gocsv"
)

// Output formats.
const (
	FormatCSV  = "csv"
	FormatJSON = "json"
)

// Options controls CSV output.
type Options struct {
	Delimiter rune
	// DateFormat is a token pattern such as "DD.MM.YYYY".
	DateFormat      string
	IncludeMetadata bool
}

// DefaultOptions returns comma-separated ISO-dated output with metadata.
func DefaultOptions() Options {
	return Options{Delimiter: ',', DateFormat: "YYYY-MM-DD", IncludeMetadata: true}
}

// Row is one CSV output line.
type Row struct {
	Date        string `csv:"Date"`
	Description string `csv:"Description"`
	Amount      string `csv:"Amount"`
	Balance     string `csv:"Balance"`
	Currency    string `csv:"Currency"`
}

// Rows converts the ledger transactions using the date layout of opts.
func Rows(ledger *models.Ledger, opts Options) ([]Row, error) {
	layout, err := outputLayout(opts.DateFormat)
	if err != nil {
		return nil, err
	}
	rows := make([]Row, 0, ledger.Count())
	for _, tx := range ledger.Transactions {
		row := Row{
			Date:        dateutils.FormatDate(tx.Date, layout),
			Description: tx.Description,
			Amount:      tx.Amount.StringFixed(2),
			Currency:    tx.Currency,
		}
		if tx.Balance != nil {
			row.Balance = tx.Balance.StringFixed(2)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// WriteCSV writes the optional "#" metadata header and the transactions.
func WriteCSV(w io.Writer, ledger *models.Ledger, opts Options) error {
	if ledger == nil {
		return fmt.Errorf("cannot write nil ledger to CSV")
	}
	if opts.Delimiter == 0 {
		opts.Delimiter = ','
	}
	rows, err := Rows(ledger, opts)
	if err != nil {
		return err
	}

	if opts.IncludeMetadata {
		for _, line := range metadataLines(ledger) {
			if _, err := fmt.Fprintf(w, "# %s\n", line); err != nil {
				return fmt.Errorf("error writing CSV metadata: %w", err)
			}
		}
	}

	csvWriter := csv.NewWriter(w)
	csvWriter.Comma = opts.Delimiter
	if err := gocsv.MarshalCSV(rows, gocsv.NewSafeCSVWriter(csvWriter)); err != nil {
		return fmt.Errorf("error writing CSV data: %w", err)
	}
	return nil
}

// ReadCSV reads rows written by WriteCSV, skipping the metadata header.
func ReadCSV(r io.Reader, delimiter rune) ([]Row, error) {
	if delimiter == 0 {
		delimiter = ','
	}
	reader := csv.NewReader(r)
	reader.Comma = delimiter
	reader.Comment = '#'

	var rows []Row
	if err := gocsv.UnmarshalCSV(reader, &rows); err != nil {
		return nil, fmt.Errorf("error parsing CSV data: %w", err)
	}
	return rows, nil
}

func metadataLines(ledger *models.Ledger) []string {
	info := ledger.Info
	var lines []string
	add := func(key, value string) {
		if value != "" {
			lines = append(lines, key+": "+value)
		}
	}
	add("Account Holder", info.AccountHolder)
	add("Account Number", info.AccountNumber)
	add("Bank", info.Bank)
	if !info.Period.IsZero() {
		add("Statement Period", info.Period.String())
	}
	if info.OpeningBalance != nil {
		add("Opening Balance", info.OpeningBalance.String())
	}
	if info.ClosingBalance != nil {
		add("Closing Balance", info.ClosingBalance.String())
	}
	add("Template", ledger.Template)
	add("Status", string(ledger.Report.Status))
	return lines
}

func outputLayout(pattern string) (string, error) {
	if strings.TrimSpace(pattern) == "" {
		return dateutils.DateLayoutISO, nil
	}
	layout, err := dateutils.LayoutFromPattern(pattern)
	if err != nil {
		return "", fmt.Errorf("invalid output date format: %w", err)
	}
	return layout, nil
}

// WriteFile writes ledger to path in format, creating parent directories.
func WriteFile(path, format string, ledger *models.Ledger, opts Options, logger logging.Logger) error {
	if logger == nil {
		logger = logging.Nop()
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("error creating directory: %w", err)
		}
	}

	file, err := os.Create(path) // #nosec G304 -- output path is chosen by the caller
	if err != nil {
		return fmt.Errorf("error creating output file: %w", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close file")
		}
	}()

	if err := Write(file, format, ledger, opts); err != nil {
		return err
	}
	logger.Info("Ledger written",
		logging.F(logging.FieldOutputFile, path),
		logging.F(logging.FieldFormat, format),
		logging.F(logging.FieldCount, ledger.Count()))
	return nil
}

// Write dispatches on format.
func Write(w io.Writer, format string, ledger *models.Ledger, opts Options) error {
	switch strings.ToLower(format) {
	case FormatCSV, "":
		return WriteCSV(w, ledger, opts)
	case FormatJSON:
		return WriteJSON(w, ledger)
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}

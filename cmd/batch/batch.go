// Package batch handles batch processing of statement directories
package batch

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"fjacquet/statement-ledger/cmd/common"
	"fjacquet/statement-ledger/cmd/root"
	"fjacquet/statement-ledger/internal/batch"
	"fjacquet/statement-ledger/internal/container"
	"fjacquet/statement-ledger/internal/fileutils"
	"fjacquet/statement-ledger/internal/logging"
	"fjacquet/statement-ledger/internal/models"
	"fjacquet/statement-ledger/internal/pipeline"
	"fjacquet/statement-ledger/internal/validation"
	"fjacquet/statement-ledger/internal/writer"

	"github.com/spf13/cobra"
)

// Cmd represents the batch command
var Cmd = &cobra.Command{
	Use:   "batch",
	Short: "Batch process statements from a directory",
	Long: `Batch process every statement in an input directory and write one
consolidated ledger per account to the output directory.

Statements are grouped by account number (or by file name when the statement
has none) and concatenated in period order.

Example:
  statement-ledger batch -i statements/ -o ledgers/ --format csv`,
	RunE: batchFunc,
}

func init() {
	// Override the usage text for the input/output flags in batch context
	Cmd.SetUsageTemplate(`Usage:{{if .Runnable}}
  {{.UseLine}}{{end}}{{if .HasExample}}

Examples:
{{.Example}}{{end}}{{if .HasAvailableLocalFlags}}

Flags:
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}{{if .HasAvailableInheritedFlags}}

Global Flags (for batch, -i/-o refer to directories):
{{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}
`)
}

func batchFunc(cmd *cobra.Command, _ []string) error {
	c := root.GetContainer()
	if c == nil {
		return fmt.Errorf("container not initialized")
	}
	count, err := Run(cmd.Context(), c, root.SharedFlags.Input, root.SharedFlags.Output, root.SharedFlags.Format)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Batch processing completed. %d consolidated files created.\n", count)
	return err
}

// Run processes every statement in inputDir and writes the consolidated
// ledgers to outputDir. It returns the number of files written.
func Run(ctx context.Context, c *container.Container, inputDir, outputDir, format string) (int, error) {
	logger := c.GetLogger()

	if err := validation.IsValidInputDir(inputDir); err != nil {
		return 0, err
	}
	if outputDir == "" {
		return 0, fmt.Errorf("output directory must be specified")
	}
	if err := validation.IsValidOutputFormat(format); err != nil {
		return 0, err
	}
	if err := fileutils.EnsureDirectoryExists(outputDir); err != nil {
		return 0, err
	}

	files, err := fileutils.ListStatementFiles(inputDir)
	if err != nil {
		return 0, err
	}
	if len(files) == 0 {
		logger.Warn("No supported files found in input directory", logging.F(logging.FieldFile, inputDir))
		return 0, nil
	}
	logger.Info("Found files for processing", logging.F(logging.FieldCount, len(files)))

	inputs := make([]pipeline.Input, 0, len(files))
	for _, file := range files {
		data, mime, err := common.ReadStatement(file, "", c.GetConfig().Limits.MaxBytes)
		if err != nil {
			logger.WithError(err).Warn("Skipping unreadable file", logging.F(logging.FieldFile, file))
			continue
		}
		inputs = append(inputs, pipeline.Input{Name: file, Data: data, MIME: mime})
	}

	results := c.GetEngine().ProcessBatch(ctx, inputs)
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("batch interrupted: %w", err)
	}

	aggregator := c.GetAggregator()
	written := 0
	for _, group := range aggregator.GroupByAccount(results) {
		ledger := aggregator.Consolidate(group)
		if ledger.Count() == 0 {
			logger.Warn("No transactions found for account group", logging.F(logging.FieldAccount, group.AccountID))
			continue
		}

		name := batch.OutputFilename(group.AccountID, batch.PeriodOf(ledger), format)
		path := filepath.Join(outputDir, name)
		if err := writeConsolidated(path, format, ledger, group.Names, c.WriterOptions(), logger); err != nil {
			logger.WithError(err).Error("Failed to write consolidated ledger",
				logging.F(logging.FieldAccount, group.AccountID),
				logging.F(logging.FieldOutputFile, path))
			continue
		}

		logger.Info("Created consolidated file",
			logging.F(logging.FieldAccount, group.AccountID),
			logging.F(logging.FieldCount, ledger.Count()),
			logging.F(logging.FieldDateRange, group.DateRange.String()),
			logging.F(logging.FieldOutputFile, name))
		written++
	}
	return written, nil
}

// writeConsolidated writes ledger to path. CSV output starts with the list of
// source files as comment lines.
func writeConsolidated(path, format string, ledger *models.Ledger, sources []string, opts writer.Options, logger logging.Logger) error {
	file, err := fileutils.CreateFile(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := file.Close(); cerr != nil {
			logger.WithError(cerr).Warn("Failed to close output file")
		}
	}()

	if format == writer.FormatCSV {
		if _, err := io.WriteString(file, batch.SourceHeader(sources, time.Now())); err != nil {
			return fmt.Errorf("failed to write header comment: %w", err)
		}
	}
	return writer.Write(file, format, ledger, opts)
}

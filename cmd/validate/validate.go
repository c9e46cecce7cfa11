// Package validate handles the ledger validation command
package validate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"fjacquet/statement-ledger/cmd/common"
	"fjacquet/statement-ledger/cmd/root"
	"fjacquet/statement-ledger/internal/container"
	"fjacquet/statement-ledger/internal/models"
	"fjacquet/statement-ledger/internal/validation"

	"github.com/spf13/cobra"
)

// ErrValidationFailed is returned when the report status is failed, so that
// the process exits non-zero.
var ErrValidationFailed = errors.New("validation failed")

var (
	reportFormat string
	templateName string
)

// Cmd represents the validate command
var Cmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a statement and print its report",
	Long: `Process a statement and print the validation report: balance reconciliation,
date range and order checks, duplicate suspects and defective rows.

The command exits with a non-zero status when the report is failed.

Example:
  statement-ledger validate -i statement.pdf --report-format json -o report.json`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		c := root.GetContainer()
		if c == nil {
			return fmt.Errorf("container not initialized")
		}
		return Run(cmd.Context(), c, Options{
			Input:        root.SharedFlags.Input,
			Output:       root.SharedFlags.Output,
			MIME:         root.SharedFlags.MIME,
			ReportFormat: reportFormat,
			Template:     templateName,
		}, cmd.OutOrStdout())
	},
}

func init() {
	Cmd.Flags().StringVar(&reportFormat, "report-format", "text", "Report format: text, json or xml")
	Cmd.Flags().StringVarP(&templateName, "template", "t", "", "Use this template instead of detecting the layout")
}

// Options are the inputs of one validation.
type Options struct {
	Input        string
	Output       string
	MIME         string
	ReportFormat string
	Template     string
}

// Run processes opts.Input and renders its report to opts.Output or stdout.
func Run(ctx context.Context, c *container.Container, opts Options, stdout io.Writer) error {
	if err := validation.IsValidReportFormat(opts.ReportFormat); err != nil {
		return err
	}
	ledger, err := common.ProcessFile(ctx, c, opts.Input, opts.MIME, opts.Template)
	if err != nil {
		return fmt.Errorf("error validating %s: %w", opts.Input, err)
	}

	out, err := c.GetReportGenerator().Generate(ledger.Report, opts.ReportFormat)
	if err != nil {
		return err
	}
	if opts.Output == "" {
		if _, err := stdout.Write(out); err != nil {
			return err
		}
	} else if err := os.WriteFile(opts.Output, out, 0600); err != nil {
		return fmt.Errorf("error writing report: %w", err)
	}

	if ledger.Report.Status == models.StatusFailed {
		return fmt.Errorf("%w: %d issue(s) in %s", ErrValidationFailed, len(ledger.Report.Issues), opts.Input)
	}
	return nil
}

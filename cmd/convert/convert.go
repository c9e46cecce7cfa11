// Package convert handles the single statement conversion command
package convert

import (
	"context"
	"fmt"
	"io"

	"fjacquet/statement-ledger/cmd/common"
	"fjacquet/statement-ledger/cmd/root"
	"fjacquet/statement-ledger/internal/container"

	"github.com/spf13/cobra"
)

var templateName string

// Cmd represents the convert command
var Cmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert a statement to a CSV or JSON ledger",
	Long: `Convert a bank statement (PDF, CSV, plain text or camt.053 XML) into a ledger.

The layout is detected from the template registry unless --template names one.
The ledger is written to --output, or to stdout when no output is given, and
the validation summary is printed.

Example:
  statement-ledger convert -i statement.pdf -o ledger.csv
  statement-ledger convert -i export.csv --format json --template chase-checking-csv`,
	RunE: convertFunc,
}

func init() {
	Cmd.Flags().StringVarP(&templateName, "template", "t", "", "Use this template instead of detecting the layout")
}

func convertFunc(cmd *cobra.Command, _ []string) error {
	c := root.GetContainer()
	if c == nil {
		return fmt.Errorf("container not initialized")
	}
	return Run(cmd.Context(), c, Options{
		Input:    root.SharedFlags.Input,
		Output:   root.SharedFlags.Output,
		Format:   root.SharedFlags.Format,
		MIME:     root.SharedFlags.MIME,
		Template: templateName,
	}, cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// Options are the inputs of one conversion.
type Options struct {
	Input    string
	Output   string
	Format   string
	MIME     string
	Template string
}

// Run converts opts.Input. The summary goes to stderr when the ledger itself
// is written to stdout.
func Run(ctx context.Context, c *container.Container, opts Options, stdout, stderr io.Writer) error {
	ledger, err := common.ProcessFile(ctx, c, opts.Input, opts.MIME, opts.Template)
	if err != nil {
		return fmt.Errorf("error converting %s: %w", opts.Input, err)
	}
	if err := common.WriteLedger(c, ledger, opts.Output, opts.Format, stdout); err != nil {
		return fmt.Errorf("error writing ledger: %w", err)
	}

	summaryOut := stdout
	if opts.Output == "" {
		summaryOut = stderr
	}
	_, err = io.WriteString(summaryOut, common.Summary(ledger))
	return err
}

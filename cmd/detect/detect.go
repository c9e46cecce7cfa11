// Package detect handles the layout detection command
package detect

import (
	"context"
	"fmt"
	"io"

	"fjacquet/statement-ledger/cmd/common"
	"fjacquet/statement-ledger/cmd/root"
	"fjacquet/statement-ledger/internal/container"
	"fjacquet/statement-ledger/internal/detector"

	"github.com/spf13/cobra"
)

// Cmd represents the detect command
var Cmd = &cobra.Command{
	Use:   "detect",
	Short: "Show which template matches a statement",
	Long: `Score every template of the registry against a statement and print the
chosen template, its confidence and the full score table.

Example:
  statement-ledger detect -i statement.pdf`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		c := root.GetContainer()
		if c == nil {
			return fmt.Errorf("container not initialized")
		}
		return Run(cmd.Context(), c, root.SharedFlags.Input, root.SharedFlags.MIME, cmd.OutOrStdout())
	},
}

// Run detects the layout of input and prints the verdict to out.
func Run(ctx context.Context, c *container.Container, input, mime string, out io.Writer) error {
	data, mime, err := common.ReadStatement(input, mime, c.GetConfig().Limits.MaxBytes)
	if err != nil {
		return err
	}
	det, err := c.GetEngine().Detect(ctx, data, mime)
	if err != nil {
		return fmt.Errorf("error detecting layout of %s: %w", input, err)
	}
	_, err = io.WriteString(out, Render(det, c.GetConfig().Detection.ConfidenceFloor))
	return err
}

// Render formats a detection as a verdict line and a markdown score table.
func Render(det detector.Detection, floor float64) string {
	var out string
	if det.Unknown || det.Template == nil {
		out = fmt.Sprintf("Template: unknown (best confidence %.2f, floor %.2f)\n", det.Confidence, floor)
	} else {
		out = fmt.Sprintf("Template: %s\nConfidence: %.2f\n", det.Template.Name, det.Confidence)
	}
	if len(det.Scores) == 0 {
		return out
	}

	out += "\n| Template | Priority | Confidence | Note |\n|---|---|---|---|\n"
	for _, s := range det.Scores {
		note := ""
		switch {
		case s.FormatMismatch:
			note = "format mismatch"
		case s.Generic:
			note = "generic"
		}
		out += fmt.Sprintf("| %s | %d | %.2f | %s |\n", s.Template, s.Priority, s.Confidence, note)
	}
	return out
}

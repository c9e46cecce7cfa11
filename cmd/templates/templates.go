// Package templates handles the template listing command
package templates

import (
	"fmt"
	"io"
	"strings"

	"fjacquet/statement-ledger/cmd/root"
	"fjacquet/statement-ledger/internal/container"

	"github.com/spf13/cobra"
)

// Cmd represents the templates command
var Cmd = &cobra.Command{
	Use:   "templates",
	Short: "List the layout templates",
	Long: `List the templates of the registry in detection order: the builtin templates
plus those loaded from templates.dirs and --template-dir.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		c := root.GetContainer()
		if c == nil {
			return fmt.Errorf("container not initialized")
		}
		return Run(c, cmd.OutOrStdout())
	},
}

// Run prints the registry as a markdown table.
func Run(c *container.Container, out io.Writer) error {
	var sb strings.Builder
	sb.WriteString("| Name | Bank | Formats | Priority | Generic |\n|---|---|---|---|---|\n")
	for _, t := range c.GetRegistry().Templates() {
		formats := make([]string, 0, len(t.Formats))
		for _, f := range t.Formats {
			formats = append(formats, string(f))
		}
		generic := ""
		if t.Generic {
			generic = "yes"
		}
		fmt.Fprintf(&sb, "| %s | %s | %s | %d | %s |\n",
			t.Name, t.Bank, strings.Join(formats, ", "), t.Priority, generic)
	}
	fmt.Fprintf(&sb, "\n%d template(s)\n", c.GetRegistry().Len())
	_, err := io.WriteString(out, sb.String())
	return err
}

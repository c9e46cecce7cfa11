package convert_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"fjacquet/statement-ledger/cmd/convert"
	"fjacquet/statement-ledger/internal/config"
	"fjacquet/statement-ledger/internal/container"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chaseCSV = `Details,Posting Date,Description,Amount,Type,Balance,Check or Slip #
DEBIT,05/03/2024,COFFEE SHOP,-12.50,DEBIT_CARD,987.50,
CREDIT,05/01/2024,PAYROLL,1000.00,ACH_CREDIT,1000.00,
`

func newContainer(t *testing.T) *container.Container {
	t.Helper()
	cfg := config.Default()
	cfg.Log.Level = "error"
	c, err := container.NewContainer(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestConvertCommand_Metadata(t *testing.T) {
	assert.Equal(t, "convert", convert.Cmd.Use)
	assert.Contains(t, convert.Cmd.Short, "Convert a statement")
	assert.Contains(t, convert.Cmd.Long, "Example")
	assert.NotNil(t, convert.Cmd.RunE)
	assert.NotNil(t, convert.Cmd.Flags().Lookup("template"))
}

func TestRun_ToFile(t *testing.T) {
	c := newContainer(t)
	dir := t.TempDir()
	input := filepath.Join(dir, "statement.csv")
	output := filepath.Join(dir, "out", "ledger.csv")
	require.NoError(t, os.WriteFile(input, []byte(chaseCSV), 0600))

	var stdout, stderr bytes.Buffer
	err := convert.Run(context.Background(), c, convert.Options{
		Input:  input,
		Output: output,
		Format: "csv",
	}, &stdout, &stderr)
	require.NoError(t, err)

	assert.Contains(t, stdout.String(), "Template: chase-checking-csv")
	assert.Contains(t, stdout.String(), "Transactions: 2")
	assert.Empty(t, stderr.String())

	content, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Contains(t, string(content), "# Template: chase-checking-csv")
	assert.Contains(t, string(content), "2024-05-03,COFFEE SHOP,-12.50,987.50,USD")
}

func TestRun_ToStdout(t *testing.T) {
	c := newContainer(t)
	input := filepath.Join(t.TempDir(), "statement.csv")
	require.NoError(t, os.WriteFile(input, []byte(chaseCSV), 0600))

	var stdout, stderr bytes.Buffer
	err := convert.Run(context.Background(), c, convert.Options{
		Input:    input,
		Format:   "json",
		Template: "chase-checking-csv",
	}, &stdout, &stderr)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(stdout.String(), "{"))
	assert.Contains(t, stdout.String(), `"detection_source": "forced"`)
	assert.Contains(t, stderr.String(), "Status: clean")
}

func TestRun_Errors(t *testing.T) {
	c := newContainer(t)
	dir := t.TempDir()
	input := filepath.Join(dir, "statement.csv")
	require.NoError(t, os.WriteFile(input, []byte(chaseCSV), 0600))

	var out bytes.Buffer
	err := convert.Run(context.Background(), c, convert.Options{Input: filepath.Join(dir, "missing.csv"), Format: "csv"}, &out, &out)
	assert.ErrorContains(t, err, "path does not exist")

	err = convert.Run(context.Background(), c, convert.Options{Input: input, Format: "xlsx"}, &out, &out)
	assert.ErrorContains(t, err, "unsupported output format")

	err = convert.Run(context.Background(), c, convert.Options{Input: input, Format: "csv", MIME: "image/png"}, &out, &out)
	assert.ErrorContains(t, err, "error converting")
}

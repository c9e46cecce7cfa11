package validate_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"fjacquet/statement-ledger/cmd/validate"
	"fjacquet/statement-ledger/internal/config"
	"fjacquet/statement-ledger/internal/container"
	"fjacquet/statement-ledger/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chaseCSV = `Details,Posting Date,Description,Amount,Type,Balance,Check or Slip #
DEBIT,05/03/2024,COFFEE SHOP,-12.50,DEBIT_CARD,987.50,
CREDIT,05/01/2024,PAYROLL,1000.00,ACH_CREDIT,1000.00,
`

func setup(t *testing.T) (*container.Container, string) {
	t.Helper()
	cfg := config.Default()
	cfg.Log.Level = "error"
	c, err := container.NewContainer(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, t.TempDir()
}

func TestValidateCommand_Metadata(t *testing.T) {
	assert.Equal(t, "validate", validate.Cmd.Use)
	assert.Contains(t, validate.Cmd.Long, "non-zero status")
	flag := validate.Cmd.Flags().Lookup("report-format")
	require.NotNil(t, flag)
	assert.Equal(t, "text", flag.DefValue)
}

func TestRun_Clean(t *testing.T) {
	c, dir := setup(t)
	input := filepath.Join(dir, "statement.csv")
	require.NoError(t, os.WriteFile(input, []byte(chaseCSV), 0600))

	var out bytes.Buffer
	err := validate.Run(context.Background(), c, validate.Options{Input: input, ReportFormat: "text"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "Status: clean\nNo issues found\n", out.String())
}

func TestRun_FailedReportToFile(t *testing.T) {
	c, dir := setup(t)
	input := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(input, []byte("nothing tabular here\n"), 0600))
	output := filepath.Join(dir, "report.json")

	var out bytes.Buffer
	err := validate.Run(context.Background(), c, validate.Options{Input: input, Output: output, ReportFormat: "json"}, &out)
	require.ErrorIs(t, err, validate.ErrValidationFailed)
	assert.Empty(t, out.String())

	content, err := os.ReadFile(output)
	require.NoError(t, err)
	var report models.Report
	require.NoError(t, json.Unmarshal(content, &report))
	assert.Equal(t, models.StatusFailed, report.Status)
	assert.Equal(t, 1, report.Count(models.IssueEmptyLedger))
}

func TestRun_InvalidReportFormat(t *testing.T) {
	c, dir := setup(t)
	var out bytes.Buffer
	err := validate.Run(context.Background(), c, validate.Options{Input: filepath.Join(dir, "x.csv"), ReportFormat: "html"}, &out)
	assert.ErrorContains(t, err, "unsupported report format")
}

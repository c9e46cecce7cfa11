package batch_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"fjacquet/statement-ledger/cmd/batch"
	"fjacquet/statement-ledger/internal/config"
	"fjacquet/statement-ledger/internal/container"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const header = "Details,Posting Date,Description,Amount,Type,Balance,Check or Slip #\n"

func newContainer(t *testing.T) *container.Container {
	t.Helper()
	cfg := config.Default()
	cfg.Log.Level = "error"
	c, err := container.NewContainer(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestBatchCommand_Metadata(t *testing.T) {
	assert.Equal(t, "batch", batch.Cmd.Use)
	assert.Contains(t, batch.Cmd.Long, "consolidated ledger per account")
	assert.NotNil(t, batch.Cmd.RunE)
}

func TestRun(t *testing.T) {
	c := newContainer(t)
	inputDir := t.TempDir()
	outputDir := filepath.Join(t.TempDir(), "ledgers")

	files := map[string]string{
		"checking.csv": header +
			"DEBIT,05/03/2024,COFFEE SHOP,-12.50,DEBIT_CARD,987.50,\n" +
			"CREDIT,05/01/2024,PAYROLL,1000.00,ACH_CREDIT,1000.00,\n",
		"savings.csv": header +
			"CREDIT,06/01/2024,INTEREST,1.25,ACH_CREDIT,101.25,\n",
		"notes.md": "not a statement",
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(inputDir, name), []byte(content), 0600))
	}

	count, err := batch.Run(context.Background(), c, inputDir, outputDir, "csv")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	entries, err := os.ReadDir(outputDir)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	for _, entry := range entries {
		content, err := os.ReadFile(filepath.Join(outputDir, entry.Name()))
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(string(content), "# Consolidated from source files:\n"), entry.Name())
		assert.Contains(t, string(content), "Date,Description,Amount,Balance,Currency")
	}
}

func TestRun_Errors(t *testing.T) {
	c := newContainer(t)
	dir := t.TempDir()

	tests := []struct {
		name      string
		inputDir  string
		outputDir string
		format    string
		wantErr   string
	}{
		{"missing input", filepath.Join(dir, "missing"), dir, "csv", "does not exist"},
		{"no output", dir, "", "csv", "output directory must be specified"},
		{"bad format", dir, dir, "xlsx", "unsupported output format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := batch.Run(context.Background(), c, tt.inputDir, tt.outputDir, tt.format)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestRun_EmptyDirectory(t *testing.T) {
	c := newContainer(t)
	count, err := batch.Run(context.Background(), c, t.TempDir(), t.TempDir(), "json")
	require.NoError(t, err)
	assert.Zero(t, count)
}

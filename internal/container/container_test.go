package container

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"fjacquet/statement-ledger/internal/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const acmeYAML = `
name: acme-csv
bank: Acme Bank
formats: [csv]
columns:
  - {name: date, role: date, header: Date}
  - {name: memo, role: description, header: Memo}
  - {name: amount, role: amount, header: Amount}
date_format: DD.MM.YYYY
`

func TestNewContainer(t *testing.T) {
	tests := []struct {
		name        string
		config      func(t *testing.T) *config.Config
		expectError bool
		errorMsg    string
	}{
		{
			name:        "nil config",
			config:      func(*testing.T) *config.Config { return nil },
			expectError: true,
			errorMsg:    "configuration cannot be nil",
		},
		{
			name:   "defaults",
			config: func(*testing.T) *config.Config { return config.Default() },
		},
		{
			name: "invalid template directory",
			config: func(t *testing.T) *config.Config {
				dir := t.TempDir()
				require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("name: [unterminated\n"), 0600))
				cfg := config.Default()
				cfg.Templates.Dirs = []string{dir}
				return cfg
			},
			expectError: true,
			errorMsg:    "failed to load templates",
		},
		{
			name: "unreachable redis",
			config: func(*testing.T) *config.Config {
				cfg := config.Default()
				cfg.Redis.URL = "redis://127.0.0.1:1/0"
				return cfg
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewContainer(context.Background(), tt.config(t))
			if tt.expectError {
				require.Error(t, err)
				if tt.errorMsg != "" {
					assert.Contains(t, err.Error(), tt.errorMsg)
				}
				assert.Nil(t, c)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, c)
			assert.NoError(t, c.Close())
		})
	}
}

func TestContainer_Getters(t *testing.T) {
	cfg := config.Default()
	cfg.CSV.Delimiter = ";"
	cfg.CSV.DateFormat = "DD.MM.YYYY"

	c, err := NewContainer(context.Background(), cfg)
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	assert.NotNil(t, c.GetLogger())
	assert.Same(t, cfg, c.GetConfig())
	assert.Equal(t, 4, c.GetRegistry().Len())
	assert.Same(t, c.GetRegistry(), c.GetEngine().Registry())
	assert.NotNil(t, c.GetMetrics())
	assert.NotNil(t, c.GetReportGenerator())
	assert.NotNil(t, c.GetAggregator())
	assert.Nil(t, c.GetStore())
	assert.False(t, c.AIEnabled())

	opts := c.WriterOptions()
	assert.Equal(t, ';', opts.Delimiter)
	assert.Equal(t, "DD.MM.YYYY", opts.DateFormat)
	assert.True(t, opts.IncludeMetadata)

	families, err := c.GetMetricsRegistry().Gather()
	require.NoError(t, err)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, strings.Join(names, " "), "go_goroutines")
}

func TestContainer_TemplateDirectories(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "acme.yaml"), []byte(acmeYAML), 0600))

	cfg := config.Default()
	cfg.Templates.Dirs = []string{dir}
	cfg.Templates.Builtin = false

	c, err := NewContainer(context.Background(), cfg)
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	assert.Equal(t, []string{"acme-csv"}, c.GetRegistry().Names())
}

func TestContainer_RedisStore(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := config.Default()
	cfg.Redis.URL = "redis://" + mr.Addr() + "/0"

	c, err := NewContainer(context.Background(), cfg)
	require.NoError(t, err)

	ledger, err := c.GetEngine().Process(context.Background(), []byte("Details,Posting Date,Description,Amount,Type,Balance,Check or Slip #\nDEBIT,05/03/2024,COFFEE SHOP,-12.50,DEBIT_CARD,987.50,\n"), "text/csv")
	require.NoError(t, err)

	require.NotNil(t, c.GetStore())
	id, err := c.GetStore().Save(context.Background(), ledger)
	require.NoError(t, err)
	assert.True(t, mr.Exists("ledger:"+id))

	assert.NoError(t, c.Close())
}

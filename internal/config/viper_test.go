package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializeConfig_Defaults(t *testing.T) {
	clearTestEnvVars(t)
	chdirTemp(t)

	config, err := InitializeConfig()
	require.NoError(t, err)

	assert.Equal(t, "info", config.Log.Level)
	assert.Equal(t, "text", config.Log.Format)
	assert.Equal(t, ",", config.CSV.Delimiter)
	assert.Equal(t, "YYYY-MM-DD", config.CSV.DateFormat)
	assert.True(t, config.CSV.IncludeMetadata)
	assert.Equal(t, int64(20*1024*1024), config.Limits.MaxBytes)
	assert.Equal(t, 200, config.Limits.MaxPages)
	assert.Equal(t, 60, config.Limits.TimeoutSeconds)
	assert.Equal(t, 0.5, config.Detection.ConfidenceFloor)
	assert.Equal(t, "0.01", config.Validation.BalanceTolerance)
	assert.Equal(t, 3, config.Validation.DateSlackDays)
	assert.Equal(t, 3, config.Validation.DuplicateThreshold)
	assert.True(t, config.Templates.Builtin)
	assert.Empty(t, config.Templates.Dirs)
	assert.False(t, config.AI.Enabled)
	assert.Equal(t, "gemini-2.0-flash", config.AI.Model)
	assert.Equal(t, ":8080", config.Server.Addr)
	assert.Equal(t, "", config.Redis.URL)
	assert.Equal(t, 24, config.Redis.TTLHours)
	assert.Equal(t, 0, config.Batch.Workers)
}

func TestInitializeConfig_EnvironmentVariables(t *testing.T) {
	clearTestEnvVars(t)
	chdirTemp(t)

	testEnvVars := map[string]string{
		"LEDGER_LOG_LEVEL":                   "debug",
		"LEDGER_LOG_FORMAT":                  "json",
		"LEDGER_CSV_DELIMITER":               ";",
		"LEDGER_LIMITS_MAX_PAGES":            "12",
		"LEDGER_DETECTION_CONFIDENCE_FLOOR":  "0.75",
		"LEDGER_VALIDATION_BALANCE_TOLERANCE": "0.05",
		"LEDGER_TEMPLATES_DIRS":              "/etc/ledger/templates,./more",
		"LEDGER_AI_ENABLED":                  "true",
		"GEMINI_API_KEY":                     "test-api-key",
	}
	for key, value := range testEnvVars {
		t.Setenv(key, value)
	}

	config, err := InitializeConfig()
	require.NoError(t, err)

	assert.Equal(t, "debug", config.Log.Level)
	assert.Equal(t, "json", config.Log.Format)
	assert.Equal(t, ";", config.CSV.Delimiter)
	assert.Equal(t, 12, config.Limits.MaxPages)
	assert.Equal(t, 0.75, config.Detection.ConfidenceFloor)
	assert.True(t, decimal.RequireFromString("0.05").Equal(config.Tolerance()))
	assert.Equal(t, []string{"/etc/ledger/templates", "./more"}, config.Templates.Dirs)
	assert.True(t, config.AI.Enabled)
	assert.Equal(t, "test-api-key", config.AI.APIKey)
}

func TestInitializeConfig_ConfigFile(t *testing.T) {
	clearTestEnvVars(t)
	dir := chdirTemp(t)

	configContent := `
log:
  level: "warn"
csv:
  delimiter: "|"
  include_metadata: false
limits:
  timeout_seconds: 5
validation:
  balance_tolerance: "0.10"
  duplicate_threshold: 4
redis:
  url: "redis://localhost:6379/0"
  ttl_hours: 2
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(configContent), 0600))

	t.Setenv("LEDGER_LOG_LEVEL", "error")

	config, err := InitializeConfig()
	require.NoError(t, err)

	assert.Equal(t, "error", config.Log.Level, "env var wins over file")
	assert.Equal(t, "|", config.CSV.Delimiter)
	assert.False(t, config.CSV.IncludeMetadata)
	assert.Equal(t, 5*time.Second, config.Timeout())
	assert.Equal(t, "0.10", config.Validation.BalanceTolerance)
	assert.Equal(t, 4, config.Validation.DuplicateThreshold)
	assert.Equal(t, "redis://localhost:6379/0", config.Redis.URL)
	assert.Equal(t, 2, config.Redis.TTLHours)
	assert.Equal(t, '|', config.DelimiterRune())
}

func TestValidateConfig_InvalidValues(t *testing.T) {
	tests := []struct {
		name         string
		modifyConfig func(*Config)
		expectError  string
	}{
		{
			name:         "invalid log level",
			modifyConfig: func(c *Config) { c.Log.Level = "invalid" },
			expectError:  "invalid log level",
		},
		{
			name:         "invalid log format",
			modifyConfig: func(c *Config) { c.Log.Format = "xml" },
			expectError:  "invalid log format",
		},
		{
			name:         "invalid CSV delimiter",
			modifyConfig: func(c *Config) { c.CSV.Delimiter = "abc" },
			expectError:  "CSV delimiter must be a single character",
		},
		{
			name:         "zero max bytes",
			modifyConfig: func(c *Config) { c.Limits.MaxBytes = 0 },
			expectError:  "limits.max_bytes must be positive",
		},
		{
			name:         "zero max pages",
			modifyConfig: func(c *Config) { c.Limits.MaxPages = 0 },
			expectError:  "limits.max_pages must be positive",
		},
		{
			name:         "zero timeout",
			modifyConfig: func(c *Config) { c.Limits.TimeoutSeconds = 0 },
			expectError:  "limits.timeout_seconds must be positive",
		},
		{
			name:         "confidence floor above one",
			modifyConfig: func(c *Config) { c.Detection.ConfidenceFloor = 1.5 },
			expectError:  "detection.confidence_floor must be between 0.0 and 1.0",
		},
		{
			name:         "non decimal tolerance",
			modifyConfig: func(c *Config) { c.Validation.BalanceTolerance = "one cent" },
			expectError:  "validation.balance_tolerance must be a non-negative decimal",
		},
		{
			name:         "negative tolerance",
			modifyConfig: func(c *Config) { c.Validation.BalanceTolerance = "-0.01" },
			expectError:  "validation.balance_tolerance must be a non-negative decimal",
		},
		{
			name:         "duplicate threshold too small",
			modifyConfig: func(c *Config) { c.Validation.DuplicateThreshold = 1 },
			expectError:  "validation.duplicate_threshold must be at least 2",
		},
		{
			name: "AI enabled without API key",
			modifyConfig: func(c *Config) {
				c.AI.Enabled = true
				c.AI.APIKey = ""
			},
			expectError: "GEMINI_API_KEY required when AI is enabled",
		},
		{
			name: "AI retries out of range",
			modifyConfig: func(c *Config) {
				c.AI.Enabled = true
				c.AI.APIKey = "k"
				c.AI.MaxRetries = 50
			},
			expectError: "ai.max_retries must be between 0 and 10",
		},
		{
			name: "redis without ttl",
			modifyConfig: func(c *Config) {
				c.Redis.URL = "redis://localhost:6379"
				c.Redis.TTLHours = 0
			},
			expectError: "redis.ttl_hours must be positive",
		},
		{
			name:         "negative workers",
			modifyConfig: func(c *Config) { c.Batch.Workers = -1 },
			expectError:  "batch.workers must not be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := Default()
			require.NoError(t, validateConfig(config))

			tt.modifyConfig(config)
			err := validateConfig(config)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectError)
		})
	}
}

// chdirTemp moves the test into an empty directory so no stray config.yaml is read.
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func clearTestEnvVars(t *testing.T) {
	t.Helper()
	envVars := []string{
		"LEDGER_LOG_LEVEL",
		"LEDGER_LOG_FORMAT",
		"LEDGER_CSV_DELIMITER",
		"LEDGER_CSV_DATE_FORMAT",
		"LEDGER_CSV_INCLUDE_METADATA",
		"LEDGER_LIMITS_MAX_BYTES",
		"LEDGER_LIMITS_MAX_PAGES",
		"LEDGER_LIMITS_TIMEOUT_SECONDS",
		"LEDGER_DETECTION_CONFIDENCE_FLOOR",
		"LEDGER_VALIDATION_BALANCE_TOLERANCE",
		"LEDGER_VALIDATION_DATE_SLACK_DAYS",
		"LEDGER_VALIDATION_DUPLICATE_THRESHOLD",
		"LEDGER_TEMPLATES_DIRS",
		"LEDGER_TEMPLATES_BUILTIN",
		"LEDGER_AI_ENABLED",
		"LEDGER_AI_MODEL",
		"LEDGER_REDIS_URL",
		"LEDGER_BATCH_WORKERS",
		"GEMINI_API_KEY",
	}
	for _, envVar := range envVars {
		// t.Setenv restores the original value after the test; unsetting
		// afterwards leaves the variable absent for this test only.
		t.Setenv(envVar, "")
		require.NoError(t, os.Unsetenv(envVar))
	}
}

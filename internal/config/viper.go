// Package config provides Viper-based hierarchical configuration management
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment override (LEDGER_LOG_LEVEL, ...).
const EnvPrefix = "LEDGER"

// LogConfig controls the logrus adapter.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// CSVConfig controls ledger CSV output.
type CSVConfig struct {
	Delimiter       string `mapstructure:"delimiter" yaml:"delimiter"`
	DateFormat      string `mapstructure:"date_format" yaml:"date_format"`
	IncludeMetadata bool   `mapstructure:"include_metadata" yaml:"include_metadata"`
}

// LimitsConfig bounds the work spent on a single document.
type LimitsConfig struct {
	MaxBytes       int64 `mapstructure:"max_bytes" yaml:"max_bytes"`
	MaxPages       int   `mapstructure:"max_pages" yaml:"max_pages"`
	TimeoutSeconds int   `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
}

// DetectionConfig controls the layout detector.
type DetectionConfig struct {
	ConfidenceFloor float64 `mapstructure:"confidence_floor" yaml:"confidence_floor"`
}

// ValidationConfig controls ledger reconciliation.
type ValidationConfig struct {
	BalanceTolerance   string `mapstructure:"balance_tolerance" yaml:"balance_tolerance"`
	DateSlackDays      int    `mapstructure:"date_slack_days" yaml:"date_slack_days"`
	DuplicateThreshold int    `mapstructure:"duplicate_threshold" yaml:"duplicate_threshold"`
}

// TemplatesConfig locates layout templates.
type TemplatesConfig struct {
	Dirs    []string `mapstructure:"dirs" yaml:"dirs"`
	Builtin bool     `mapstructure:"builtin" yaml:"builtin"`
}

// AIConfig controls the optional layout classifier.
type AIConfig struct {
	Enabled        bool   `mapstructure:"enabled" yaml:"enabled"`
	Model          string `mapstructure:"model" yaml:"model"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	MaxRetries     int    `mapstructure:"max_retries" yaml:"max_retries"`
	APIKey         string `mapstructure:"api_key" yaml:"-"` // Never serialize API key
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Addr                string `mapstructure:"addr" yaml:"addr"`
	ReadTimeoutSeconds  int    `mapstructure:"read_timeout_seconds" yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `mapstructure:"write_timeout_seconds" yaml:"write_timeout_seconds"`
}

// RedisConfig controls the optional ledger store.
type RedisConfig struct {
	URL      string `mapstructure:"url" yaml:"url"`
	TTLHours int    `mapstructure:"ttl_hours" yaml:"ttl_hours"`
}

// BatchConfig controls directory processing.
type BatchConfig struct {
	Workers int `mapstructure:"workers" yaml:"workers"`
}

// Config represents the complete application configuration
type Config struct {
	Log        LogConfig        `mapstructure:"log" yaml:"log"`
	CSV        CSVConfig        `mapstructure:"csv" yaml:"csv"`
	Limits     LimitsConfig     `mapstructure:"limits" yaml:"limits"`
	Detection  DetectionConfig  `mapstructure:"detection" yaml:"detection"`
	Validation ValidationConfig `mapstructure:"validation" yaml:"validation"`
	Templates  TemplatesConfig  `mapstructure:"templates" yaml:"templates"`
	AI         AIConfig         `mapstructure:"ai" yaml:"ai"`
	Server     ServerConfig     `mapstructure:"server" yaml:"server"`
	Redis      RedisConfig      `mapstructure:"redis" yaml:"redis"`
	Batch      BatchConfig      `mapstructure:"batch" yaml:"batch"`
}

// InitializeConfig initializes Viper configuration with hierarchical loading:
// defaults, then config.yaml, then LEDGER_* environment variables.
func InitializeConfig() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("$HOME/.statement-ledger")
	v.AddConfigPath(".statement-ledger")
	v.AddConfigPath(".")

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file %s: %w", v.ConfigFileUsed(), err)
		}
	}

	// API key is read unprefixed, the way the Gemini tooling documents it
	if err := v.BindEnv("ai.api_key", "GEMINI_API_KEY"); err != nil {
		return nil, fmt.Errorf("failed to bind GEMINI_API_KEY: %w", err)
	}
	if err := v.BindEnv("templates.dirs", EnvPrefix+"_TEMPLATES_DIRS"); err != nil {
		return nil, fmt.Errorf("failed to bind %s_TEMPLATES_DIRS: %w", EnvPrefix, err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	config.Templates.Dirs = splitList(config.Templates.Dirs)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Default returns the configuration produced by the defaults alone, without
// reading files or the environment.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var config Config
	_ = v.Unmarshal(&config)
	return &config
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("csv.delimiter", ",")
	v.SetDefault("csv.date_format", "YYYY-MM-DD")
	v.SetDefault("csv.include_metadata", true)

	v.SetDefault("limits.max_bytes", 20*1024*1024)
	v.SetDefault("limits.max_pages", 200)
	v.SetDefault("limits.timeout_seconds", 60)

	v.SetDefault("detection.confidence_floor", 0.5)

	v.SetDefault("validation.balance_tolerance", "0.01")
	v.SetDefault("validation.date_slack_days", 3)
	v.SetDefault("validation.duplicate_threshold", 3)

	v.SetDefault("templates.dirs", []string{})
	v.SetDefault("templates.builtin", true)

	v.SetDefault("ai.enabled", false)
	v.SetDefault("ai.model", "gemini-2.0-flash")
	v.SetDefault("ai.timeout_seconds", 30)
	v.SetDefault("ai.max_retries", 3)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout_seconds", 30)
	v.SetDefault("server.write_timeout_seconds", 90)

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.ttl_hours", 24)

	v.SetDefault("batch.workers", 0)
}

// splitList expands comma separated entries, which is how a list arrives from
// an environment variable.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func validateConfig(config *Config) error {
	if _, err := logrus.ParseLevel(config.Log.Level); err != nil {
		return fmt.Errorf("invalid log level: %s", config.Log.Level)
	}

	if config.Log.Format != "text" && config.Log.Format != "json" {
		return fmt.Errorf("invalid log format: %s (must be 'text' or 'json')", config.Log.Format)
	}

	if len([]rune(config.CSV.Delimiter)) != 1 {
		return fmt.Errorf("CSV delimiter must be a single character, got: %s", config.CSV.Delimiter)
	}

	if config.Limits.MaxBytes <= 0 {
		return fmt.Errorf("limits.max_bytes must be positive, got: %d", config.Limits.MaxBytes)
	}
	if config.Limits.MaxPages <= 0 {
		return fmt.Errorf("limits.max_pages must be positive, got: %d", config.Limits.MaxPages)
	}
	if config.Limits.TimeoutSeconds <= 0 {
		return fmt.Errorf("limits.timeout_seconds must be positive, got: %d", config.Limits.TimeoutSeconds)
	}

	if config.Detection.ConfidenceFloor < 0.0 || config.Detection.ConfidenceFloor > 1.0 {
		return fmt.Errorf("detection.confidence_floor must be between 0.0 and 1.0, got: %f", config.Detection.ConfidenceFloor)
	}

	tol, err := decimal.NewFromString(config.Validation.BalanceTolerance)
	if err != nil || tol.IsNegative() {
		return fmt.Errorf("validation.balance_tolerance must be a non-negative decimal, got: %s", config.Validation.BalanceTolerance)
	}
	if config.Validation.DateSlackDays < 0 {
		return fmt.Errorf("validation.date_slack_days must not be negative, got: %d", config.Validation.DateSlackDays)
	}
	if config.Validation.DuplicateThreshold < 2 {
		return fmt.Errorf("validation.duplicate_threshold must be at least 2, got: %d", config.Validation.DuplicateThreshold)
	}

	if config.AI.Enabled {
		if config.AI.APIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY required when AI is enabled")
		}
		if config.AI.TimeoutSeconds < 1 || config.AI.TimeoutSeconds > 300 {
			return fmt.Errorf("ai.timeout_seconds must be between 1 and 300, got: %d", config.AI.TimeoutSeconds)
		}
		if config.AI.MaxRetries < 0 || config.AI.MaxRetries > 10 {
			return fmt.Errorf("ai.max_retries must be between 0 and 10, got: %d", config.AI.MaxRetries)
		}
	}

	if config.Redis.URL != "" && config.Redis.TTLHours <= 0 {
		return fmt.Errorf("redis.ttl_hours must be positive when redis.url is set, got: %d", config.Redis.TTLHours)
	}

	if config.Batch.Workers < 0 {
		return fmt.Errorf("batch.workers must not be negative, got: %d", config.Batch.Workers)
	}

	return nil
}

// Tolerance returns the parsed balance tolerance. validateConfig guarantees it parses.
func (c *Config) Tolerance() decimal.Decimal {
	tol, err := decimal.NewFromString(c.Validation.BalanceTolerance)
	if err != nil {
		return decimal.New(1, -2)
	}
	return tol
}

// Timeout returns the per-document wall-clock budget.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Limits.TimeoutSeconds) * time.Second
}

// DelimiterRune returns the CSV delimiter as a rune.
func (c *Config) DelimiterRune() rune {
	r := []rune(c.CSV.Delimiter)
	if len(r) == 0 {
		return ','
	}
	return r[0]
}

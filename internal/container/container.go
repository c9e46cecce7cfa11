// Package container provides dependency injection for the statement-ledger
// application. It centralizes the creation and wiring of all application
// dependencies, making them explicit and testable.
package container

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fjacquet/statement-ledger/internal/batch"
	"fjacquet/statement-ledger/internal/classifier"
	"fjacquet/statement-ledger/internal/config"
	"fjacquet/statement-ledger/internal/loader"
	"fjacquet/statement-ledger/internal/logging"
	"fjacquet/statement-ledger/internal/metrics"
	"fjacquet/statement-ledger/internal/pipeline"
	"fjacquet/statement-ledger/internal/report"
	"fjacquet/statement-ledger/internal/store"
	"fjacquet/statement-ledger/internal/templates"
	"fjacquet/statement-ledger/internal/validator"
	"fjacquet/statement-ledger/internal/writer"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

// Container holds all application dependencies and provides methods to access them.
// It acts as the central registry for dependency injection, ensuring that all
// components receive their required dependencies through constructors.
//
// Container is immutable after creation - all fields are private and can only
// be accessed through getter methods. This prevents accidental modification
// of dependencies after initialization.
type Container struct {
	logger     logging.Logger
	config     *config.Config
	registry   *templates.Registry
	metricsReg *prometheus.Registry
	metrics    *metrics.Metrics
	classifier *classifier.GeminiClassifier
	engine     *pipeline.Engine
	redis      *redis.Client
	store      store.LedgerStore
	reports    *report.Generator
	aggregator *batch.Aggregator
}

// NewContainer creates and wires all application dependencies.
// This is the main entry point for dependency injection in the application.
//
// Parameters:
//   - ctx: Bounds the startup of the remote clients (Gemini, Redis)
//   - cfg: Application configuration
//
// Returns:
//   - *Container: Fully wired container with all dependencies
//   - error: Any error encountered during dependency creation
func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration cannot be nil")
	}

	// Create logger first as it's needed by other components
	logger := logging.NewLogrusAdapter(cfg.Log.Level, cfg.Log.Format)

	registry, err := templates.Load(templates.Options{
		Dirs:    cfg.Templates.Dirs,
		Builtin: cfg.Templates.Builtin,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}

	metricsReg := prometheus.NewRegistry()
	metricsReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(metricsReg)

	c := &Container{
		logger:     logger,
		config:     cfg,
		registry:   registry,
		metricsReg: metricsReg,
		metrics:    m,
		reports:    report.NewGenerator(logger),
		aggregator: batch.NewAggregator(logger),
	}

	// Layout classifier (if enabled)
	if cfg.AI.Enabled && cfg.AI.APIKey != "" {
		c.classifier, err = classifier.NewGeminiClassifier(ctx, cfg.AI.APIKey, cfg.AI.Model, classifier.Options{
			Timeout:    time.Duration(cfg.AI.TimeoutSeconds) * time.Second,
			MaxRetries: cfg.AI.MaxRetries,
		}, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("AI layout classifier enabled", logging.F("model", cfg.AI.Model))
	} else {
		logger.Info("AI layout classifier disabled")
	}

	opts := pipeline.Options{
		Timeout:         cfg.Timeout(),
		ConfidenceFloor: cfg.Detection.ConfidenceFloor,
		Workers:         cfg.Batch.Workers,
		Loader: loader.Options{
			MaxBytes: cfg.Limits.MaxBytes,
			MaxPages: cfg.Limits.MaxPages,
		},
		Validation: validator.Options{
			Tolerance:          cfg.Tolerance(),
			DateSlackDays:      cfg.Validation.DateSlackDays,
			DuplicateThreshold: cfg.Validation.DuplicateThreshold,
		},
		Metrics: m,
	}
	if c.classifier != nil {
		opts.Classifier = c.classifier
	}
	c.engine = pipeline.New(registry, opts, logger)

	// Ledger store (if configured)
	if cfg.Redis.URL != "" {
		client, err := store.NewClient(ctx, cfg.Redis.URL)
		if err != nil {
			_ = c.closeClassifier()
			return nil, err
		}
		c.redis = client
		c.store = store.NewRedisStore(client, time.Duration(cfg.Redis.TTLHours)*time.Hour, logger)
	}

	logger.Info("Container initialized successfully",
		logging.F("templates_count", registry.Len()),
		logging.F("ai_enabled", c.classifier != nil),
		logging.F("store_enabled", c.store != nil))

	return c, nil
}

// GetLogger returns the container's logger instance.
func (c *Container) GetLogger() logging.Logger {
	return c.logger
}

// GetConfig returns the container's configuration instance.
func (c *Container) GetConfig() *config.Config {
	return c.config
}

// GetRegistry returns the template registry the engine detects against.
func (c *Container) GetRegistry() *templates.Registry {
	return c.registry
}

// GetEngine returns the statement pipeline.
func (c *Container) GetEngine() *pipeline.Engine {
	return c.engine
}

// GetStore returns the ledger store.
// Returns nil if no Redis URL is configured.
func (c *Container) GetStore() store.LedgerStore {
	return c.store
}

// GetMetrics returns the Prometheus instruments.
func (c *Container) GetMetrics() *metrics.Metrics {
	return c.metrics
}

// GetMetricsRegistry returns the registry the instruments are registered on.
func (c *Container) GetMetricsRegistry() *prometheus.Registry {
	return c.metricsReg
}

// GetReportGenerator returns the validation report renderer.
func (c *Container) GetReportGenerator() *report.Generator {
	return c.reports
}

// GetAggregator returns the batch aggregator.
func (c *Container) GetAggregator() *batch.Aggregator {
	return c.aggregator
}

// AIEnabled reports whether the layout classifier is wired.
func (c *Container) AIEnabled() bool {
	return c.classifier != nil
}

// WriterOptions returns the ledger CSV options from the configuration.
func (c *Container) WriterOptions() writer.Options {
	return writer.Options{
		Delimiter:       c.config.DelimiterRune(),
		DateFormat:      c.config.CSV.DateFormat,
		IncludeMetadata: c.config.CSV.IncludeMetadata,
	}
}

// Close releases the remote clients.
// This method should be called when the container is no longer needed.
func (c *Container) Close() error {
	var errs []error
	if err := c.closeClassifier(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close classifier: %w", err))
	}
	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close redis client: %w", err))
		}
	}
	c.logger.Info("Container closed")
	return errors.Join(errs...)
}

func (c *Container) closeClassifier() error {
	if c.classifier == nil {
		return nil
	}
	return c.classifier.Close()
}

// Package api exposes the statement pipeline over HTTP.
package api

import (
	"net/http"

	"fjacquet/statement-ledger/internal/logging"
	"fjacquet/statement-ledger/internal/metrics"
	"fjacquet/statement-ledger/internal/pipeline"
	"fjacquet/statement-ledger/internal/store"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterConfig holds dependencies for the router. Store, Metrics and
// Gatherer are optional.
type RouterConfig struct {
	Engine   *pipeline.Engine
	Store    store.LedgerStore
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Logger   logging.Logger
	// MaxBytes bounds request bodies; 0 leaves them unbounded.
	MaxBytes int64
}

// NewRouter creates the HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = logging.Nop()
	}
	h := NewHandler(cfg.Engine, cfg.Store, cfg.MaxBytes, cfg.Logger)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(NewLoggingMiddleware(cfg.Logger).Wrap)
	if cfg.Metrics != nil {
		r.Use(NewMetricsMiddleware(cfg.Metrics).Wrap)
	}
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", h.Health)
	if cfg.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/templates", h.Templates)
		r.Post("/statements", h.Process)
		r.Post("/statements/detect", h.Detect)
		r.Get("/ledgers/{id}", h.GetLedger)
	})
	return r
}

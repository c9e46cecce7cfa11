// Package serve handles the HTTP API command
package serve

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"fjacquet/statement-ledger/cmd/root"
	"fjacquet/statement-ledger/internal/api"
	"fjacquet/statement-ledger/internal/container"
	"fjacquet/statement-ledger/internal/logging"

	"github.com/spf13/cobra"
)

// shutdownTimeout bounds the wait for in-flight requests on shutdown.
const shutdownTimeout = 30 * time.Second

var addr string

// Cmd represents the serve command
var Cmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the statement pipeline over HTTP",
	Long: `Start the HTTP API: statement processing and detection, template listing,
stored ledgers (when redis.url is set), health and Prometheus metrics.

Example:
  statement-ledger serve --addr :8080`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		c := root.GetContainer()
		if c == nil {
			return fmt.Errorf("container not initialized")
		}
		server := NewServer(c)
		if addr != "" {
			server.Addr = addr
		}
		ln, err := net.Listen("tcp", server.Addr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", server.Addr, err)
		}
		return Run(cmd.Context(), server, ln, c.GetLogger())
	},
}

func init() {
	Cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")
}

// NewServer builds the HTTP server from the container configuration.
func NewServer(c *container.Container) *http.Server {
	cfg := c.GetConfig()
	router := api.NewRouter(api.RouterConfig{
		Engine:   c.GetEngine(),
		Store:    c.GetStore(),
		Metrics:  c.GetMetrics(),
		Gatherer: c.GetMetricsRegistry(),
		Logger:   c.GetLogger(),
		MaxBytes: cfg.Limits.MaxBytes,
	})
	return &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadTimeout:       time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		ReadHeaderTimeout: time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout:      time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
	}
}

// Run serves on ln until ctx ends, then shuts the server down gracefully.
func Run(ctx context.Context, server *http.Server, ln net.Listener, logger logging.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server", logging.F("addr", ln.Addr().String()))
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("Server stopped")
	return nil
}

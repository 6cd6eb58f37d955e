// Package server exposes the read-only reporting API over the execution
// ledger and the live quote view.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Bonsai515/SolanaTraderNexus-sub003/internal/server/handler"
	"github.com/Bonsai515/SolanaTraderNexus-sub003/internal/server/middleware"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled

	// RateLimit caps requests per client IP per RateWindow. Zero disables
	// rate limiting.
	RateLimit  int
	RateWindow time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health     *handler.HealthHandler
	Executions *handler.ExecutionHandler
	Quotes     *handler.QuoteHandler
}

// Server is the headless HTTP reporting server for the arbitrage engine.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux
// and the middleware chain (rate limit, auth, logging, CORS) applied.
func NewServer(cfg Config, handlers Handlers, limiter middleware.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check.
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Execution ledger endpoints.
	mux.HandleFunc("GET /api/executions", handlers.Executions.ListExecutions)
	mux.HandleFunc("GET /api/executions/{id}", handlers.Executions.GetExecution)
	mux.HandleFunc("GET /api/stats/daily", handlers.Executions.DailyStats)

	// Quote view.
	if handlers.Quotes != nil {
		mux.HandleFunc("GET /api/quotes/{pair}", handlers.Quotes.GetQuotes)
	}

	// Build the middleware chain.
	var h http.Handler = mux

	h = middleware.Auth(cfg.APIKey)(h)
	if limiter != nil && cfg.RateLimit > 0 {
		window := cfg.RateWindow
		if window <= 0 {
			window = time.Second
		}
		h = middleware.RateLimit(limiter, cfg.RateLimit, window)(h)
	}
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

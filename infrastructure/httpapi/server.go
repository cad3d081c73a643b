// Package httpapi exposes the leaderboard over HTTP.
package httpapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// Server is the leaderboard HTTP server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	logger     *slog.Logger
}

// ServerConfig holds the dependencies and settings for New.
// Optional fields: Health, MetricsHandler, Logger.
type ServerConfig struct {
	Service LeaderboardService
	Health  HealthCheck
	Logger  *slog.Logger

	// MetricsHandler serves /metrics; nil uses the default Prometheus registry.
	MetricsHandler http.Handler

	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Version      string

	// RateLimit is the sustained request rate per second for /v1 routes.
	// Zero disables rate limiting.
	RateLimit float64
	RateBurst int
}

// New creates a server with all routes configured.
func New(cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := NewHandlers(cfg.Service, cfg.Health, logger, cfg.Version)

	metricsHandler := cfg.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), max(1, cfg.RateBurst))
	}
	limited := func(fn http.HandlerFunc) http.Handler { return rateLimitMiddleware(limiter, fn) }

	mux := http.NewServeMux()
	mux.Handle("GET /v1/leaderboard/rankings", limited(h.HandleRankings))
	mux.Handle("GET /v1/leaderboard/agents/{agent_id}", limited(h.HandleAgentDetail))
	mux.Handle("POST /v1/leaderboard/invalidate", limited(h.HandleInvalidate))

	// Health and metrics are not rate limited.
	mux.HandleFunc("GET /health", h.HandleHealth)
	mux.Handle("GET /metrics", metricsHandler)

	// Middleware chain (outermost executes first):
	// request ID → tracing → logging → recovery → handler.
	var handler http.Handler = mux
	handler = recoveryMiddleware(logger, handler)
	handler = loggingMiddleware(logger, handler)
	handler = tracingMiddleware(handler)
	handler = requestIDMiddleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           handler,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
		},
		handler: handler,
		logger:  logger,
	}
}

// Handler returns the root HTTP handler for use in tests.
func (s *Server) Handler() http.Handler { return s.handler }

// Start begins listening. It blocks until the server stops and returns
// http.ErrServerClosed after Shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}

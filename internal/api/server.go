// Package api wires the HTTP routes and middleware chain.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/EunhaSim-git/DD-Satellite-Coms/internal/auth"
	"github.com/EunhaSim-git/DD-Satellite-Coms/internal/clock"
	"github.com/EunhaSim-git/DD-Satellite-Coms/internal/health"
	"github.com/EunhaSim-git/DD-Satellite-Coms/internal/httputil"
	"github.com/EunhaSim-git/DD-Satellite-Coms/internal/metrics"
	"github.com/EunhaSim-git/DD-Satellite-Coms/internal/propagation"
	"github.com/EunhaSim-git/DD-Satellite-Coms/internal/stream"
)

// Config holds HTTP server settings.
type Config struct {
	Addr           string
	Auth           auth.Config
	RateLimitRPS   float64 // per client IP on /api/ routes; <= 0 disables
	RateLimitBurst int
	TrustProxy     bool
}

// Deps are the services the routes call into.
type Deps struct {
	Coverage    Coverer
	Catalog     Catalog
	Propagator  propagation.Propagator
	Stream      *stream.Handler // nil leaves the stream route unregistered
	ReadyChecks []health.Check
	Clock       clock.Clock
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server.
func NewServer(cfg Config, deps Deps, logger *slog.Logger) *Server {
	if deps.Clock == nil {
		deps.Clock = clock.System{}
	}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz(deps.ReadyChecks...))
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("GET /api/constellations", constellationsHandler)
	mux.HandleFunc("GET /api/{constellation}/coverage", coverageHandler(logger, deps.Coverage))
	mux.HandleFunc("GET /api/{constellation}/passes", passesHandler(logger, deps.Catalog, deps.Propagator, deps.Clock))
	mux.HandleFunc("GET /api/{constellation}/tle/metadata", tleMetadataHandler(logger, deps.Catalog))
	if deps.Stream != nil {
		mux.HandleFunc("GET /api/{constellation}/coverage/stream", deps.Stream.HandleCoverage)
	}
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteError(w, http.StatusNotFound, httputil.CodeNotFound, "not found")
	})

	var limiter *ipRateLimiter
	if cfg.RateLimitRPS > 0 {
		limiter = newIPRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	}

	// Build middleware chain: metrics -> request id -> recover -> tracing ->
	// logging -> rate limit -> auth -> mux.
	var handler http.Handler = mux
	handler = auth.Middleware(cfg.Auth)(handler)
	handler = rateLimitMiddleware(limiter, cfg.TrustProxy)(handler)
	handler = loggingMiddleware(logger, cfg.TrustProxy)(handler)
	handler = tracingMiddleware(handler)
	handler = recoverMiddleware(logger)(handler)
	handler = requestIDMiddleware(handler)
	handler = metrics.Middleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           handler,
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      30 * time.Second, // covers a cold catalog fetch; streams clear it
			IdleTimeout:       120 * time.Second,
		},
		logger: logger,
	}
}

// Handler returns the full middleware chain.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	s.logger.Info("http server listening", "component", "api", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	"github.com/couchcryptid/isobar-contour-service/internal/domain"
	"github.com/couchcryptid/isobar-contour-service/internal/observability"
)

// Contourer answers one contour request synchronously.
type Contourer interface {
	Do(ctx context.Context, req domain.Request) (domain.Response, error)
}

// Routes holds the optional API handlers. A nil field leaves its route unmounted.
type Routes struct {
	Contours  Contourer
	WebSocket http.Handler
}

// Server exposes health, readiness, metrics, and the contour API.
type Server struct {
	httpServer *http.Server
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics and the
// contour routes that are configured.
func NewServer(addr string, ready sharedobs.ReadinessChecker, routes Routes, metrics *observability.Metrics, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:        addr,
			Handler:     mux,
			ReadTimeout: 10 * time.Second,
			// Cold requests wait on fetches bounded by FETCH_TIMEOUT.
			WriteTimeout: 40 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		metrics: metrics,
		logger:  logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	if routes.Contours != nil {
		mux.Handle("POST /v1/contours", s.handleContours(routes.Contours))
	}
	if routes.WebSocket != nil {
		mux.Handle("GET /v1/ws", routes.WebSocket)
	}

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

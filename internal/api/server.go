// Package api exposes the RAG chatbot over a JSON HTTP API: query answering,
// course catalog statistics, and health probes.
package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rowanjacobson/rag-chatbot-enhanced/internal/session"
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger   *slog.Logger
	Agent    Agent          // required
	Sessions *session.Store // required
	Catalog  Catalog        // required
	Pool     *pgxpool.Pool  // optional: nil disables database ping in /ready

	CORSOrigins []string // allowed origins for the web frontend
	TrustProxy  bool     // trust X-Real-IP/X-Forwarded-For (behind reverse proxy)
	RateBurst   int      // rate limiter burst per IP (0 = default 60)
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates a server with all routes configured. Health probes stay
// outside the middleware stack so orchestrator checks are never rate limited.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Agent == nil {
		return nil, errors.New("agent is required")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("session store is required")
	}
	if cfg.Catalog == nil {
		return nil, errors.New("catalog is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	qh := &queryHandler{agent: cfg.Agent, sessions: cfg.Sessions, logger: logger}
	ch := &coursesHandler{catalog: cfg.Catalog, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/query", qh.query)
	mux.HandleFunc("GET /api/courses", ch.courses)

	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newRateLimiter(1.0, burst)

	// Middleware stack, outermost first:
	//   Recovery -> Logging -> CORS -> RateLimit -> Routes
	// CORS sits before RateLimit so preflight OPTIONS always gets headers.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = recoveryMiddleware(logger)(handler)

	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health(logger))
	topMux.Handle("GET /ready", readiness(cfg.Pool, logger))
	topMux.Handle("/", handler)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
